// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePreset(t *testing.T) {
	assert.Equal(t, "qwen2.5-coder:1.5b", ResolvePreset("fast"))
	assert.Equal(t, "qwen2.5-coder:7b", ResolvePreset("default"))
	assert.Equal(t, "qwen2.5-coder:14b", ResolvePreset("quality"))

	// Explicit model IDs pass through unchanged.
	assert.Equal(t, "llama3:8b", ResolvePreset("llama3:8b"))
	assert.Equal(t, "", ResolvePreset(""))
}

func TestRouter_Infer(t *testing.T) {
	var gotReq GenerateRequest
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
			gotReq = req
			return &GenerateResponse{Text: "answer", Model: "mock-model"}, nil
		},
	}

	router := NewRouter(provider, "fast", nil)
	result, err := router.Infer(context.Background(), "what is this?", InferOptions{MaxTokens: 128, Temperature: 0.2})
	require.NoError(t, err)

	assert.Equal(t, "answer", result.Text)
	assert.Equal(t, "mock-model", result.ModelID)

	// The preset resolved to its concrete model and the options passed
	// through to the provider.
	assert.Equal(t, "qwen2.5-coder:1.5b", gotReq.Model)
	assert.Equal(t, 128, gotReq.MaxTokens)
	assert.InDelta(t, 0.2, gotReq.Temperature, 1e-9)
}

func TestRouter_InferNoProvider(t *testing.T) {
	router := NewRouter(nil, "", nil)
	_, err := router.Infer(context.Background(), "prompt", InferOptions{})
	require.Error(t, err)
}

func TestRouter_ShutdownOnce(t *testing.T) {
	calls := 0
	router := NewRouter(&MockProvider{}, "", func() { calls++ })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			router.Shutdown()
		}()
	}
	wg.Wait()
	router.Shutdown()

	assert.Equal(t, 1, calls, "shutdown hook must run exactly once")
}
