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

package tools

import (
	"context"
	"testing"

	"github.com/kraklabs/cie-engine/pkg/llm"
)

func TestNewClient(t *testing.T) {
	q := NewMockClientEmpty()
	client := NewClient(q, "test-project")

	if client.ProjectID != "test-project" {
		t.Errorf("ProjectID = %q, want %q", client.ProjectID, "test-project")
	}
	if client.LLM != nil {
		t.Error("expected LLM to start unset")
	}
	if client.EmbeddingURL != "" || client.EmbeddingModel != "" {
		t.Error("expected embedding config to start unset")
	}
}

func TestClient_QueryDelegation(t *testing.T) {
	q := NewMockClientWithResults([]string{"name"}, [][]any{{"main"}})
	client := NewClient(q, "p")

	result, err := client.Query(context.Background(), `?[name] := *cie_function { name }`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
}

func TestClient_SetLLMProvider(t *testing.T) {
	client := NewClient(NewMockClientEmpty(), "p")
	provider := &llm.MockProvider{}

	client.SetLLMProvider(provider, 0)
	gotProvider, maxTokens := client.LLMConfig()
	if gotProvider == nil {
		t.Fatal("expected provider to be set")
	}
	if maxTokens != defaultLLMMaxTokens {
		t.Errorf("maxTokens = %d, want default %d", maxTokens, defaultLLMMaxTokens)
	}

	client.SetLLMProvider(provider, 512)
	if _, maxTokens = client.LLMConfig(); maxTokens != 512 {
		t.Errorf("maxTokens = %d, want 512", maxTokens)
	}
}

func TestClient_SetEmbeddingConfig(t *testing.T) {
	client := NewClient(NewMockClientEmpty(), "p")

	client.SetEmbeddingConfig("http://localhost:11434", "nomic-embed-text")
	url, model := client.EmbeddingConfig()
	if url != "http://localhost:11434" {
		t.Errorf("url = %q", url)
	}
	if model != "nomic-embed-text" {
		t.Errorf("model = %q", model)
	}
}

func TestClient_SatisfiesConfigProviders(t *testing.T) {
	var q Querier = NewClient(NewMockClientEmpty(), "p")

	if _, ok := q.(embeddingConfigProvider); !ok {
		t.Error("Client should implement embeddingConfigProvider")
	}
	if _, ok := q.(llmConfigProvider); !ok {
		t.Error("Client should implement llmConfigProvider")
	}
}
