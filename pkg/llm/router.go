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
	"fmt"
	"sync"
)

// localPresets maps short preset names to the concrete model IDs the
// "local" provider resolves them to, so configs can say "fast" or
// "quality" instead of pinning a model version.
var localPresets = map[string]string{
	"fast":    "qwen2.5-coder:1.5b",
	"default": "qwen2.5-coder:7b",
	"quality": "qwen2.5-coder:14b",
}

// ResolvePreset maps a local-provider preset name to its model ID. A
// name that isn't a preset passes through unchanged, so explicit model
// IDs keep working everywhere a preset is accepted.
func ResolvePreset(name string) string {
	if model, ok := localPresets[name]; ok {
		return model
	}
	return name
}

// InferOptions are the per-call knobs for Router.Infer.
type InferOptions struct {
	MaxTokens   int
	Temperature float64
}

// InferResult is the flattened completion Router.Infer returns.
type InferResult struct {
	Text    string
	ModelID string
}

// Router wraps a Provider with the call surface the justification and
// search layers share: a single-prompt Infer and a Shutdown that is safe
// to call from multiple owners but runs exactly once. The choice between
// a local model and a cloud provider is configuration, not a type: both
// arrive here as a Provider.
type Router struct {
	provider Provider
	model    string

	shutdownOnce sync.Once
	onShutdown   func()
}

// NewRouter wraps provider. model, when non-empty, overrides the
// provider's default for every Infer call; preset names are resolved
// for the local provider. onShutdown, when non-nil, runs exactly once
// on the first Shutdown call.
func NewRouter(provider Provider, model string, onShutdown func()) *Router {
	return &Router{
		provider:   provider,
		model:      ResolvePreset(model),
		onShutdown: onShutdown,
	}
}

// Provider returns the wrapped provider for callers that need the full
// Generate/Chat surface.
func (r *Router) Provider() Provider {
	return r.provider
}

// Infer runs one prompt through the configured provider.
func (r *Router) Infer(ctx context.Context, prompt string, opts InferOptions) (*InferResult, error) {
	if r.provider == nil {
		return nil, fmt.Errorf("no LLM provider configured")
	}

	resp, err := r.provider.Generate(ctx, GenerateRequest{
		Prompt:      prompt,
		Model:       r.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, err
	}

	return &InferResult{Text: resp.Text, ModelID: resp.Model}, nil
}

// Shutdown releases the router's resources. Subsequent calls are no-ops.
func (r *Router) Shutdown() {
	r.shutdownOnce.Do(func() {
		if r.onShutdown != nil {
			r.onShutdown()
		}
	})
}
