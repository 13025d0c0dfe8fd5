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

// Package tools implements the query operations served over the local code
// intelligence store: call-graph navigation, entity lookup, text and
// semantic search, and index health reporting.
package tools

import (
	"context"

	"github.com/kraklabs/cie-engine/pkg/llm"
)

// Querier is the interface for executing Datalog queries against the
// store. EmbeddedQuerier is the production implementation; tests supply
// in-memory fakes.
type Querier interface {
	Query(ctx context.Context, script string) (*QueryResult, error)
	QueryRaw(ctx context.Context, script string) (map[string]any, error)
}

// QueryResult is the row set a Querier returns.
type QueryResult struct {
	Headers []string `json:"Headers"`
	Rows    [][]any  `json:"Rows"`
}

// Client bundles a Querier with the optional collaborators some tools
// need: an LLM provider for narrative answers and an embedding endpoint
// for the semantic search leg. Tools that only read the graph accept a
// bare Querier; Analyze and IndexStatus take the full Client.
type Client struct {
	Querier

	// ProjectID identifies the indexed project, used in status output.
	ProjectID string

	// LLM, when set, enables narrative generation in Analyze. Nil
	// degrades those tools to structured output only.
	LLM          llm.Provider
	LLMMaxTokens int

	// EmbeddingURL and EmbeddingModel configure query-time embedding
	// generation. Empty values degrade SemanticSearch to its text
	// fallback.
	EmbeddingURL   string
	EmbeddingModel string
}

const defaultLLMMaxTokens = 2000

// NewClient creates a Client over q. The LLM and embedding collaborators
// start unset; use SetLLMProvider and SetEmbeddingConfig to attach them.
func NewClient(q Querier, projectID string) *Client {
	return &Client{Querier: q, ProjectID: projectID}
}

// SetLLMProvider attaches an LLM provider for narrative generation.
func (c *Client) SetLLMProvider(provider llm.Provider, maxTokens int) {
	c.LLM = provider
	c.LLMMaxTokens = maxTokens
	if c.LLMMaxTokens <= 0 {
		c.LLMMaxTokens = defaultLLMMaxTokens
	}
}

// SetEmbeddingConfig attaches the embedding endpoint used to vectorize
// queries at search time. The model must match the one the index was
// built with: vector dimensionality is fixed at index creation.
func (c *Client) SetEmbeddingConfig(url, model string) {
	c.EmbeddingURL = url
	c.EmbeddingModel = model
}
