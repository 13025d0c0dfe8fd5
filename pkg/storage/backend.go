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

// Package storage provides the storage backend abstraction for CIE.
// See doc.go for package documentation.
package storage

import (
	"context"

	cozo "github.com/kraklabs/cie-engine/pkg/cozodb"
)

// Backend is the interface that all storage backends must implement.
// It provides methods for executing queries and mutations on the code index.
type Backend interface {
	// Query executes a read-only Datalog query and returns the results.
	Query(ctx context.Context, datalog string) (*QueryResult, error)

	// Execute runs a Datalog mutation (insert, update, delete).
	Execute(ctx context.Context, datalog string) error

	// Close releases any resources held by the backend.
	Close() error

	// WriteBatch executes a single pre-batched Datalog mutation script,
	// the same path used for both the Graph Writer's ordinary writes and
	// the Change Ledger's periodic flush.
	WriteBatch(ctx context.Context, script string) error

	// VectorSearch runs a k-nearest-neighbor query against an HNSW index
	// built over relation, returning the raw result rows for the caller
	// to post-filter and rank.
	VectorSearch(ctx context.Context, params VectorSearchParams) (*QueryResult, error)
}

// VectorSearchParams configures a VectorSearch call. Relation and
// IndexName name the HNSW-indexed relation and index to query (function
// or type embeddings share this same mechanism, indexed separately).
// Embedding is the query vector; K bounds how many candidates the index
// itself returns before any post-filtering.
type VectorSearchParams struct {
	Relation   string
	IndexName  string
	IDColumn   string
	Embedding  []float32
	K          int
	EfSearch   int
	SelectCols []string
}

// QueryResult represents the result of a Datalog query.
type QueryResult struct {
	Headers []string
	Rows    [][]any
}

// ToNamedRows converts QueryResult to CozoDB NamedRows for compatibility.
func (r *QueryResult) ToNamedRows() cozo.NamedRows {
	return cozo.NamedRows{
		Headers: r.Headers,
		Rows:    r.Rows,
	}
}

// FromNamedRows converts CozoDB NamedRows to QueryResult.
func FromNamedRows(nr cozo.NamedRows) *QueryResult {
	return &QueryResult{
		Headers: nr.Headers,
		Rows:    nr.Rows,
	}
}
