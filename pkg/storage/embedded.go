// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	cozo "github.com/kraklabs/cie-engine/pkg/cozodb"
)

// defaultEmbeddingDimensions matches nomic-embed-text, the default
// embedding model. OpenAI's text-embedding-3-small needs 1536.
const defaultEmbeddingDimensions = 768

// EmbeddedBackend implements Backend using a local CozoDB instance.
// This is the default backend for standalone/open-source CIE.
type EmbeddedBackend struct {
	db     *cozo.CozoDB
	dims   int
	mu     sync.RWMutex
	closed bool
}

// EmbeddedConfig configures the embedded backend.
type EmbeddedConfig struct {
	// DataDir is the directory where CozoDB stores its data.
	// Defaults to ~/.cie/data/<project_id>
	DataDir string

	// Engine is the CozoDB storage engine: "rocksdb", "sqlite", or "mem".
	// Defaults to "rocksdb" for persistence.
	Engine string

	// ProjectID is used to namespace the data directory.
	ProjectID string

	// EmbeddingDimensions is the vector size for the embedding
	// relations and their HNSW indices. Fixed for the lifetime of a
	// store: changing it requires a full reset and re-index. Defaults
	// to defaultEmbeddingDimensions.
	EmbeddingDimensions int
}

// NewEmbeddedBackend creates a new embedded CozoDB backend.
func NewEmbeddedBackend(config EmbeddedConfig) (*EmbeddedBackend, error) {
	// Set defaults
	if config.Engine == "" {
		config.Engine = "rocksdb"
	}
	if config.EmbeddingDimensions <= 0 {
		config.EmbeddingDimensions = defaultEmbeddingDimensions
	}
	if config.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		config.DataDir = filepath.Join(homeDir, ".cie", "data")
		if config.ProjectID != "" {
			config.DataDir = filepath.Join(config.DataDir, config.ProjectID)
		}
	}

	// Ensure data directory exists
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// Open CozoDB
	db, err := cozo.New(config.Engine, config.DataDir, nil)
	if err != nil {
		return nil, fmt.Errorf("open cozodb: %w", err)
	}

	return &EmbeddedBackend{
		db:   &db,
		dims: config.EmbeddingDimensions,
	}, nil
}

// Query executes a read-only Datalog query.
func (b *EmbeddedBackend) Query(ctx context.Context, datalog string) (*QueryResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	// Check context cancellation
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result, err := b.db.RunReadOnly(datalog, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return FromNamedRows(result), nil
}

// Execute runs a Datalog mutation.
func (b *EmbeddedBackend) Execute(ctx context.Context, datalog string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("backend is closed")
	}

	// Check context cancellation
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := b.db.Run(datalog, nil)
	if err != nil {
		return fmt.Errorf("execute failed: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (b *EmbeddedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	b.db.Close()
	return nil
}

// WriteBatch executes a single mutation script, identical to Execute. It
// exists as a distinct named method so the Graph Writer and Change Ledger
// can both depend on a batch-shaped write operation without implying they
// share a single unbatched statement.
func (b *EmbeddedBackend) WriteBatch(ctx context.Context, script string) error {
	return b.Execute(ctx, script)
}

// VectorSearch runs a k-nearest-neighbor query against an HNSW index,
// generalizing the function-embedding query used by semantic search to any
// indexed relation (function or type embeddings).
func (b *EmbeddedBackend) VectorSearch(ctx context.Context, params VectorSearchParams) (*QueryResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	idColumn := params.IDColumn
	if idColumn == "" {
		idColumn = "id"
	}
	k := params.K
	if k <= 0 {
		k = 10
	}
	ef := params.EfSearch
	if ef <= 0 {
		ef = k * 4
	}

	vecLiteral := formatEmbeddingLiteral(params.Embedding)
	script := fmt.Sprintf(`?[%s, distance] :=
		~%s:%s { %s | query: q, k: %d, ef: %d, bind_distance: distance },
		q = %s
		:order distance
		:limit %d`, idColumn, params.Relation, params.IndexName, idColumn, k, ef, vecLiteral, k)

	result, err := b.db.RunReadOnly(script, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return FromNamedRows(result), nil
}

// formatEmbeddingLiteral renders a float32 vector as a CozoScript array
// literal for use inside a query, not a mutation, string.
func formatEmbeddingLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%v", float64(f))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// DB returns the underlying CozoDB instance for advanced operations.
// Use with caution - prefer the Backend interface methods.
func (b *EmbeddedBackend) DB() *cozo.CozoDB {
	return b.db
}

// EnsureSchema creates the CIE tables if they don't exist (Schema v3,
// vertically partitioned: entity metadata, source text, and embeddings
// live in separate relations). Idempotent: every statement tolerates
// "already exists", so calling it on a populated store is a no-op.
func (b *EmbeddedBackend) EnsureSchema() error {
	tables := []string{
		`:create cie_file { id: String => path: String, hash: String, language: String, size: Int }`,
		`:create cie_function { id: String => name: String, signature: String, file_path: String, start_line: Int, end_line: Int, start_col: Int, end_col: Int }`,
		`:create cie_function_code { function_id: String => code_text: String }`,
		fmt.Sprintf(`:create cie_function_embedding { function_id: String => embedding: <F32; %d> }`, b.dims),
		`:create cie_defines { id: String => file_id: String, function_id: String }`,
		`:create cie_calls { id: String => caller_id: String, callee_id: String }`,
		`:create cie_import { id: String => file_path: String, import_path: String, alias: String, start_line: Int }`,
		`:create cie_type { id: String => name: String, kind: String, file_path: String, start_line: Int, end_line: Int, start_col: Int, end_col: Int }`,
		`:create cie_type_code { type_id: String => code_text: String }`,
		fmt.Sprintf(`:create cie_type_embedding { type_id: String => embedding: <F32; %d> }`, b.dims),
		`:create cie_defines_type { id: String => file_id: String, type_id: String }`,
		`:create cie_ghost { id: String => name: String, package_hint: String }`,
		`:create cie_uses_type { id: String => from_id: String, type_id: String, context: String, param_name: String }`,
		`:create cie_analysis_finding { id: String => function_id: String, category: String, detail: String, line: Int }`,
		`:create cie_justification { id: String =>
			entity_id: String,
			entity_type: String,
			hierarchy_depth: Int,
			purpose_summary: String,
			business_value: String,
			feature_context: String,
			detailed_description: String,
			tags: [String],
			confidence_score: Float,
			confidence_level: String,
			reasoning: String,
			pending_questions: [String],
			clarification_pending: Bool,
			inferred_from: String,
			version: Int,
			created_at: String,
			updated_at: String
		}`,
		`:create cie_clarification_question { id: String =>
			entity_id: String,
			entity_type: String,
			category: String,
			question: String,
			priority: Int,
			answered: Bool
		}`,
		`:create cie_ledger_entry { id: String =>
			kind: String,
			entity_id: String,
			detail: String,
			created_at: String
		}`,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, table := range tables {
		_, err := b.db.Run(table, nil)
		if err != nil {
			// Ignore "already exists" errors
			// CozoDB returns error message containing "already exists"
			continue
		}
	}

	return nil
}

// CreateHNSWIndex creates HNSW indexes for semantic search, one over
// function embeddings and one over type embeddings. dim must match the
// relation's vector size; a non-positive value uses the backend's
// configured dimensionality. Call after EnsureSchema.
func (b *EmbeddedBackend) CreateHNSWIndex(dim int) error {
	if dim <= 0 {
		dim = b.dims
	}
	indexes := []string{
		fmt.Sprintf(`::hnsw create cie_function_embedding:hnsw_idx { dim: %d, m: 16, ef_construction: 200, fields: [embedding] }`, dim),
		fmt.Sprintf(`::hnsw create cie_type_embedding:hnsw_idx { dim: %d, m: 16, ef_construction: 200, fields: [embedding] }`, dim),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, idx := range indexes {
		_, err := b.db.Run(idx, nil)
		if err != nil {
			// Ignore "already exists" errors
			continue
		}
	}

	return nil
}
