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

package search

import (
	"context"
	"fmt"

	"github.com/kraklabs/cie-engine/pkg/storage"
)

// SemanticHit is a single result from the semantic leg, resolved from the
// cie_function_embedding HNSW index back to its owning function and file.
type SemanticHit struct {
	FunctionID   string
	FunctionName string
	FilePath     string
	Signature    string
	StartLine    int
	Distance     float64
}

// EmbeddingProvider embeds query text into the same vector space the
// indexed functions were embedded into. Satisfied directly by
// ingestion.EmbeddingProvider.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// semanticLeg embeds query, runs the vector search against
// cie_function_embedding's HNSW index, and resolves each hit's owning
// function/file. k bounds how many candidates are returned before any
// caller-side post-filtering.
func semanticLeg(ctx context.Context, backend storage.Backend, embedder EmbeddingProvider, query string, k int) ([]SemanticHit, error) {
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	result, err := backend.VectorSearch(ctx, storage.VectorSearchParams{
		Relation:  "cie_function_embedding",
		IndexName: "hnsw_idx",
		IDColumn:  "function_id",
		Embedding: vec,
		K:         k,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	ids := make([]string, 0, len(result.Rows))
	distanceByID := make(map[string]float64, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) < 2 {
			continue
		}
		id, _ := row[0].(string)
		dist, _ := row[1].(float64)
		ids = append(ids, id)
		distanceByID[id] = dist
	}
	if len(ids) == 0 {
		return nil, nil
	}

	meta, err := resolveFunctionMeta(ctx, backend, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]SemanticHit, 0, len(ids))
	for _, id := range ids {
		m, ok := meta[id]
		if !ok {
			continue
		}
		hits = append(hits, SemanticHit{
			FunctionID:   id,
			FunctionName: m.name,
			FilePath:     m.filePath,
			Signature:    m.signature,
			StartLine:    m.startLine,
			Distance:     distanceByID[id],
		})
	}
	return hits, nil
}

type functionMeta struct {
	name      string
	filePath  string
	signature string
	startLine int
}

// resolveFunctionMeta batches a single query resolving every id in ids to
// its name/file_path/signature/start_line, rather than one query per hit.
func resolveFunctionMeta(ctx context.Context, backend storage.Backend, ids []string) (map[string]functionMeta, error) {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	result, err := backend.Query(ctx, `?[id, name, file_path, signature, start_line] :=
		*cie_function { id, name, file_path, signature, start_line }`)
	if err != nil {
		return nil, fmt.Errorf("resolve function metadata: %w", err)
	}

	out := make(map[string]functionMeta, len(ids))
	for _, row := range result.Rows {
		if len(row) < 5 {
			continue
		}
		id, _ := row[0].(string)
		if !idSet[id] {
			continue
		}
		name, _ := row[1].(string)
		filePath, _ := row[2].(string)
		signature, _ := row[3].(string)
		startLine, _ := row[4].(float64)
		out[id] = functionMeta{name: name, filePath: filePath, signature: signature, startLine: int(startLine)}
	}
	return out, nil
}
