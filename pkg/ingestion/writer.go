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

package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/kraklabs/cie-engine/internal/contract"
	"github.com/kraklabs/cie-engine/pkg/storage"
)

// embeddingMu serializes embedding writes across every GraphWriter and every
// file being written, process-wide. CozoDB's HNSW index builder is not safe
// for concurrent batch inserts into the same relation, so any write batch
// that carries function or type embeddings takes this lock before touching
// the backend.
var embeddingMu sync.Mutex

// WriteResult summarizes a single write performed by a GraphWriter.
type WriteResult struct {
	BatchesExecuted int
	Stats           IncrementalMutationStats
}

// GraphWriter commits extracted entities to a storage backend, always
// deleting stale rows before inserting their replacements so a reader never
// observes both the old and new version of a changed function or type.
type GraphWriter struct {
	backend storage.Backend
	builder *DatalogBuilder
	batcher *Batcher
}

// NewGraphWriter creates a GraphWriter targeting backend. targetMutations and
// maxScriptSize bound the size of each script handed to backend.Execute; a
// non-positive value for either falls back to the defaults used by the
// rest of the pipeline (500 mutations, 2MB).
func NewGraphWriter(backend storage.Backend, targetMutations, maxScriptSize int) *GraphWriter {
	if targetMutations <= 0 {
		targetMutations = 500
	}
	if maxScriptSize <= 0 {
		maxScriptSize = 2 << 20
	}
	return &GraphWriter{
		backend: backend,
		builder: NewDatalogBuilder(),
		batcher: NewBatcher(targetMutations, maxScriptSize),
	}
}

// WriteFull commits a complete set of entities with no prior deletions,
// for a first-time index of a project.
func (w *GraphWriter) WriteFull(
	ctx context.Context,
	files []FileEntity,
	functions []FunctionEntity,
	types []TypeEntity,
	defines []DefinesEdge,
	definesTypes []DefinesTypeEdge,
	calls []CallsEdge,
	imports []ImportEntity,
) (*WriteResult, error) {
	return w.WriteIncremental(ctx, DeletionSet{}, files, functions, types, defines, definesTypes, calls, imports)
}

// WriteIncremental deletes the rows named in deletions, then inserts the new
// or changed entities, in a single ordered pass per batch: every batch's
// deletions precede its insertions, so a crash mid-write never leaves a
// function's metadata row pointing at a code/embedding row that was already
// removed.
func (w *GraphWriter) WriteIncremental(
	ctx context.Context,
	deletions DeletionSet,
	files []FileEntity,
	functions []FunctionEntity,
	types []TypeEntity,
	defines []DefinesEdge,
	definesTypes []DefinesTypeEdge,
	calls []CallsEdge,
	imports []ImportEntity,
) (*WriteResult, error) {
	if err := ValidateEntities(files, functions, defines, calls); err != nil {
		return nil, err
	}

	script := w.builder.BuildIncrementalMutationsWithTypes(deletions, files, functions, types, defines, definesTypes, calls, imports)
	if script == "" {
		return &WriteResult{Stats: ComputeIncrementalStats(deletions, files, functions, types)}, nil
	}
	if v := contract.ValidateBatchScript(script); !v.OK {
		return nil, fmt.Errorf("write script rejected: %s (%d bytes)", v.Message, len(script))
	}

	batches, err := w.batcher.Batch(script)
	if err != nil {
		return nil, fmt.Errorf("batch write script: %w", err)
	}

	if hasEmbeddings(functions, types) {
		embeddingMu.Lock()
		defer embeddingMu.Unlock()
	}

	for i, batch := range batches {
		if err := w.backend.Execute(ctx, batch); err != nil {
			return nil, fmt.Errorf("execute write batch %d/%d: %w", i+1, len(batches), err)
		}
	}

	return &WriteResult{
		BatchesExecuted: len(batches),
		Stats:           ComputeIncrementalStats(deletions, files, functions, types),
	}, nil
}

// WriteGhosts persists ghost placeholder nodes accumulated by a
// GhostResolver so the call graph stays queryable for calls that target
// well-known built-ins. Safe to call with an empty slice.
func (w *GraphWriter) WriteGhosts(ctx context.Context, nodes []*GhostNode) error {
	if len(nodes) == 0 {
		return nil
	}

	rows := make([]string, len(nodes))
	for i, n := range nodes {
		rows[i] = fmt.Sprintf("[%s, %s, %s]", quoteString(n.ID), quoteString(n.Name), quoteString(n.PackageHint))
	}
	script := fmt.Sprintf("?[id, name, package_hint] <- [%s] :put cie_ghost {id => name, package_hint}\n", joinRows(rows))

	batches, err := w.batcher.Batch(script)
	if err != nil {
		return fmt.Errorf("batch ghost write script: %w", err)
	}
	for i, batch := range batches {
		if err := w.backend.Execute(ctx, batch); err != nil {
			return fmt.Errorf("execute ghost batch %d/%d: %w", i+1, len(batches), err)
		}
	}
	return nil
}

// WriteUsesTypes persists resolved entity-uses-type edges. Edge IDs are
// content-derived so rewrites of the same resolution are idempotent.
func (w *GraphWriter) WriteUsesTypes(ctx context.Context, edges []UsesTypeEdge) error {
	if len(edges) == 0 {
		return nil
	}

	rows := make([]string, len(edges))
	for i, e := range edges {
		h := sha256.Sum256([]byte(e.FromID + "|" + e.TypeID + "|" + e.ParameterName))
		id := "uses:" + hex.EncodeToString(h[:12])
		rows[i] = fmt.Sprintf("[%s, %s, %s, %s, %s]",
			quoteString(id), quoteString(e.FromID), quoteString(e.TypeID),
			quoteString(e.Context), quoteString(e.ParameterName))
	}
	script := fmt.Sprintf("?[id, from_id, type_id, context, param_name] <- [%s] :put cie_uses_type {id => from_id, type_id, context, param_name}\n", joinRows(rows))

	batches, err := w.batcher.Batch(script)
	if err != nil {
		return fmt.Errorf("batch uses-type write script: %w", err)
	}
	for i, b := range batches {
		if err := w.backend.Execute(ctx, b); err != nil {
			return fmt.Errorf("execute uses-type batch %d/%d: %w", i+1, len(batches), err)
		}
	}
	return nil
}

func hasEmbeddings(functions []FunctionEntity, types []TypeEntity) bool {
	for _, fn := range functions {
		if len(fn.Embedding) > 0 {
			return true
		}
	}
	for _, t := range types {
		if len(t.Embedding) > 0 {
			return true
		}
	}
	return false
}

func joinRows(rows []string) string {
	out := ""
	for i, r := range rows {
		if i > 0 {
			out += ", "
		}
		out += r
	}
	return out
}
