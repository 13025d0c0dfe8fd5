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
	"strings"
	"testing"

	"github.com/kraklabs/cie-engine/pkg/storage"
)

// scriptBackend records every Execute script, for asserting on write
// ordering without a real store.
type scriptBackend struct {
	scripts []string
}

func (b *scriptBackend) Query(ctx context.Context, datalog string) (*storage.QueryResult, error) {
	return &storage.QueryResult{}, nil
}
func (b *scriptBackend) Execute(ctx context.Context, datalog string) error {
	b.scripts = append(b.scripts, datalog)
	return nil
}
func (b *scriptBackend) Close() error                                        { return nil }
func (b *scriptBackend) WriteBatch(ctx context.Context, script string) error { return nil }
func (b *scriptBackend) VectorSearch(ctx context.Context, params storage.VectorSearchParams) (*storage.QueryResult, error) {
	return &storage.QueryResult{}, nil
}

func (b *scriptBackend) all() string { return strings.Join(b.scripts, "\n") }

func TestGraphWriter_WriteGhosts(t *testing.T) {
	backend := &scriptBackend{}
	w := NewGraphWriter(backend, 0, 0)

	nodes := []*GhostNode{
		{ID: "ghost:abc", Name: "lodash.map", PackageHint: "lodash"},
		{ID: "ghost:def", Name: "console.log", PackageHint: "console"},
	}
	if err := w.WriteGhosts(context.Background(), nodes); err != nil {
		t.Fatalf("WriteGhosts() error = %v", err)
	}

	out := backend.all()
	if !strings.Contains(out, "cie_ghost") {
		t.Error("expected ghost relation in write script")
	}
	if !strings.Contains(out, "lodash.map") || !strings.Contains(out, "console.log") {
		t.Errorf("expected both ghost names in script, got:\n%s", out)
	}
}

func TestGraphWriter_WriteGhostsEmptyIsNoop(t *testing.T) {
	backend := &scriptBackend{}
	w := NewGraphWriter(backend, 0, 0)

	if err := w.WriteGhosts(context.Background(), nil); err != nil {
		t.Fatalf("WriteGhosts(nil) error = %v", err)
	}
	if len(backend.scripts) != 0 {
		t.Errorf("expected no writes for an empty ghost set, got %d", len(backend.scripts))
	}
}

func TestGraphWriter_DeleteBeforeInsertOrdering(t *testing.T) {
	backend := &scriptBackend{}
	w := NewGraphWriter(backend, 0, 0)

	deletions := DeletionSet{
		FileIDs:     []string{"file-old"},
		FunctionIDs: []string{"fn-old"},
	}
	files := []FileEntity{{ID: "file-new", Path: "a.go", Hash: "h", Language: "go", Size: 10}}
	functions := []FunctionEntity{{ID: "fn-new", Name: "a", FilePath: "a.go", StartLine: 1, EndLine: 2}}
	defines := []DefinesEdge{{FileID: "file-new", FunctionID: "fn-new"}}

	_, err := w.WriteIncremental(context.Background(), deletions, files, functions, nil, defines, nil, nil, nil)
	if err != nil {
		t.Fatalf("WriteIncremental() error = %v", err)
	}

	out := backend.all()
	rmIdx := strings.Index(out, "fn-old")
	putIdx := strings.Index(out, "fn-new")
	if rmIdx == -1 || putIdx == -1 {
		t.Fatalf("expected both stale and fresh rows in scripts:\n%s", out)
	}
	if rmIdx > putIdx {
		t.Errorf("stale rows must be removed before replacements are inserted")
	}
}

func TestHasEmbeddings(t *testing.T) {
	if hasEmbeddings(nil, nil) {
		t.Error("no entities should mean no embeddings")
	}
	if hasEmbeddings([]FunctionEntity{{ID: "f"}}, nil) {
		t.Error("a function without a vector should not count")
	}
	if !hasEmbeddings([]FunctionEntity{{ID: "f", Embedding: []float32{0.1}}}, nil) {
		t.Error("a function with a vector should count")
	}
	if !hasEmbeddings(nil, []TypeEntity{{ID: "t", Embedding: []float32{0.2}}}) {
		t.Error("a type with a vector should count")
	}
}

var _ storage.Backend = (*scriptBackend)(nil)
