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

import "testing"

func TestCozoBatch_AppendDerivesTypeRefs(t *testing.T) {
	var b CozoBatch
	b.Append(&ParseResult{
		File: FileEntity{ID: "file1", Path: "svc.go"},
		Functions: []FunctionEntity{
			{ID: "fn1", Name: "handle", Signature: "func handle(q Querier, count int) error", FilePath: "svc.go"},
		},
		Types: []TypeEntity{
			{ID: "type1", Name: "Querier", Kind: "interface", FilePath: "svc.go"},
		},
	})

	if len(b.Files) != 1 || len(b.Functions) != 1 || len(b.Types) != 1 {
		t.Fatalf("rows not appended: %+v", b)
	}

	// The named parameter type yields a reference; the builtin doesn't.
	if len(b.UnresolvedTypeRefs) != 1 {
		t.Fatalf("expected 1 type ref, got %d: %+v", len(b.UnresolvedTypeRefs), b.UnresolvedTypeRefs)
	}
	ref := b.UnresolvedTypeRefs[0]
	if ref.SourceID != "fn1" || ref.TypeName != "Querier" || ref.Context != "parameter" || ref.ParameterName != "q" {
		t.Errorf("unexpected ref: %+v", ref)
	}
}

func TestResolveTypeRefs(t *testing.T) {
	refs := []UnresolvedTypeRef{
		{SourceID: "fn1", TypeName: "Querier", Context: "parameter", ParameterName: "q"},
		{SourceID: "fn1", TypeName: "External", Context: "parameter", ParameterName: "e"},
	}
	types := []TypeEntity{{ID: "type1", Name: "Querier"}}

	edges, unresolved := ResolveTypeRefs(refs, types)
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].FromID != "fn1" || edges[0].TypeID != "type1" {
		t.Errorf("unexpected edge: %+v", edges[0])
	}
	if unresolved != 1 {
		t.Errorf("expected 1 unresolved external type, got %d", unresolved)
	}
}

func TestCozoBatch_EmbeddingChunks(t *testing.T) {
	b := CozoBatch{
		Functions: []FunctionEntity{
			{ID: "fn1", CodeText: "func a() {}"},
			{ID: "fn2"}, // no code text: not embeddable
		},
		Types: []TypeEntity{
			{ID: "type1", CodeText: "type T struct{}"},
		},
	}

	chunks := b.EmbeddingChunks()
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].EntityID != "fn1" || chunks[0].EntityType != "function" {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}
	if chunks[1].EntityID != "type1" || chunks[1].EntityType != "type" {
		t.Errorf("unexpected chunk: %+v", chunks[1])
	}
}
