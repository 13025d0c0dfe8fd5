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
	"strings"
	"testing"

	"github.com/kraklabs/cie-engine/pkg/storage"
)

// graphBackend fakes the store surface the hybrid pipeline touches: a
// vector search, function metadata resolution, and the code rows the
// in-process lexical fallback scans.
type graphBackend struct {
	vectorRows [][]any
	functions  [][]any // id, name, file_path, signature, start_line
	codeRows   [][]any // file_path, code_text
}

func (b *graphBackend) Query(ctx context.Context, datalog string) (*storage.QueryResult, error) {
	switch {
	case strings.Contains(datalog, "cie_function_code"):
		return &storage.QueryResult{Headers: []string{"file_path", "code_text"}, Rows: b.codeRows}, nil
	case strings.Contains(datalog, "*cie_function"):
		return &storage.QueryResult{
			Headers: []string{"id", "name", "file_path", "signature", "start_line"},
			Rows:    b.functions,
		}, nil
	default:
		return &storage.QueryResult{}, nil
	}
}
func (b *graphBackend) Execute(ctx context.Context, datalog string) error   { return nil }
func (b *graphBackend) Close() error                                        { return nil }
func (b *graphBackend) WriteBatch(ctx context.Context, script string) error { return nil }
func (b *graphBackend) VectorSearch(ctx context.Context, params storage.VectorSearchParams) (*storage.QueryResult, error) {
	return &storage.QueryResult{Headers: []string{"function_id", "distance"}, Rows: b.vectorRows}, nil
}

// unitEmbedder returns a fixed vector for every query.
type unitEmbedder struct{}

func (unitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func testBackend() *graphBackend {
	return &graphBackend{
		vectorRows: [][]any{
			{"fn-find", 0.1},
			{"fn-login", 0.3},
		},
		functions: [][]any{
			{"fn-find", "findById", "src/services/user-service.ts", "findById(id: string)", float64(12)},
			{"fn-login", "login", "src/services/auth-service.ts", "login(user: string)", float64(30)},
			{"fn-main", "main", "src/index.ts", "main()", float64(1)},
		},
		codeRows: [][]any{
			{"src/index.ts", "function main() {\n  findById('42')\n}"},
			{"src/services/user-service.ts", "function findById(id) { return db.get(id) }"},
		},
	}
}

func TestSearch_FusionBounds(t *testing.T) {
	svc := NewService(Config{
		Backend:  testBackend(),
		Embedder: unitEmbedder{},
	})

	resp, err := svc.Search(context.Background(), Request{Query: "findById", Limit: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(resp.Results) > 2 {
		t.Fatalf("limit not respected: %d results", len(resp.Results))
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected results from both legs")
	}

	// Normalization puts the top result at exactly 1.0 and the rest in
	// descending order.
	if resp.Results[0].Score != 1.0 {
		t.Errorf("top score = %v, want 1.0", resp.Results[0].Score)
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Score > resp.Results[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, resp.Results[i].Score, resp.Results[i-1].Score)
		}
	}
}

func TestSearch_UsageIntent(t *testing.T) {
	svc := NewService(Config{Backend: testBackend(), Embedder: unitEmbedder{}})

	resp, err := svc.Search(context.Background(), Request{Query: "who calls findById"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Intent != IntentUsage {
		t.Errorf("intent = %v, want usage", resp.Intent)
	}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	svc := NewService(Config{Backend: testBackend(), Embedder: unitEmbedder{}})
	if _, err := svc.Search(context.Background(), Request{Query: "   "}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestSearch_DegradesToLexicalWithoutEmbedder(t *testing.T) {
	svc := NewService(Config{Backend: testBackend()})

	resp, err := svc.Search(context.Background(), Request{Query: "findById"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	// The lexical fallback alone still surfaces the matching files.
	if len(resp.Results) == 0 {
		t.Fatal("expected lexical-only results when no embedder is configured")
	}
	for _, r := range resp.Results {
		if r.FunctionID != "" {
			t.Errorf("lexical-only hit should carry no function anchor, got %q", r.FunctionID)
		}
	}
}

func TestFallbackLexicalSearch_BestLinePerFile(t *testing.T) {
	backend := testBackend()
	results, err := FallbackLexicalSearch(context.Background(), backend, "findById", nil, 10)
	if err != nil {
		t.Fatalf("FallbackLexicalSearch() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matching files, got %d", len(results))
	}
	for _, r := range results {
		if len(r.LineMatches) == 0 {
			t.Errorf("file %s has no line matches", r.FileName)
		}
		if !strings.Contains(strings.ToLower(r.LineMatches[0].Line), "findbyid") {
			t.Errorf("line %q does not contain the query", r.LineMatches[0].Line)
		}
	}
}

var _ storage.Backend = (*graphBackend)(nil)
