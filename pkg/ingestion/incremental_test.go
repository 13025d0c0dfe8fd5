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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kraklabs/cie-engine/pkg/storage"
)

// hashBackend serves a canned path->hash set for the cie_file scan the
// updater runs, standing in for a populated store.
type hashBackend struct {
	hashes map[string]string
}

func (b *hashBackend) Query(ctx context.Context, datalog string) (*storage.QueryResult, error) {
	if !strings.Contains(datalog, "cie_file") {
		return &storage.QueryResult{}, nil
	}
	result := &storage.QueryResult{Headers: []string{"path", "hash"}}
	for path, hash := range b.hashes {
		result.Rows = append(result.Rows, []any{path, hash})
	}
	return result, nil
}
func (b *hashBackend) Execute(ctx context.Context, datalog string) error   { return nil }
func (b *hashBackend) Close() error                                        { return nil }
func (b *hashBackend) WriteBatch(ctx context.Context, script string) error { return nil }
func (b *hashBackend) VectorSearch(ctx context.Context, params storage.VectorSearchParams) (*storage.QueryResult, error) {
	return &storage.QueryResult{}, nil
}

func writeTestFile(t *testing.T, dir, name, content string) FileInfo {
	t.Helper()
	fullPath := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return FileInfo{Path: name, FullPath: fullPath, Size: int64(len(content)), Language: "go"}
}

func TestIncrementalUpdater_Classify(t *testing.T) {
	dir := t.TempDir()

	unchanged := writeTestFile(t, dir, "unchanged.go", "package a\n")
	modified := writeTestFile(t, dir, "modified.go", "package a\nfunc changed() {}\n")
	added := writeTestFile(t, dir, "added.go", "package a\nfunc brandNew() {}\n")

	backend := &hashBackend{hashes: map[string]string{
		"unchanged.go": HashFileContent([]byte("package a\n")),
		"modified.go":  HashFileContent([]byte("package a\n// old content\n")),
		"deleted.go":   HashFileContent([]byte("package gone\n")),
	}}

	updater := NewIncrementalUpdater(backend)
	cs, err := updater.Classify(context.Background(), []FileInfo{unchanged, modified, added})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if len(cs.Added) != 1 || cs.Added[0].Path != "added.go" {
		t.Errorf("Added = %v", cs.Added)
	}
	if len(cs.Modified) != 1 || cs.Modified[0].Path != "modified.go" {
		t.Errorf("Modified = %v", cs.Modified)
	}
	if len(cs.Unchanged) != 1 || cs.Unchanged[0].Path != "unchanged.go" {
		t.Errorf("Unchanged = %v", cs.Unchanged)
	}
	if len(cs.Deleted) != 1 || cs.Deleted[0] != "deleted.go" {
		t.Errorf("Deleted = %v", cs.Deleted)
	}
}

func TestIncrementalUpdater_NoChangesClassifiesEverythingUnchanged(t *testing.T) {
	dir := t.TempDir()
	content := "package a\nfunc stable() {}\n"
	f := writeTestFile(t, dir, "stable.go", content)

	backend := &hashBackend{hashes: map[string]string{
		"stable.go": HashFileContent([]byte(content)),
	}}

	updater := NewIncrementalUpdater(backend)
	cs, err := updater.Classify(context.Background(), []FileInfo{f})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	// Hash idempotence: a rerun with no edits produces zero work.
	if len(cs.Added)+len(cs.Modified)+len(cs.Deleted) != 0 {
		t.Errorf("expected no changes, got added=%d modified=%d deleted=%d",
			len(cs.Added), len(cs.Modified), len(cs.Deleted))
	}
	if len(cs.Unchanged) != 1 {
		t.Errorf("expected 1 unchanged file, got %d", len(cs.Unchanged))
	}
}

func TestIncrementalUpdater_EmptyStoreClassifiesAllAdded(t *testing.T) {
	dir := t.TempDir()
	f := writeTestFile(t, dir, "first.go", "package a\n")

	updater := NewIncrementalUpdater(&hashBackend{hashes: map[string]string{}})
	cs, err := updater.Classify(context.Background(), []FileInfo{f})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(cs.Added) != 1 || len(cs.Deleted) != 0 {
		t.Errorf("fresh store should classify the scan as all-added, got %+v", cs)
	}
}

func TestBuildDeletionSet_EmptyPathsIsEmpty(t *testing.T) {
	updater := NewIncrementalUpdater(&hashBackend{})
	deletions, err := updater.BuildDeletionSet(context.Background(), nil)
	if err != nil {
		t.Fatalf("BuildDeletionSet() error = %v", err)
	}
	if len(deletions.FileIDs)+len(deletions.FunctionIDs)+len(deletions.TypeIDs) != 0 {
		t.Errorf("expected empty deletion set, got %+v", deletions)
	}
}

var _ storage.Backend = (*hashBackend)(nil)
