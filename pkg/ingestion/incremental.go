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
	"fmt"
	"os"
	"strings"

	"github.com/kraklabs/cie-engine/pkg/storage"
	"github.com/kraklabs/cie-engine/pkg/tools"
)

// ChangeSet classifies every file seen in a scan against what's already
// stored, independent of any git history. This is the updater's main
// contribution over delta.go's DeltaDetector, which requires two git
// commits to diff and can't run against an uncommitted working tree.
type ChangeSet struct {
	Added     []FileInfo
	Modified  []FileInfo
	Unchanged []FileInfo
	Deleted   []string // paths present in storage but absent from the scan
}

// IncrementalUpdater classifies a scan's files against storage-recorded
// hashes and assembles the DeletionSet a GraphWriter needs to retire stale
// rows before the changed files are re-written.
type IncrementalUpdater struct {
	backend storage.Backend
	querier tools.Querier
}

// NewIncrementalUpdater creates an IncrementalUpdater over backend.
func NewIncrementalUpdater(backend storage.Backend) *IncrementalUpdater {
	return &IncrementalUpdater{
		backend: backend,
		querier: &backendQuerier{backend: backend},
	}
}

// Classify compares files against the hashes already recorded in cie_file,
// computing each file's content hash as it goes. A file whose path is
// unknown to storage is Added; a known path with a changed hash is
// Modified; a known path with the same hash is Unchanged. Every stored path
// absent from files is Deleted.
func (u *IncrementalUpdater) Classify(ctx context.Context, files []FileInfo) (*ChangeSet, error) {
	stored, err := u.storedHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stored file hashes: %w", err)
	}

	seen := make(map[string]bool, len(files))
	cs := &ChangeSet{}

	for _, f := range files {
		seen[f.Path] = true

		content, err := os.ReadFile(f.FullPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.FullPath, err)
		}
		hash := HashFileContent(content)

		prevHash, known := stored[f.Path]
		switch {
		case !known:
			cs.Added = append(cs.Added, f)
		case prevHash != hash:
			cs.Modified = append(cs.Modified, f)
		default:
			cs.Unchanged = append(cs.Unchanged, f)
		}
	}

	for path := range stored {
		if !seen[path] {
			cs.Deleted = append(cs.Deleted, path)
		}
	}

	return cs, nil
}

// storedHashes returns path -> hash for every file currently in cie_file.
func (u *IncrementalUpdater) storedHashes(ctx context.Context) (map[string]string, error) {
	result, err := u.backend.Query(ctx, `?[path, hash] := *cie_file { path, hash }`)
	if err != nil {
		if strings.Contains(err.Error(), "Cannot find") {
			return map[string]string{}, nil
		}
		return nil, err
	}

	out := make(map[string]string, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) < 2 {
			continue
		}
		path, _ := row[0].(string)
		hash, _ := row[1].(string)
		out[path] = hash
	}
	return out, nil
}

// BuildDeletionSet assembles a DeletionSet covering every entity and edge
// touching staleFilePaths (files that were modified or deleted), so a
// GraphWriter can retire them before their replacements, if any, are
// inserted.
func (u *IncrementalUpdater) BuildDeletionSet(ctx context.Context, staleFilePaths []string) (DeletionSet, error) {
	if len(staleFilePaths) == 0 {
		return DeletionSet{}, nil
	}

	fileIDs, err := GetFileIDsForPaths(ctx, u.querier, staleFilePaths)
	if err != nil {
		return DeletionSet{}, fmt.Errorf("resolve stale file ids: %w", err)
	}

	functionIDsByFile, err := GetFunctionIDsForFiles(ctx, u.querier, staleFilePaths)
	if err != nil {
		return DeletionSet{}, fmt.Errorf("resolve stale function ids: %w", err)
	}

	typeIDsByFile, err := GetTypeIDsForFiles(ctx, u.querier, staleFilePaths)
	if err != nil {
		return DeletionSet{}, fmt.Errorf("resolve stale type ids: %w", err)
	}

	definesEdgeIDsByFile, err := GetDefinesEdgesForFiles(ctx, u.querier, staleFilePaths)
	if err != nil {
		return DeletionSet{}, fmt.Errorf("resolve stale defines edges: %w", err)
	}

	callsEdges, err := GetCallsEdgesForFiles(ctx, u.querier, staleFilePaths)
	if err != nil {
		return DeletionSet{}, fmt.Errorf("resolve stale calls edges: %w", err)
	}

	deletions := DeletionSet{}
	for _, id := range fileIDs {
		deletions.FileIDs = append(deletions.FileIDs, id)
	}
	for _, ids := range functionIDsByFile {
		deletions.FunctionIDs = append(deletions.FunctionIDs, ids...)
	}
	for _, ids := range typeIDsByFile {
		deletions.TypeIDs = append(deletions.TypeIDs, ids...)
	}
	for _, ids := range definesEdgeIDsByFile {
		deletions.DefinesEdgeIDs = append(deletions.DefinesEdgeIDs, ids...)
	}
	for _, e := range callsEdges {
		deletions.CallsEdgeIDs = append(deletions.CallsEdgeIDs, e.ID)
	}

	return deletions, nil
}

// backendQuerier adapts a storage.Backend to the tools.Querier
// interface the project_meta helpers were written against, so the updater
// can reuse them directly instead of duplicating their Datalog.
type backendQuerier struct {
	backend storage.Backend
}

func (q *backendQuerier) Query(ctx context.Context, script string) (*tools.QueryResult, error) {
	res, err := q.backend.Query(ctx, script)
	if err != nil {
		return nil, err
	}
	return &tools.QueryResult{Headers: res.Headers, Rows: res.Rows}, nil
}

func (q *backendQuerier) QueryRaw(ctx context.Context, script string) (map[string]any, error) {
	res, err := q.Query(ctx, script)
	if err != nil {
		return nil, err
	}
	return map[string]any{"headers": res.Headers, "rows": res.Rows}, nil
}
