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

// Stored-state lookups the incremental updater runs before retiring a
// changed or deleted file's rows: which entity and edge IDs the store
// currently attributes to a set of file paths. Every function takes the
// full path set and issues one query, so a large change set doesn't
// turn into a query per file.

package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/kraklabs/cie-engine/pkg/tools"
)

// orEquals renders `(field = "a" or field = "b" ...)` for a value set,
// the disjunction shape these lookups filter on. Exact equality is
// deliberate: paths come from the store itself, so there is nothing
// fuzzy to match.
func orEquals(field string, values []string) string {
	conditions := make([]string, len(values))
	for i, v := range values {
		conditions[i] = fmt.Sprintf("%s = %q", field, v)
	}
	return "(" + strings.Join(conditions, " or ") + ")"
}

// groupByFile collects two-column (id, key) rows into key -> []id.
func groupByFile(rows [][]any) map[string][]string {
	out := make(map[string][]string)
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		id := tools.AnyToString(row[0])
		key := tools.AnyToString(row[1])
		out[key] = append(out[key], id)
	}
	return out
}

// GetFileIDsForPaths resolves file paths to their stored file IDs.
func GetFileIDsForPaths(ctx context.Context, client tools.Querier, filePaths []string) (map[string]string, error) {
	if len(filePaths) == 0 {
		return make(map[string]string), nil
	}

	script := fmt.Sprintf(`?[id, path] := *cie_file { id, path }, %s`, orEquals("path", filePaths))
	result, err := client.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("query file IDs: %w", err)
	}

	byPath := make(map[string]string, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) < 2 {
			continue
		}
		byPath[tools.AnyToString(row[1])] = tools.AnyToString(row[0])
	}
	return byPath, nil
}

// GetFunctionIDsForFiles returns file_path -> []function_id for every
// function the store attributes to one of filePaths.
func GetFunctionIDsForFiles(ctx context.Context, client tools.Querier, filePaths []string) (map[string][]string, error) {
	if len(filePaths) == 0 {
		return make(map[string][]string), nil
	}

	script := fmt.Sprintf(`?[id, file_path] := *cie_function { id, file_path }, %s`, orEquals("file_path", filePaths))
	result, err := client.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("query function IDs: %w", err)
	}
	return groupByFile(result.Rows), nil
}

// GetTypeIDsForFiles returns file_path -> []type_id for every type the
// store attributes to one of filePaths.
func GetTypeIDsForFiles(ctx context.Context, client tools.Querier, filePaths []string) (map[string][]string, error) {
	if len(filePaths) == 0 {
		return make(map[string][]string), nil
	}

	script := fmt.Sprintf(`?[id, file_path] := *cie_type { id, file_path }, %s`, orEquals("file_path", filePaths))
	result, err := client.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("query type IDs: %w", err)
	}
	return groupByFile(result.Rows), nil
}

// GetDefinesEdgesForFiles returns file_id -> []defines_edge_id for the
// given file paths, resolving paths to IDs first since cie_defines is
// keyed by file ID.
func GetDefinesEdgesForFiles(ctx context.Context, client tools.Querier, filePaths []string) (map[string][]string, error) {
	if len(filePaths) == 0 {
		return make(map[string][]string), nil
	}

	fileIDs, err := GetFileIDsForPaths(ctx, client, filePaths)
	if err != nil {
		return nil, err
	}
	if len(fileIDs) == 0 {
		return make(map[string][]string), nil
	}

	ids := make([]string, 0, len(fileIDs))
	for _, id := range fileIDs {
		ids = append(ids, id)
	}

	script := fmt.Sprintf(`?[id, file_id] := *cie_defines { id, file_id }, %s`, orEquals("file_id", ids))
	result, err := client.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("query defines edges: %w", err)
	}
	return groupByFile(result.Rows), nil
}

// StoredCallsEdge is a call edge as the store holds it, with the edge ID
// the deletion path removes by. CallsEdge (types.go) carries no ID
// because extraction hasn't assigned one yet.
type StoredCallsEdge struct {
	ID       string
	CallerID string
	CalleeID string
}

// GetCallsEdgesForFiles returns every call edge whose caller is defined
// in one of filePaths, so stale edges leave with the functions that
// owned them.
func GetCallsEdgesForFiles(ctx context.Context, client tools.Querier, filePaths []string) ([]StoredCallsEdge, error) {
	if len(filePaths) == 0 {
		return nil, nil
	}

	script := fmt.Sprintf(`?[call_id, caller_id, callee_id] :=
	  *cie_calls { id: call_id, caller_id, callee_id },
	  *cie_function { id: caller_id, file_path },
	  %s`, orEquals("file_path", filePaths))

	result, err := client.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("query calls edges: %w", err)
	}

	edges := make([]StoredCallsEdge, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) < 3 {
			continue
		}
		edges = append(edges, StoredCallsEdge{
			ID:       tools.AnyToString(row[0]),
			CallerID: tools.AnyToString(row[1]),
			CalleeID: tools.AnyToString(row[2]),
		})
	}
	return edges, nil
}
