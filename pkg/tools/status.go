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
package tools

import (
	"context"
	"fmt"
	"strings"
)

// indexCounts aggregates the index-wide totals IndexStatus reports.
type indexCounts struct {
	files          int
	functions      int
	embeddings     int
	justifications int
	hasHNSW        bool
}

// indexStatusState carries one IndexStatus call's context, client, and
// accumulated query errors through its collection and formatting stages.
type indexStatusState struct {
	ctx         context.Context
	client      *Client
	pathPattern string
	errors      []string
}

// IndexStatus reports the health of the local index: entity counts,
// embedding and justification coverage, HNSW readiness, and (with a
// pathPattern) how much of the index a subtree accounts for.
func IndexStatus(ctx context.Context, client *Client, pathPattern string) (*ToolResult, error) {
	state := &indexStatusState{ctx: ctx, client: client, pathPattern: pathPattern}

	var sb strings.Builder
	sb.WriteString("# CIE Index Status\n\n")
	fmt.Fprintf(&sb, "**Project:** `%s`\n\n", client.ProjectID)

	counts := state.collectCounts()
	sb.WriteString(state.formatOverallStats(counts))

	if counts.files == 0 && counts.functions == 0 {
		sb.WriteString(formatEmptyIndexHelp())
		return NewResult(sb.String()), nil
	}

	if pathPattern != "" {
		sb.WriteString(state.formatPathBreakdown(counts))
	} else {
		sb.WriteString(state.formatProjectBreakdown())
	}

	sb.WriteString(state.formatErrors())

	return NewResult(sb.String()), nil
}

// runQuery executes one query, recording a named error instead of
// aborting the status report.
func (s *indexStatusState) runQuery(name, query string) *QueryResult {
	result, err := s.client.Query(s.ctx, query)
	if err != nil {
		s.errors = append(s.errors, fmt.Sprintf("%s: %v", name, err))
		return nil
	}
	return result
}

// countEntities counts via aggregation first, falling back to listing
// rows, which keeps working on stores whose engine build lacks
// aggregates.
func (s *indexStatusState) countEntities(name, countQuery, listQuery string) int {
	result := s.runQuery(name, countQuery)
	if result != nil && len(result.Rows) > 0 {
		if cnt, ok := result.Rows[0][0].(float64); ok {
			return int(cnt)
		}
	}
	result = s.runQuery(name+" (fallback)", listQuery)
	if result != nil {
		return len(result.Rows)
	}
	return 0
}

// collectCounts gathers the index-wide totals.
func (s *indexStatusState) collectCounts() indexCounts {
	counts := indexCounts{
		files: s.countEntities("total files",
			`?[count(f)] := *cie_file { id: f }`,
			`?[id] := *cie_file { id } :limit 10000`),
		functions: s.countEntities("total functions",
			`?[count(f)] := *cie_function { id: f }`,
			`?[id] := *cie_function { id } :limit 10000`),
		embeddings: s.countEntities("embeddings",
			`?[count(f)] := *cie_function_embedding { function_id: f, embedding }, embedding != null`,
			`?[function_id] := *cie_function_embedding { function_id, embedding }, embedding != null :limit 10000`),
		justifications: countJustifications(s.ctx, s.client),
	}

	hnswResult := s.runQuery("hnsw index", `::indices cie_function_embedding`)
	counts.hasHNSW = hnswResult != nil && len(hnswResult.Rows) > 0

	return counts
}

// formatOverallStats renders the whole-index totals and coverage
// warnings.
func (s *indexStatusState) formatOverallStats(counts indexCounts) string {
	var sb strings.Builder

	sb.WriteString("## Overall Index\n")
	fmt.Fprintf(&sb, "- **Files:** %d\n", counts.files)
	fmt.Fprintf(&sb, "- **Functions:** %d\n", counts.functions)
	fmt.Fprintf(&sb, "- **Embeddings:** %d", counts.embeddings)
	if counts.functions > 0 {
		fmt.Fprintf(&sb, " (%.0f%%)", float64(counts.embeddings)/float64(counts.functions)*100)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "- **Justifications:** %d", counts.justifications)
	if entityTotal := counts.files + counts.functions; entityTotal > 0 && counts.justifications > 0 {
		fmt.Fprintf(&sb, " (%.0f%% of files+functions)", float64(counts.justifications)/float64(entityTotal)*100)
	}
	sb.WriteString("\n")

	if counts.hasHNSW {
		sb.WriteString("- **HNSW Index:** ready\n")
	} else if counts.embeddings > 0 {
		sb.WriteString("- **HNSW Index:** not created (semantic search may be slow)\n")
	}

	if counts.embeddings == 0 && counts.functions > 0 {
		sb.WriteString("\n**No embeddings found.** Semantic search will use the text fallback.\n")
		sb.WriteString("To enable it, start the embedding service and re-run `cie index`.\n")
	} else if counts.embeddings > 0 && !counts.hasHNSW {
		sb.WriteString("\n**HNSW index missing.** Re-run `cie index` to rebuild it.\n")
	}
	if counts.justifications == 0 && counts.functions > 0 {
		sb.WriteString("\nNo justifications stored yet. Run `cie justify` to infer entity purposes.\n")
	}

	return sb.String()
}

// formatEmptyIndexHelp explains a zero-entity index.
func formatEmptyIndexHelp() string {
	var sb strings.Builder
	sb.WriteString("\n**Index is empty!**\n\n")
	sb.WriteString("### Possible causes:\n")
	sb.WriteString("1. The project hasn't been indexed yet\n")
	sb.WriteString("2. The store belongs to a different project root\n")
	sb.WriteString("3. Every file was excluded by the ignore patterns\n\n")
	sb.WriteString("### How to fix:\n")
	sb.WriteString("```bash\n")
	sb.WriteString("# Run indexing from the project root:\n")
	sb.WriteString("cie index\n")
	sb.WriteString("```\n")
	return sb.String()
}

// formatPathBreakdown reports file/function counts for one subtree
// against the index totals.
func (s *indexStatusState) formatPathBreakdown(totals indexCounts) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n## Path: `%s`\n", s.pathPattern)

	pathFiles := s.countEntities("path files",
		fmt.Sprintf(`?[count(f)] := *cie_file { id: f, path }, regex_matches(path, %q)`, s.pathPattern),
		fmt.Sprintf(`?[id] := *cie_file { id, path }, regex_matches(path, %q) :limit 10000`, s.pathPattern))
	pathFuncs := s.countEntities("path functions",
		fmt.Sprintf(`?[count(f)] := *cie_function { id: f, file_path }, regex_matches(file_path, %q)`, s.pathPattern),
		fmt.Sprintf(`?[id] := *cie_function { id, file_path }, regex_matches(file_path, %q) :limit 10000`, s.pathPattern))

	fmt.Fprintf(&sb, "- **Files:** %d\n", pathFiles)
	fmt.Fprintf(&sb, "- **Functions:** %d\n", pathFuncs)

	if pathFiles == 0 && pathFuncs == 0 {
		sb.WriteString("\n**No files indexed for this path.**\n\n")
		sb.WriteString("Possible causes:\n")
		fmt.Fprintf(&sb, "1. Pattern `%s` doesn't match any file in the project\n", s.pathPattern)
		sb.WriteString("2. Files in this path were excluded by `.cie/project.yaml` ignore patterns\n")
		sb.WriteString("3. Files are in a format the parsers don't support\n\n")
		sb.WriteString("Use ListFiles to see what paths are actually indexed, or try a broader pattern.\n")
		return sb.String()
	}

	filePercent, funcPercent := 0.0, 0.0
	if totals.files > 0 {
		filePercent = float64(pathFiles) / float64(totals.files) * 100
	}
	if totals.functions > 0 {
		funcPercent = float64(pathFuncs) / float64(totals.functions) * 100
	}
	fmt.Fprintf(&sb, "\n_This path represents %.1f%% of files and %.1f%% of functions_\n", filePercent, funcPercent)

	sampleFiles := s.runQuery("sample files", fmt.Sprintf(`?[path] := *cie_file { path }, regex_matches(path, %q) :limit 10`, s.pathPattern))
	if sampleFiles != nil && len(sampleFiles.Rows) > 0 {
		sb.WriteString("\n### Sample indexed files:\n")
		for i, row := range sampleFiles.Rows {
			if i >= 5 {
				fmt.Fprintf(&sb, "_... and %d more_\n", len(sampleFiles.Rows)-5)
				break
			}
			fmt.Fprintf(&sb, "- `%s`\n", row[0])
		}
	}

	return sb.String()
}

// formatProjectBreakdown reports the whole-index language and directory
// distribution.
func (s *indexStatusState) formatProjectBreakdown() string {
	var sb strings.Builder

	langQuery := `?[lang, count(f)] := *cie_file { id: f, language: lang } :order -count(f) :limit 10`
	if langResult := s.runQuery("languages", langQuery); langResult != nil && len(langResult.Rows) > 0 {
		sb.WriteString("\n### By Language:\n")
		for _, row := range langResult.Rows {
			fmt.Fprintf(&sb, "- %s: %v files\n", row[0], row[1])
		}
	}

	filesResult := s.runQuery("files for dirs", `?[path] := *cie_file { path } :limit 500`)
	if filesResult != nil && len(filesResult.Rows) > 0 {
		dirs := make(map[string]int)
		for _, row := range filesResult.Rows {
			if fp, ok := row[0].(string); ok {
				dirs[ExtractTopDir(fp)]++
			}
		}
		sb.WriteString("\n### Top Directories:\n")
		for dir, count := range dirs {
			fmt.Fprintf(&sb, "- `%s/`: %d files\n", dir, count)
		}
	}

	return sb.String()
}

// formatErrors renders the accumulated query errors, empty when
// everything succeeded.
func (s *indexStatusState) formatErrors() string {
	if len(s.errors) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n---\n### Query Errors\n")
	for _, e := range s.errors {
		fmt.Fprintf(&sb, "- %s\n", e)
	}
	sb.WriteString("\nSome queries failed. The store may be missing relations from an older\n")
	sb.WriteString("index; re-run `cie index` to refresh the schema.\n")
	return sb.String()
}
