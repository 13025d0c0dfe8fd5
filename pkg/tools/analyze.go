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
	"regexp"
	"sort"
	"strings"

	"github.com/kraklabs/cie-engine/pkg/llm"
)

// AnalyzeArgs holds arguments for the analyze tool.
type AnalyzeArgs struct {
	Question    string
	PathPattern string
	Role        string // "source" (default, excludes tests), "test", "any"
}

// embeddingConfigProvider is implemented by clients that carry an
// embedding endpoint (see Client). Analyze accepts a bare Querier, so
// the embedding configuration is discovered by assertion: a client
// without one degrades to keyword search.
type embeddingConfigProvider interface {
	EmbeddingConfig() (url, model string)
}

// llmConfigProvider is implemented by clients that carry an LLM
// provider for narrative generation.
type llmConfigProvider interface {
	LLMConfig() (provider llm.Provider, maxTokens int)
}

// EmbeddingConfig returns the configured embedding endpoint.
func (c *Client) EmbeddingConfig() (string, string) {
	return c.EmbeddingURL, c.EmbeddingModel
}

// LLMConfig returns the configured LLM provider and token budget.
func (c *Client) LLMConfig() (llm.Provider, int) {
	return c.LLM, c.LLMMaxTokens
}

// relevantFunction holds a function found via semantic search with its
// code and, when the justify pass has run, its stored purpose.
type relevantFunction struct {
	Name       string
	FilePath   string
	StartLine  string
	Signature  string
	Code       string
	Purpose    string
	Similarity float64
	StubInfo   *StubDetection // nil if not a stub
}

// StubDetection records whether a function appears to be a stub or
// unimplemented placeholder, so analysis output doesn't present scaffolding
// as real functionality.
//
// The heuristics cover common stub idioms across languages:
//   - Go: "not implemented" errors, panics, ErrNotImplemented returns
//   - Python: NotImplementedError exceptions
//   - Rust: todo!() and unimplemented!() macros
//   - Java: UnsupportedOperationException
//   - Generic: empty bodies, trivial returns, minimal code lines
type StubDetection struct {
	// IsStub indicates whether the function is detected as a stub.
	IsStub bool

	// Reason explains the classification, e.g. "raises NotImplementedError".
	Reason string

	// Patterns lists the specific stub patterns that matched.
	Patterns []string
}

// detectStub analyzes function code to determine if it's likely a stub.
func detectStub(code, filePath string) *StubDetection {
	if code == "" {
		return nil
	}

	lang := detectLanguage(filePath)

	var matchedPatterns []string

	// Strong indicators flag a stub regardless of code length.
	strongPatterns := []struct {
		pattern *regexp.Regexp
		name    string
		langs   []string // empty means all languages
	}{
		// Go
		{regexp.MustCompile(`(?i)return\s+(fmt\.Errorf|errors\.New)\s*\(\s*["'].*not\s+implemented`), "returns 'not implemented' error", []string{"go"}},
		{regexp.MustCompile(`(?i)panic\s*\(\s*["'].*not\s+implemented`), "panics with 'not implemented'", []string{"go"}},
		{regexp.MustCompile(`(?i)return\s+ErrNotImplemented`), "returns ErrNotImplemented", []string{"go"}},

		// Python
		{regexp.MustCompile(`(?i)raise\s+NotImplementedError`), "raises NotImplementedError", []string{"python"}},

		// Rust
		{regexp.MustCompile(`(?i)\btodo!\s*\(`), "uses todo!()", []string{"rust"}},
		{regexp.MustCompile(`(?i)\bunimplemented!\s*\(`), "uses unimplemented!()", []string{"rust"}},

		// Java
		{regexp.MustCompile(`(?i)throw\s+new\s+UnsupportedOperationException`), "throws UnsupportedOperationException", []string{"java"}},

		// Generic (all languages)
		{regexp.MustCompile(`(?i)throw\s+new\s+Error\s*\(\s*["'].*not\s+implemented`), "throws 'not implemented' error", nil},
		{regexp.MustCompile(`(?i)["']not\s+implemented["']`), "contains 'not implemented' string", nil},
	}

	for _, sp := range strongPatterns {
		if !langApplies(sp.langs, lang) {
			continue
		}
		if sp.pattern.MatchString(code) {
			matchedPatterns = append(matchedPatterns, sp.name)
		}
	}

	if len(matchedPatterns) > 0 {
		return &StubDetection{
			IsStub:   true,
			Reason:   fmt.Sprintf("Function %s", strings.Join(matchedPatterns, ", ")),
			Patterns: matchedPatterns,
		}
	}

	// Weak indicators only count when the body is nearly empty.
	codeLines := countCodeLines(code)
	if codeLines > 3 {
		return nil
	}

	weakPatterns := []struct {
		pattern *regexp.Regexp
		name    string
		langs   []string
	}{
		// Go: trivial returns
		{regexp.MustCompile(`^\s*return\s+nil\s*$`), "only returns nil", []string{"go"}},
		{regexp.MustCompile(`^\s*return\s*$`), "empty return", []string{"go"}},

		// Python: empty body
		{regexp.MustCompile(`^\s*pass\s*$`), "only contains 'pass'", []string{"python"}},
		{regexp.MustCompile(`^\s*\.\.\.\s*$`), "only contains '...' (ellipsis)", []string{"python"}},
		{regexp.MustCompile(`^\s*return\s+None\s*$`), "only returns None", []string{"python"}},

		// JavaScript/TypeScript: empty or trivial
		{regexp.MustCompile(`^\s*return\s*;\s*$`), "empty return", []string{"typescript", "javascript"}},
		{regexp.MustCompile(`^\s*return\s+undefined\s*;?\s*$`), "returns undefined", []string{"typescript", "javascript"}},
		{regexp.MustCompile(`^\s*return\s+null\s*;?\s*$`), "returns null", []string{"typescript", "javascript"}},
	}

	for _, wp := range weakPatterns {
		if !langApplies(wp.langs, lang) {
			continue
		}
		for _, line := range strings.Split(code, "\n") {
			if wp.pattern.MatchString(line) {
				matchedPatterns = append(matchedPatterns, wp.name)
				break
			}
		}
	}

	if len(matchedPatterns) > 0 {
		return &StubDetection{
			IsStub:   true,
			Reason:   fmt.Sprintf("Very short function (%d lines) that %s", codeLines, strings.Join(matchedPatterns, ", ")),
			Patterns: matchedPatterns,
		}
	}

	return nil
}

func langApplies(langs []string, lang string) bool {
	if len(langs) == 0 {
		return true
	}
	for _, l := range langs {
		if l == lang {
			return true
		}
	}
	return false
}

// countCodeLines counts non-empty, non-comment lines in code.
func countCodeLines(code string) int {
	lines := strings.Split(code, "\n")
	count := 0
	inBlockComment := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			continue
		}

		if strings.Contains(trimmed, "/*") {
			inBlockComment = true
		}
		if strings.Contains(trimmed, "*/") {
			inBlockComment = false
			continue
		}
		if inBlockComment {
			continue
		}

		if strings.HasPrefix(trimmed, "//") ||
			strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "--") {
			continue
		}

		// Rough heuristic for signature and brace-only lines.
		if strings.HasPrefix(trimmed, "func ") ||
			strings.HasPrefix(trimmed, "def ") ||
			strings.HasPrefix(trimmed, "function ") ||
			strings.HasPrefix(trimmed, "async ") ||
			trimmed == "{" || trimmed == "}" ||
			trimmed == "(" || trimmed == ")" {
			continue
		}

		count++
	}

	return count
}

// analyzeState accumulates the sections and errors of one Analyze call
// as it moves through its stages: index stats, semantic search, keyword
// fallback, question-driven pattern sections, final assembly.
type analyzeState struct {
	args AnalyzeArgs

	sections []string
	errors   []string

	localizedFuncs []relevantFunction
	globalFuncs    []relevantFunction
	searchFailed   bool
}

// Analyze answers an architectural question about the codebase by
// combining index statistics, semantic search, keyword matching, and
// (when the client carries an LLM) a generated narrative grounded in the
// retrieved code.
func Analyze(ctx context.Context, client Querier, args AnalyzeArgs) (*ToolResult, error) {
	if args.Question == "" {
		return NewError("Error: 'question' is required"), nil
	}
	if args.Role == "" {
		// Architectural questions are about implementation, not tests.
		args.Role = "source"
	}

	state := &analyzeState{args: args}

	state.addIndexStats(ctx, client)
	state.performSemanticSearch(ctx, client)
	state.formatSemanticResults()
	state.performKeywordFallback(ctx, client)
	state.addPatternSections(ctx, client)

	return state.buildOutput(ctx, client)
}

// runQuery executes one query, recording a named error instead of
// failing the whole analysis.
func (s *analyzeState) runQuery(ctx context.Context, client Querier, name, query string) *QueryResult {
	result, err := client.Query(ctx, query)
	if err != nil {
		s.errors = append(s.errors, fmt.Sprintf("%s: %v", name, err))
		return nil
	}
	return result
}

// addIndexStats prepends the index size so the reader can judge how
// much ground the analysis covers.
func (s *analyzeState) addIndexStats(ctx context.Context, client Querier) {
	fileCount := countWithFallback(ctx, client, "file count",
		`?[count(f)] := *cie_file { id: f }`,
		`?[id] := *cie_file { id } :limit 10000`)
	funcCount := countWithFallback(ctx, client, "function count",
		`?[count(f)] := *cie_function { id: f }`,
		`?[id] := *cie_function { id } :limit 10000`)

	stats := "## Index Status\n"
	stats += fmt.Sprintf("- Files indexed: %d\n", fileCount)
	stats += fmt.Sprintf("- Functions indexed: %d\n", funcCount)
	s.sections = append(s.sections, stats)
}

// performSemanticSearch runs the localized (path-scoped) and global
// semantic legs when the client carries an embedding endpoint, marking
// searchFailed otherwise so the keyword fallback takes over.
func (s *analyzeState) performSemanticSearch(ctx context.Context, client Querier) {
	var url, model string
	if cfg, ok := client.(embeddingConfigProvider); ok {
		url, model = cfg.EmbeddingConfig()
	}
	if url == "" || model == "" {
		s.errors = append(s.errors, fmt.Sprintf("embedding not configured (url=%q, model=%q) - using keyword fallback", url, model))
		s.searchFailed = true
		return
	}

	if s.args.PathPattern != "" {
		funcs, err := findRelevantFunctionsLocalized(ctx, client, s.args.Question, s.args.PathPattern, s.args.Role, 10)
		if err != nil {
			s.errors = append(s.errors, fmt.Sprintf("localized semantic search: %v", err))
		} else {
			s.localizedFuncs = funcs
		}
	}

	// A global pass adds context around the scoped hits; keep it small
	// when the scoped search already produced results.
	globalLimit := 10
	if len(s.localizedFuncs) > 0 {
		globalLimit = 5
	}
	funcs, err := findRelevantFunctions(ctx, client, s.args.Question, "", s.args.Role, globalLimit)
	if err != nil {
		s.errors = append(s.errors, fmt.Sprintf("global semantic search: %v", err))
	} else {
		s.globalFuncs = funcs
	}

	if len(s.localizedFuncs) == 0 && len(s.globalFuncs) == 0 {
		s.searchFailed = true
	}
}

// formatSemanticResults renders the semantic hits into sections,
// scoped results first.
func (s *analyzeState) formatSemanticResults() {
	if len(s.localizedFuncs) > 0 {
		header := fmt.Sprintf("## Semantically Relevant (in %s)\n\n", s.args.PathPattern)
		s.sections = append(s.sections, header+formatFunctionList(s.localizedFuncs))
	}
	if len(s.globalFuncs) > 0 {
		s.sections = append(s.sections, "## Semantically Relevant (global)\n\n"+formatFunctionList(s.globalFuncs))
	}
}

// formatFunctionList renders semantic hits as a numbered list with
// similarity, location, and stub/purpose annotations.
func formatFunctionList(funcs []relevantFunction) string {
	var sb strings.Builder
	for i, f := range funcs {
		stubMarker := ""
		if f.StubInfo != nil && f.StubInfo.IsStub {
			stubMarker = " [STUB]"
		}
		fmt.Fprintf(&sb, "%d. **%s**%s (%.0f%% similar)\n", i+1, f.Name, stubMarker, f.Similarity*100)
		fmt.Fprintf(&sb, "   - File: `%s:%s`\n", f.FilePath, f.StartLine)
		if f.Signature != "" && len(f.Signature) < 120 {
			fmt.Fprintf(&sb, "   - Signature: `%s`\n", f.Signature)
		}
		if f.Purpose != "" {
			fmt.Fprintf(&sb, "   - Purpose: %s\n", f.Purpose)
		}
		if f.StubInfo != nil && f.StubInfo.IsStub {
			fmt.Fprintf(&sb, "   - **Not implemented:** %s\n", f.StubInfo.Reason)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// buildKeywordPattern joins up to five terms into a case-insensitive
// alternation. Terms are used verbatim; callers escape if needed.
func buildKeywordPattern(terms []string) string {
	if len(terms) > 5 {
		terms = terms[:5]
	}
	return "(?i)(" + strings.Join(terms, "|") + ")"
}

// performKeywordFallback searches function names and bodies for the
// question's key terms. Runs only when the semantic legs produced
// nothing.
func (s *analyzeState) performKeywordFallback(ctx context.Context, client Querier) {
	if !s.searchFailed {
		return
	}
	terms := ExtractKeyTerms(s.args.Question)
	if len(terms) == 0 {
		return
	}
	pattern := buildKeywordPattern(terms)

	query := fmt.Sprintf(`?[name, file_path, start_line] := *cie_function { name, file_path, start_line }, regex_matches(name, %q) :limit 30`, pattern)
	if s.args.PathPattern != "" {
		query = fmt.Sprintf(`?[name, file_path, start_line] := *cie_function { name, file_path, start_line }, regex_matches(name, %q), regex_matches(file_path, %q) :limit 30`, pattern, s.args.PathPattern)
	}
	if result := s.runQuery(ctx, client, "keyword name search", query); result != nil && len(result.Rows) > 0 {
		s.sections = append(s.sections, "## Functions Matching Keywords (name)\n"+FormatRows(result.Rows))
	}

	codeQuery := fmt.Sprintf(`?[name, file_path, start_line] := *cie_function { id, name, file_path, start_line }, *cie_function_code { function_id: id, code_text }, regex_matches(code_text, %q) :limit 30`, pattern)
	if s.args.PathPattern != "" {
		codeQuery = fmt.Sprintf(`?[name, file_path, start_line] := *cie_function { id, name, file_path, start_line }, *cie_function_code { function_id: id, code_text }, regex_matches(code_text, %q), regex_matches(file_path, %q) :limit 30`, pattern, s.args.PathPattern)
	}
	if result := s.runQuery(ctx, client, "keyword code search", codeQuery); result != nil && len(result.Rows) > 0 {
		s.sections = append(s.sections, "## Functions Matching Keywords (code)\n"+FormatRows(result.Rows))
	}
}

// addPatternSections adds question-driven structural sections: entry
// points, routes, directory layout.
func (s *analyzeState) addPatternSections(ctx context.Context, client Querier) {
	questionLower := strings.ToLower(s.args.Question)

	testExcludeFilter := ""
	if s.args.Role == "source" {
		testExcludeFilter = `, negate(regex_matches(file_path, "(?i)(_test[.]go|test[.]ts|test[.]js|_test[.]py|/tests/|/__tests__/)"))`
	}

	if ContainsAny(questionLower, []string{"entry", "main", "start", "begin", "bootstrap", "init"}) {
		query := fmt.Sprintf(`?[name, file_path, start_line] := *cie_function { name, file_path, start_line }, name == "main"%s :limit 20`, testExcludeFilter)
		if s.args.PathPattern != "" {
			query = fmt.Sprintf(`?[name, file_path, start_line] := *cie_function { name, file_path, start_line }, name == "main", regex_matches(file_path, %q)%s :limit 20`, s.args.PathPattern, testExcludeFilter)
		}
		if result := s.runQuery(ctx, client, "main functions", query); result != nil && len(result.Rows) > 0 {
			s.sections = append(s.sections, "## Main Functions (Entry Points)\n"+FormatRows(result.Rows))
		}
	}

	if ContainsAny(questionLower, []string{"route", "endpoint", "http", "api", "rest", "url", "path"}) {
		query := fmt.Sprintf(`?[name, file_path, start_line] := *cie_function { id, name, file_path, start_line }, *cie_function_code { function_id: id, code_text }, regex_matches(code_text, "[.](GET|POST|PUT|DELETE|PATCH|Handle)[(]")%s :limit 20`, testExcludeFilter)
		if s.args.PathPattern != "" {
			query = fmt.Sprintf(`?[name, file_path, start_line] := *cie_function { id, name, file_path, start_line }, *cie_function_code { function_id: id, code_text }, regex_matches(code_text, "[.](GET|POST|PUT|DELETE|PATCH|Handle)[(]"), regex_matches(file_path, %q)%s :limit 20`, s.args.PathPattern, testExcludeFilter)
		}
		if result := s.runQuery(ctx, client, "route functions", query); result != nil && len(result.Rows) > 0 {
			s.sections = append(s.sections, "## Functions with Route Definitions\n"+FormatRows(result.Rows))
		}
	}

	if ContainsAny(questionLower, []string{"architect", "structure", "organiz", "layout", "folder", "director"}) {
		query := `?[path] := *cie_file { path } :limit 100`
		if s.args.PathPattern != "" {
			query = fmt.Sprintf(`?[path] := *cie_file { path }, regex_matches(path, %q) :limit 100`, s.args.PathPattern)
		}
		if result := s.runQuery(ctx, client, "files", query); result != nil && len(result.Rows) > 0 {
			dirs := make(map[string]int)
			for _, row := range result.Rows {
				if fp, ok := row[0].(string); ok {
					dirs[ExtractDir(fp)]++
				}
			}
			dirList := "## Directory Structure\n"
			for dir, count := range dirs {
				dirList += fmt.Sprintf("- `%s/` (%d files)\n", dir, count)
			}
			s.sections = append(s.sections, dirList)
		}
	}
}

// buildOutput assembles the final report and, when the client carries
// an LLM provider, prepends a generated narrative grounded in the
// retrieved code.
func (s *analyzeState) buildOutput(ctx context.Context, client Querier) (*ToolResult, error) {
	output := fmt.Sprintf("# Analysis: %s\n\n", s.args.Question)
	if s.args.PathPattern != "" {
		output += fmt.Sprintf("_Scope: `%s`_\n\n", s.args.PathPattern)
	}
	if s.args.Role == "source" {
		output += "_Filtering: excluding test files_\n\n"
	}

	if len(s.sections) <= 1 && len(s.globalFuncs) == 0 {
		output += "**No relevant results found.**\n\n"
		output += "### Suggestions:\n"
		output += "- Try rephrasing your question\n"
		output += "- Add a `path_pattern` to focus the search\n"
		output += "- Use SemanticSearch directly for more control\n\n"
	}

	for _, section := range s.sections {
		output += section + "\n"
	}

	if len(s.errors) > 0 {
		output += "\n---\n### Query Issues\n"
		for _, e := range s.errors {
			output += fmt.Sprintf("- %s\n", e)
		}
	}

	allFuncs := append(append([]relevantFunction{}, s.localizedFuncs...), s.globalFuncs...)

	var provider llm.Provider
	maxTokens := 0
	if cfg, ok := client.(llmConfigProvider); ok {
		provider, maxTokens = cfg.LLMConfig()
	}

	if provider != nil && (len(s.sections) > 1 || len(allFuncs) > 0) {
		codeContext := buildCodeContext(allFuncs)
		narrative, err := generateNarrativeWithCode(ctx, provider, s.args.Question, output, codeContext, maxTokens)
		if err != nil {
			output += fmt.Sprintf("\n---\n_LLM narrative generation failed: %v_\n", err)
		} else if narrative != "" {
			title := fmt.Sprintf("# Analysis: %s\n\n", s.args.Question)
			output = title + narrative + "\n\n---\n\n## Raw Analysis Data\n\n" + strings.TrimPrefix(output, title)
		}
	} else if provider == nil {
		output += "\n---\n_Note: LLM not configured. Run `cie init` to enable narrative generation._\n"
	}

	return NewResult(output), nil
}

// findRelevantFunctions finds the functions semantically closest to
// question via the HNSW index, post-filtered by path and role.
func findRelevantFunctions(ctx context.Context, client Querier, question, pathPattern, role string, limit int) ([]relevantFunction, error) {
	embedding, err := queryEmbedding(ctx, client, question)
	if err != nil {
		return nil, err
	}

	// Over-fetch so post-filtering still leaves enough candidates.
	vecLiteral := formatEmbeddingForCozoDB(embedding)
	queryK := 500
	ef := 500

	script := fmt.Sprintf(`?[name, file_path, signature, start_line, distance] :=
		~cie_function_embedding:hnsw_idx { function_id | query: q, k: %d, ef: %d, bind_distance: distance },
		q = %s,
		*cie_function { id: function_id, name, file_path, signature, start_line }
		:order distance
		:limit %d`, queryK, ef, vecLiteral, queryK)

	result, err := client.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("HNSW query: %w", err)
	}

	if len(result.Rows) == 0 {
		return nil, nil
	}

	result.Rows = postFilterByPath(result.Rows, pathPattern, role, question, "", true)
	if len(result.Rows) > limit {
		result.Rows = result.Rows[:limit]
	}

	var funcs []relevantFunction
	for _, row := range result.Rows {
		f := relevantFunctionFromRow(row)

		code, err := getFunctionCodeByName(ctx, client, f.Name, f.FilePath)
		if err == nil && code != "" {
			if len(code) > 2000 {
				code = code[:2000] + "\n// ... (truncated)"
			}
			f.Code = code
			f.StubInfo = detectStub(code, f.FilePath)
		}
		f.Purpose = getFunctionPurposeByName(ctx, client, f.Name, f.FilePath)

		funcs = append(funcs, f)
	}

	return funcs, nil
}

// findRelevantFunctionsLocalized does semantic search restricted to a
// path pattern, with a much larger candidate pool (the scoped files may
// rank far down globally) and keyword boosting on function names.
func findRelevantFunctionsLocalized(ctx context.Context, client Querier, question, pathPattern, role string, limit int) ([]relevantFunction, error) {
	if pathPattern == "" {
		return nil, nil
	}

	embedding, err := queryEmbedding(ctx, client, question)
	if err != nil {
		return nil, err
	}

	vecLiteral := formatEmbeddingForCozoDB(embedding)
	queryK := 5000
	ef := 5000

	script := fmt.Sprintf(`?[name, file_path, signature, start_line, distance] :=
		~cie_function_embedding:hnsw_idx { function_id | query: q, k: %d, ef: %d, bind_distance: distance },
		q = %s,
		*cie_function { id: function_id, name, file_path, signature, start_line }
		:order distance
		:limit %d`, queryK, ef, vecLiteral, queryK)

	result, err := client.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("HNSW query: %w", err)
	}

	if len(result.Rows) == 0 {
		return nil, nil
	}

	result.Rows = postFilterByPath(result.Rows, pathPattern, role, question, "", true)

	// Keep twice the requested count for re-ranking.
	candidateLimit := limit * 2
	if len(result.Rows) > candidateLimit {
		result.Rows = result.Rows[:candidateLimit]
	}

	keyTerms := ExtractKeyTerms(question)

	var funcs []relevantFunction
	for _, row := range result.Rows {
		f := relevantFunctionFromRow(row)

		// Boost hits whose names echo the question's terms.
		nameLower := strings.ToLower(f.Name)
		for _, term := range keyTerms {
			if strings.Contains(nameLower, strings.ToLower(term)) {
				f.Similarity += 0.15
			}
		}
		if f.Similarity > 1.0 {
			f.Similarity = 1.0
		}

		funcs = append(funcs, f)
	}

	sort.Slice(funcs, func(i, j int) bool {
		return funcs[i].Similarity > funcs[j].Similarity
	})
	if len(funcs) > limit {
		funcs = funcs[:limit]
	}

	// Fetch code for the final results only (the expensive part).
	for i := range funcs {
		code, err := getFunctionCodeByName(ctx, client, funcs[i].Name, funcs[i].FilePath)
		if err == nil && code != "" {
			if len(code) > 2000 {
				code = code[:2000] + "\n// ... (truncated)"
			}
			funcs[i].Code = code
			funcs[i].StubInfo = detectStub(code, funcs[i].FilePath)
		}
		funcs[i].Purpose = getFunctionPurposeByName(ctx, client, funcs[i].Name, funcs[i].FilePath)
	}

	return funcs, nil
}

// queryEmbedding vectorizes question through the client's configured
// embedding endpoint, erroring when the client has none.
func queryEmbedding(ctx context.Context, client Querier, question string) ([]float64, error) {
	cfg, ok := client.(embeddingConfigProvider)
	if !ok {
		return nil, fmt.Errorf("embedding not configured")
	}
	url, model := cfg.EmbeddingConfig()
	if url == "" || model == "" {
		return nil, fmt.Errorf("embedding not configured (url=%q, model=%q)", url, model)
	}

	embedding, err := generateEmbedding(ctx, url, model, question)
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}
	return embedding, nil
}

func relevantFunctionFromRow(row []any) relevantFunction {
	distance := 0.0
	if d, ok := row[4].(float64); ok {
		distance = d
	}
	return relevantFunction{
		Name:       AnyToString(row[0]),
		FilePath:   AnyToString(row[1]),
		Signature:  AnyToString(row[2]),
		StartLine:  AnyToString(row[3]),
		Similarity: 1.0 - distance,
	}
}

// getFunctionPurposeByName returns the stored justification purpose for a
// function, empty when the justify pass hasn't covered it.
func getFunctionPurposeByName(ctx context.Context, client Querier, name, filePath string) string {
	script := fmt.Sprintf(`?[purpose_summary] :=
		*cie_function { id, name, file_path },
		*cie_justification { entity_id: id, purpose_summary },
		name == %q, file_path == %q
		:limit 1`, name, filePath)

	result, err := client.Query(ctx, script)
	if err != nil || len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return ""
	}
	return AnyToString(result.Rows[0][0])
}

// getFunctionCodeByName retrieves the code text for one function,
// disambiguated by file path.
func getFunctionCodeByName(ctx context.Context, client Querier, name, filePath string) (string, error) {
	script := fmt.Sprintf(`?[code_text] :=
		*cie_function { id, name, file_path },
		*cie_function_code { function_id: id, code_text },
		name == %q, file_path == %q
		:limit 1`, name, filePath)

	result, err := client.Query(ctx, script)
	if err != nil {
		return "", err
	}

	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return "", nil
	}

	return AnyToString(result.Rows[0][0]), nil
}

// buildCodeContext formats the retrieved function bodies for the LLM
// prompt, stubs marked so the model doesn't present them as working code.
func buildCodeContext(funcs []relevantFunction) string {
	if len(funcs) == 0 {
		return ""
	}

	var sb strings.Builder
	var stubCount int

	for _, f := range funcs {
		if f.StubInfo != nil && f.StubInfo.IsStub {
			stubCount++
		}
	}

	sb.WriteString("\n\n## Relevant Code\n\n")

	if stubCount > 0 {
		fmt.Fprintf(&sb, "**WARNING: %d function(s) detected as stubs/not implemented. See [STUB] markers below.**\n\n", stubCount)
	}

	for i, f := range funcs {
		if f.Code == "" {
			continue
		}

		if f.StubInfo != nil && f.StubInfo.IsStub {
			fmt.Fprintf(&sb, "### %d. %s [STUB] (%s:%s)\n", i+1, f.Name, f.FilePath, f.StartLine)
			fmt.Fprintf(&sb, "**Stub reason:** %s\n\n", f.StubInfo.Reason)
		} else {
			fmt.Fprintf(&sb, "### %d. %s (%s:%s)\n", i+1, f.Name, f.FilePath, f.StartLine)
		}

		lang := detectLanguage(f.FilePath)
		if lang == "unknown" {
			lang = "go"
		}
		fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", lang, f.Code)
	}

	return sb.String()
}

// generateNarrativeWithCode asks the LLM provider for an answer grounded
// strictly in the retrieved analysis data and code snippets.
func generateNarrativeWithCode(ctx context.Context, provider llm.Provider, question, analysisData, codeContext string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	prompt := fmt.Sprintf(`Analyze this codebase to answer the user's question.

**User Question:** %s

**Analysis Data:**
%s
%s

**Instructions:**
- Answer the user's question directly and thoroughly (3-5 paragraphs)
- Reference specific function names and file paths from the results
- When explaining code, use ONLY the actual snippets provided in the "Relevant Code" section above
- NEVER invent, generate, or create placeholder code snippets - only quote from what is provided
- If you need to show code, copy it EXACTLY from the provided snippets
- Identify patterns, relationships, and architectural decisions
- Be specific - mention actual names, not generic descriptions
- If the question asks about a specific topic, focus your explanation on that topic

**CRITICAL - Stub Detection:**
- Functions marked with [STUB] are NOT actually implemented - they return errors like "not implemented" or have empty bodies
- DO NOT claim these functions provide real functionality - they are placeholders
- When comparing implementations, clearly distinguish between real implementations and stubs
- If a feature appears to exist structurally but is marked as STUB, report it as "not implemented" or "placeholder only"`, question, analysisData, codeContext)

	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "You are a senior software architect analyzing code. Provide clear, specific, and thorough explanations. Always reference actual function and file names from the provided data."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}

	return "## Summary\n\n" + resp.Message.Content, nil
}

// countWithFallback tries a count aggregation first, then falls back to
// counting listed rows.
func countWithFallback(ctx context.Context, client Querier, name, countQuery, listQuery string) int {
	result, err := client.Query(ctx, countQuery)
	if err == nil && len(result.Rows) > 0 {
		if cnt, ok := result.Rows[0][0].(float64); ok {
			return int(cnt)
		}
	}
	result, err = client.Query(ctx, listQuery)
	if err == nil {
		return len(result.Rows)
	}
	return 0
}
