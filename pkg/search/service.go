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
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/cie-engine/pkg/llm"
	"github.com/kraklabs/cie-engine/pkg/storage"
)

const (
	defaultResultLimit  = 30
	defaultCandidatesK  = 50
	filenameBoostFactor = 1.5
	semanticBoostFactor = 1.1
	snippetContextLines = 2
)

// Config wires the collaborators a Service needs. LexicalBaseURL, when
// set, points at an external lexical backend; when empty the lexical leg
// falls back to an in-process regex scan via FallbackLexicalSearch.
type Config struct {
	Backend         storage.Backend
	Embedder        EmbeddingProvider
	Provider        llm.Provider
	LexicalBaseURL  string
	Logger          *slog.Logger
	EnableExpansion bool
	EnableSynthesis bool
}

// Service runs the hybrid search pipeline: intent classification, query
// expansion, business-scope narrowing, the semantic and lexical legs, RRF
// fusion, enrichment, boosts, normalization, and optional synthesis.
type Service struct {
	backend  storage.Backend
	embedder EmbeddingProvider
	provider llm.Provider
	lexical  *LexicalClient
	logger   *slog.Logger

	enableExpansion bool
	enableSynthesis bool
}

// NewService builds a Service from cfg.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var lexical *LexicalClient
	if cfg.LexicalBaseURL != "" {
		lexical = NewLexicalClient(cfg.LexicalBaseURL)
	}
	return &Service{
		backend:         cfg.Backend,
		embedder:        cfg.Embedder,
		provider:        cfg.Provider,
		lexical:         lexical,
		logger:          logger,
		enableExpansion: cfg.EnableExpansion,
		enableSynthesis: cfg.EnableSynthesis,
	}
}

// Request describes one search call.
type Request struct {
	Query         string
	Limit         int
	BusinessScope string // optional feature_context substring to restrict results to
	FilePattern   string // optional path filter passed to the lexical backend
}

// Result is one ranked, enriched hit.
type Result struct {
	FunctionID     string
	FunctionName   string
	FilePath       string
	Signature      string
	StartLine      int
	Score          float64
	PurposeSummary string
	Patterns       []string
	TopCallers     []string
	IncomingCalls  int
	Snippet        string
}

// Response is the full result of a Search call.
type Response struct {
	Intent    Intent
	Results   []Result
	Synthesis string
}

// Search runs the full hybrid pipeline for req.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultResultLimit
	}

	searchStart := time.Now()
	intent := ClassifyIntent(req.Query)

	var scopedFiles []string
	if req.BusinessScope != "" {
		files, err := ResolveBusinessScope(ctx, s.backend, req.BusinessScope)
		if err != nil {
			s.logger.Warn("search.scope.error", "err", err)
		} else {
			scopedFiles = files
		}
	}

	queryTerms := []string{req.Query}
	if s.enableExpansion {
		queryTerms = ExpandQuery(ctx, s.provider, req.Query)
	}

	semanticHits, semanticErr := s.runSemanticLeg(ctx, queryTerms, defaultCandidatesK, scopedFiles)
	if semanticErr != nil {
		s.logger.Warn("search.semantic.error", "err", semanticErr)
		recordSemanticError()
	}

	lexicalResults, lexicalErr := s.runLexicalLeg(ctx, req.Query, req.FilePattern, scopedFiles, defaultCandidatesK)
	if lexicalErr != nil {
		s.logger.Warn("search.lexical.error", "err", lexicalErr)
	}

	semanticRanks := make(map[string]int, len(semanticHits))
	hitsByFunctionID := make(map[string]SemanticHit, len(semanticHits))
	for i, hit := range semanticHits {
		semanticRanks[hit.FilePath] = i + 1
		hitsByFunctionID[hit.FunctionID] = hit
	}

	lexicalRanks := make(map[string]int, len(lexicalResults))
	for i, r := range lexicalResults {
		lexicalRanks[r.FileName] = i + 1
	}

	scores := Fuse(intent, semanticRanks, lexicalRanks)

	results := s.buildResults(ctx, scores, hitsByFunctionID, req.Query)
	normalizeAndSort(results)
	if len(results) > limit {
		results = results[:limit]
	}

	resp := &Response{Intent: intent, Results: results}
	if s.enableSynthesis && IsQuestion(req.Query) {
		resp.Synthesis = s.synthesize(ctx, req.Query, results)
		if resp.Synthesis != "" {
			recordSynthesis()
		}
	}
	recordSearch(intent, time.Since(searchStart).Seconds(), len(resp.Results))
	return resp, nil
}

// runSemanticLeg embeds and searches once per expanded query term, merging
// hits by function ID and keeping each function's best (lowest) distance.
func (s *Service) runSemanticLeg(ctx context.Context, queryTerms []string, k int, scopedFiles []string) ([]SemanticHit, error) {
	if s.embedder == nil {
		return nil, nil
	}
	allowed := fileSet(scopedFiles)

	best := make(map[string]SemanticHit)
	var firstErr error
	for _, term := range queryTerms {
		hits, err := semanticLeg(ctx, s.backend, s.embedder, term, k)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, hit := range hits {
			if len(allowed) > 0 && !allowed[hit.FilePath] {
				continue
			}
			if existing, ok := best[hit.FunctionID]; !ok || hit.Distance < existing.Distance {
				best[hit.FunctionID] = hit
			}
		}
	}
	if len(best) == 0 {
		return nil, firstErr
	}

	out := make([]SemanticHit, 0, len(best))
	for _, hit := range best {
		out = append(out, hit)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// runLexicalLeg prefers the external lexical backend, falling back to the
// in-process regex scan when no backend is configured or it errors.
func (s *Service) runLexicalLeg(ctx context.Context, query, filePattern string, scopedFiles []string, k int) ([]LexicalFileResult, error) {
	if s.lexical != nil {
		results, err := s.lexical.Search(ctx, query, filePattern, k)
		if err == nil {
			return results, nil
		}
		s.logger.Warn("search.lexical.backend.degraded", "err", err)
		recordLexicalDegraded()
	}
	return FallbackLexicalSearch(ctx, s.backend, query, scopedFiles, k)
}

func fileSet(paths []string) map[string]bool {
	if len(paths) == 0 {
		return nil
	}
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}

// buildResults turns fused per-file scores into enriched Results. When a
// file's score came (at least in part) from the semantic leg, the
// function that leg surfaced anchors the result; a file reached only by
// the lexical leg carries no function-level metadata.
func (s *Service) buildResults(ctx context.Context, scores map[string]float64, hitsByFunctionID map[string]SemanticHit, query string) []Result {
	hitByFile := make(map[string]SemanticHit, len(hitsByFunctionID))
	for _, hit := range hitsByFunctionID {
		if existing, ok := hitByFile[hit.FilePath]; !ok || hit.Distance < existing.Distance {
			hitByFile[hit.FilePath] = hit
		}
	}

	results := make([]Result, 0, len(scores))
	for filePath, score := range scores {
		r := Result{FilePath: filePath, Score: score}
		hit, hasHit := hitByFile[filePath]
		if hasHit {
			r.FunctionID = hit.FunctionID
			r.FunctionName = hit.FunctionName
			r.Signature = hit.Signature
			r.StartLine = hit.StartLine
			r.Score *= semanticBoostFactor
		}
		if IsFilenameQuery(query) && strings.Contains(strings.ToLower(filePath), strings.ToLower(query)) {
			r.Score *= filenameBoostFactor
		}
		if hasHit {
			e, err := enrichFunction(ctx, s.backend, hit.FunctionID, hit.FunctionName)
			if err != nil {
				s.logger.Warn("search.enrich.error", "err", err, "function_id", hit.FunctionID)
			} else {
				r.PurposeSummary = e.purposeSummary
				r.Patterns = e.patterns
				r.TopCallers = e.topCallers
				r.IncomingCalls = e.incomingCalls
				r.Score *= popularityBoost(e.incomingCalls)
			}
		}
		results = append(results, r)
	}
	return results
}

// normalizeAndSort divides every score by the maximum score (so the top
// result is always 1.0) and sorts descending.
func normalizeAndSort(results []Result) {
	var max float64
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}
	if max > 0 {
		for i := range results {
			results[i].Score /= max
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}

// synthesize asks the provider for a short Markdown answer to query,
// grounded in the top results and cited with [n] markers referencing
// their order in results.
func (s *Service) synthesize(ctx context.Context, query string, results []Result) string {
	if s.provider == nil || len(results) == 0 {
		return ""
	}
	top := results
	if len(top) > 5 {
		top = top[:5]
	}

	var sb strings.Builder
	sb.WriteString("Question: " + query + "\n\nSources:\n")
	for i, r := range top {
		fmt.Fprintf(&sb, "[%d] %s", i+1, r.FilePath)
		if r.FunctionName != "" {
			fmt.Fprintf(&sb, " (%s)", r.FunctionName)
		}
		if r.PurposeSummary != "" {
			fmt.Fprintf(&sb, ": %s", r.PurposeSummary)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nAnswer the question in a few sentences using only the sources above, citing each claim with its [n] marker.")

	resp, err := s.provider.Generate(ctx, llm.GenerateRequest{Prompt: sb.String()})
	if err != nil || resp == nil {
		return ""
	}
	return strings.TrimSpace(resp.Text)
}
