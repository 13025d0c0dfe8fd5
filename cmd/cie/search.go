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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	cieerrors "github.com/kraklabs/cie-engine/internal/errors"
	"github.com/kraklabs/cie-engine/internal/output"
	"github.com/kraklabs/cie-engine/pkg/ingestion"
	"github.com/kraklabs/cie-engine/pkg/search"
)

// runSearch executes the 'search' CLI command: classify the query's
// intent, run the semantic and lexical retrieval legs, fuse them with
// Reciprocal Rank Fusion, and print the ranked, enriched results.
//
// Flags:
//   - --limit N: Maximum results (default 30)
//   - --scope CONTEXT: Restrict to files whose justification matches a feature context
//   - --file-pattern PAT: Path filter for the lexical leg
//   - --expand: Ask the LLM for query synonyms and merge their results
//   - --answer: Synthesize a cited Markdown answer for question queries
//   - --lexical-url URL: External lexical backend (default: in-process scan)
//   - --json: Machine-readable output
func runSearch(args []string, configPath string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	limit := fs.Int("limit", 0, "Maximum results (default 30)")
	scope := fs.String("scope", "", "Business/feature context to restrict results to")
	filePattern := fs.String("file-pattern", "", "Path filter for the lexical leg")
	expand := fs.Bool("expand", false, "Expand the query with LLM-generated synonyms")
	answer := fs.Bool("answer", false, "Synthesize a cited answer for question queries")
	lexicalURL := fs.String("lexical-url", "", "External lexical backend URL (default: in-process scan)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie search [options] <query>

Hybrid search over the local index: a semantic (embedding) leg and a
lexical leg fused with Reciprocal Rank Fusion, tuned by the query's
detected intent (definition, usage, conceptual, keyword).

Examples:
  cie search "class UserService"           Definition lookup
  cie search "who calls findById"          Usage lookup
  cie search --answer "how does auth work" Conceptual question with synthesis
  cie search --scope billing "invoice"     Restrict to the billing feature

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		cieerrors.FatalError(err, *jsonOutput)
	}

	logLevel := slog.LevelWarn
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	backend := openProjectBackend(cfg)
	defer func() { _ = backend.Close() }()

	provider := buildLLMProvider(cfg, false, logger)

	// The search-time embedder must match the one the index was built
	// with; a dead embedder degrades the semantic leg, not the search.
	var embedder search.EmbeddingProvider
	switch cfg.Embedding.Provider {
	case "ollama":
		os.Setenv("OLLAMA_BASE_URL", cfg.Embedding.BaseURL)
		os.Setenv("OLLAMA_EMBED_MODEL", cfg.Embedding.Model)
	case "openai":
		os.Setenv("OPENAI_API_BASE", cfg.Embedding.BaseURL)
		os.Setenv("OPENAI_EMBED_MODEL", cfg.Embedding.Model)
	}
	if p, err := ingestion.CreateEmbeddingProvider(mapEmbeddingProvider(cfg.Embedding.Provider), logger); err != nil {
		logger.Warn("search.embedder.unavailable", "err", err)
	} else {
		embedder = p
	}

	svc := search.NewService(search.Config{
		Backend:         backend,
		Embedder:        embedder,
		Provider:        provider,
		LexicalBaseURL:  *lexicalURL,
		Logger:          logger,
		EnableExpansion: *expand,
		EnableSynthesis: *answer,
	})

	resp, err := svc.Search(context.Background(), search.Request{
		Query:         query,
		Limit:         *limit,
		BusinessScope: *scope,
		FilePattern:   *filePattern,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: search failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		printSearchJSON(resp)
		return
	}
	printSearchResults(query, resp)
}

func printSearchJSON(resp *search.Response) {
	_ = output.JSON(resp)
}

func printSearchResults(query string, resp *search.Response) {
	fmt.Printf("Results for %q (intent: %s)\n\n", query, resp.Intent)

	if len(resp.Results) == 0 {
		fmt.Println("No results. Try a broader query, or run 'cie index' if the project changed.")
		return
	}

	for i, r := range resp.Results {
		fmt.Printf("%2d. %s", i+1, r.FilePath)
		if r.FunctionName != "" {
			fmt.Printf("  %s", r.FunctionName)
		}
		fmt.Printf("  (score %.3f)\n", r.Score)
		if r.Signature != "" {
			fmt.Printf("    %s\n", r.Signature)
		}
		if r.PurposeSummary != "" {
			fmt.Printf("    purpose: %s\n", r.PurposeSummary)
		}
		if len(r.Patterns) > 0 {
			fmt.Printf("    patterns: %s\n", strings.Join(r.Patterns, ", "))
		}
		if r.IncomingCalls > 0 {
			fmt.Printf("    callers: %d", r.IncomingCalls)
			if len(r.TopCallers) > 0 {
				fmt.Printf(" (top: %s)", strings.Join(r.TopCallers, ", "))
			}
			fmt.Println()
		}
		if r.Snippet != "" {
			fmt.Printf("    | %s\n", strings.ReplaceAll(strings.TrimSpace(r.Snippet), "\n", "\n    | "))
		}
		fmt.Println()
	}

	if resp.Synthesis != "" {
		fmt.Println("---")
		fmt.Println(resp.Synthesis)
	}
}
