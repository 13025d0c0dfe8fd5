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
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kraklabs/cie-engine/internal/bootstrap"
	cieerrors "github.com/kraklabs/cie-engine/internal/errors"
	"github.com/kraklabs/cie-engine/pkg/justify"
	"github.com/kraklabs/cie-engine/pkg/llm"
	"github.com/kraklabs/cie-engine/pkg/storage"
)

// runJustify executes the 'justify' CLI command: walks indexed entities
// in hierarchy order (files, then types, then functions) and infers a
// purpose, business value, and feature context for each, storing the
// result with a confidence score. Low-confidence entities get
// clarification questions queued; --interactive answers them inline.
//
// Flags:
//   - --force: Re-justify entities that already have a justification
//   - --interactive: Answer queued clarification questions after the pass
//   - --skip-llm: Use the name/path heuristic only (no LLM calls)
//   - --stats: Show justification coverage and exit (no inference)
//   - --file PATH: Restrict the pass to entities defined in one file
//   - --model NAME: Override the configured model
//   - --batch N: Questions per interactive batch (default 5)
func runJustify(args []string, configPath string) {
	fs := flag.NewFlagSet("justify", flag.ExitOnError)
	force := fs.Bool("force", false, "Re-justify entities that already have a justification")
	interactive := fs.Bool("interactive", false, "Answer queued clarification questions after the pass")
	skipLLM := fs.Bool("skip-llm", false, "Use the heuristic fallback only (no LLM calls)")
	stats := fs.Bool("stats", false, "Show justification coverage and exit")
	onlyFile := fs.String("file", "", "Restrict to entities defined in this file path")
	model := fs.String("model", "", "Override the configured LLM model")
	batchSize := fs.Int("batch", 5, "Clarification questions per interactive batch")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie justify [options]

Infers purpose and business value for every indexed entity, top-down
(file, then type, then function) so child explanations can cite their
parents. Results are stored in the index and surfaced by search and
status.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		cieerrors.FatalError(err, false)
	}

	logLevel := slog.LevelWarn
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	backend := openProjectBackend(cfg)
	defer func() { _ = backend.Close() }()

	ctx := context.Background()

	if *stats {
		printJustifyStats(ctx, backend)
		return
	}

	provider := buildLLMProvider(cfg, *skipLLM, logger)

	engine := justify.NewEngine(backend, provider, logger, justify.Config{
		Model:    llm.ResolvePreset(*model),
		SkipLLM:  *skipLLM || provider == nil,
		Force:    *force,
		OnlyFile: *onlyFile,
	})

	fmt.Println("Justifying indexed entities...")
	result, err := engine.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: justification failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Justified %d entities (%d clarifications queued", result.EntitiesJustified, result.ClarificationsQueued)
	if result.LLMFailures > 0 {
		fmt.Printf(", %d LLM failures", result.LLMFailures)
	}
	fmt.Println(")")

	if *interactive {
		runClarificationLoop(ctx, engine, *batchSize)
	} else if result.ClarificationsQueued > 0 {
		fmt.Println("Run 'cie justify --interactive' to answer the queued questions.")
	}
}

// openProjectBackend opens the project's local store via the bootstrap
// layer, failing with a helpful message when the project has never been
// indexed.
func openProjectBackend(cfg *Config) *storage.EmbeddedBackend {
	backend, err := bootstrap.OpenProject(bootstrap.ProjectConfig{ProjectID: cfg.ProjectID}, nil)
	if err != nil {
		if strings.Contains(err.Error(), "project not found") {
			fmt.Fprintf(os.Stderr, "Project '%s' is not indexed yet. Run 'cie index' first.\n", cfg.ProjectID)
			os.Exit(1)
		}
		cieerrors.FatalError(cieerrors.NewDatabaseError(
			"Cannot open CIE database",
			err.Error(),
			"Close other CIE instances or run: cie reset --yes",
			err,
		), false)
	}
	if err := backend.EnsureSchema(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: ensure schema: %v\n", err)
		os.Exit(1)
	}
	return backend
}

// buildLLMProvider constructs the configured completion provider, or
// nil when the config disables LLM use, which degrades every entity to
// the heuristic path.
func buildLLMProvider(cfg *Config, skipLLM bool, logger *slog.Logger) llm.Provider {
	if skipLLM || cfg.LLM.SkipLLM || !cfg.LLM.Enabled {
		return nil
	}

	providerType := cfg.LLM.Provider
	if providerType == "" || providerType == "local" {
		providerType = "ollama"
	}

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Type:         providerType,
		BaseURL:      cfg.LLM.BaseURL,
		APIKey:       cfg.LLM.APIKey,
		DefaultModel: cfg.LLM.Model,
	})
	if err != nil {
		logger.Warn("llm.provider.unavailable", "err", err)
		return nil
	}
	return provider
}

// printJustifyStats reports justification coverage without running any
// inference.
func printJustifyStats(ctx context.Context, backend *storage.EmbeddedBackend) {
	total := queryLocalCount(ctx, backend, "cie_file", "id") +
		queryLocalCount(ctx, backend, "cie_type", "id") +
		queryLocalCount(ctx, backend, "cie_function", "id")
	justified := queryLocalCount(ctx, backend, "cie_justification", "id")
	pending := 0

	result, err := backend.Query(ctx, `?[count(id)] := *cie_clarification_question { id, answered }, answered = false`)
	if err == nil && len(result.Rows) > 0 {
		if n, ok := result.Rows[0][0].(float64); ok {
			pending = int(n)
		}
	}

	fmt.Println("=== Justification Coverage ===")
	fmt.Printf("Entities indexed:      %d\n", total)
	fmt.Printf("Entities justified:    %d", justified)
	if total > 0 {
		fmt.Printf(" (%.0f%%)", float64(justified)/float64(total)*100)
	}
	fmt.Println()
	fmt.Printf("Pending clarifications: %d\n", pending)
}

// runClarificationLoop surfaces queued questions batch by batch,
// applying each answer to the stored justification. Answers never lower
// confidence: each one raises the score and marks the field
// user-provided.
func runClarificationLoop(ctx context.Context, engine *justify.Engine, batchSize int) {
	if batchSize <= 0 {
		batchSize = 5
	}
	reader := bufio.NewReader(os.Stdin)
	queue := engine.Queue()
	if err := queue.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot load clarification queue: %v\n", err)
	}

	for {
		batch := queue.NextBatch(batchSize)
		if len(batch) == 0 {
			fmt.Println("No pending clarification questions.")
			return
		}

		fmt.Printf("\n%d question(s); press Enter to skip one, or type 'q' to stop.\n\n", len(batch))
		for _, q := range batch {
			fmt.Printf("[%s] %s\n> ", q.Category, q.Question)
			answer, _ := reader.ReadString('\n')
			answer = strings.TrimSpace(answer)
			if answer == "q" {
				return
			}
			if answer == "" {
				continue
			}
			j, err := engine.ApplyAnswer(ctx, q.ID, q.EntityID, q.Category, answer)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
				continue
			}
			fmt.Printf("  recorded (confidence now %.2f, %s)\n", j.ConfidenceScore, j.ConfidenceLevel)
		}
	}
}
