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

// Package ingestion provides the code indexing pipeline for CIE.
//
// The ingestion package parses source code, extracts semantic information
// (functions, types, calls), runs per-function analyzers, generates
// embeddings, and writes everything to the local store for code
// intelligence queries.
//
// # Pipeline Overview
//
// A Coordinator drives each run through five explicit phases:
//
//  1. Scanning: enumerate eligible files against include/exclude globs
//  2. Parsing: Tree-sitter ASTs per file, in a bounded worker pool
//  3. Extracting: cross-file call resolution, analyzers, embeddings
//  4. Writing: delete-then-insert batches against the store, per file
//  5. Complete: final progress event and summary
//
// Phase transitions and per-file progress stream to a caller-supplied
// channel, and every run appends start/complete (and per-file deletion)
// entries to the change ledger.
//
// # Supported Languages
//
// The following languages are fully supported with Tree-sitter parsing:
//   - Go (.go)
//   - Python (.py)
//   - TypeScript (.ts, .tsx)
//   - JavaScript (.js, .jsx)
//
// Additionally, Protocol Buffers (.proto) are supported via regex parsing.
//
// Each language parser extracts:
//   - Functions/methods with signatures and bodies
//   - Types, interfaces, classes, and structs
//   - Function call relationships
//   - File and package metadata
//
// # Quick Start
//
// Create and run a coordinator with progress reporting:
//
//	events := make(chan ingestion.ProgressEvent, 16)
//	coordinator, err := ingestion.NewCoordinator(ingestion.Config{
//	    ProjectID: "my-project",
//	    RepoSource: ingestion.RepoSource{
//	        Type:  "local_path",
//	        Value: "/path/to/code",
//	    },
//	    IngestionConfig: ingestion.DefaultConfig(),
//	}, logger, events)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer coordinator.Close()
//
//	result, err := coordinator.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Indexed %d files, %d functions\n",
//	    result.FilesProcessed, result.FunctionsExtracted)
//
// Callers that don't need progress events can use the LocalPipeline
// wrapper, which runs a Coordinator with a nil sink.
//
// # Key Components
//
// Coordinator owns one run end-to-end; RunIncremental classifies every
// scanned file against the stored hashes (added, modified, unchanged,
// deleted) and only re-processes what changed:
//
//	result, err := coordinator.RunIncremental(ctx)
//
// IncrementalUpdater does the hash-diff classification and assembles the
// deletion sets the writer retires before inserting replacements.
//
// GraphWriter commits extracted entities with delete-before-insert
// ordering, serializing embedding writes process-wide (the HNSW index
// builder doesn't tolerate concurrent batch inserts).
//
// CallResolver builds the global symbol registry and resolves cross-file
// calls through each file's import map; calls that resolve to well-known
// built-ins or external symbols get GhostNode placeholders from a
// GhostResolver instead of dangling edges.
//
// Analyzers (taint, purity, design patterns) run over extracted
// functions during the extracting phase and persist findings rows.
//
// Batcher splits large Datalog scripts into manageable chunks:
//
//	batcher := ingestion.NewBatcher(1000, 2*1024*1024)
//	batches, err := batcher.Batch(script)
//
// EmbeddingGenerator produces semantic embeddings concurrently, retrying
// transient provider errors; an entity whose embedding still fails is
// kept with an empty vector (there is no fallback to another provider).
// Supported providers: OpenAI, Nomic, Ollama, and Mock for testing.
//
// RepoLoader loads code from git repositories or local paths:
//
//	repoLoader := ingestion.NewRepoLoader(logger)
//	result, err := repoLoader.LoadRepository(repoSource, includeGlobs, excludeGlobs, maxFileSizeBytes)
//	defer repoLoader.Close()  // Cleans up temp directories
//
// # Configuration
//
// The pipeline is configured through Config and IngestionConfig:
//
//	config := &ingestion.Config{
//	    ProjectID: "my-project",
//	    RepoSource: ingestion.RepoSource{
//	        Type:  "local_path",
//	        Value: "/path/to/code",
//	    },
//	    IngestionConfig: ingestion.IngestionConfig{
//	        ParserMode:        "auto",           // "treesitter", "simplified", "auto"
//	        EmbeddingProvider: "ollama",         // "openai", "nomic", "ollama", "mock"
//	        MaxFileSizeBytes:  1024 * 1024,      // 1MB default
//	        MaxCodeTextBytes:  100 * 1024,       // 100KB default
//	        IncludeGlobs:      []string{"src/**"},
//	        ExcludeGlobs: []string{
//	            "node_modules/**",
//	            ".git/**",
//	            "vendor/**",
//	        },
//	        Concurrency: ingestion.ConcurrencyConfig{
//	            ParseWorkers: 4,
//	            EmbedWorkers: 8,
//	        },
//	        LocalEngine:          "rocksdb",  // "rocksdb", "sqlite", "mem"
//	        BatchTargetMutations: 2000,
//	    },
//	}
//
// Use DefaultConfig() for sensible defaults.
//
// # Incremental Updates
//
// RunIncremental compares each scanned file's content hash against what
// the store recorded; unchanged files are skipped entirely, and a
// repeated run with no changes performs no writes:
//
//	// First run: indexes everything
//	result1, err := coordinator.Run(ctx)
//
//	// Later runs: only changed files are re-parsed and re-embedded
//	result2, err := coordinator.RunIncremental(ctx)
//
// A git-diff fast path (DeltaDetector) is available for callers that
// know the two commits to compare.
//
// # Metrics
//
// Indexing statistics are returned in the IngestionResult (files,
// functions, types, parse errors, per-phase durations), and Prometheus
// counters/histograms are registered for production monitoring.
package ingestion
