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

// RepoSource describes where the repository to index comes from.
type RepoSource struct {
	// Type is the source kind: currently only "local_path" is supported.
	Type string

	// Value is interpreted according to Type. For "local_path" it is an
	// absolute or relative filesystem path.
	Value string
}

// ConcurrencyConfig controls the number of parallel workers used during
// parsing and embedding generation.
type ConcurrencyConfig struct {
	ParseWorkers int
	EmbedWorkers int
}

// IngestionConfig controls how a repository is parsed, embedded, and written
// to local storage.
type IngestionConfig struct {
	// ParserMode selects treesitter, simplified regex-based parsing, or auto
	// (selects treesitter; a file that fails to parse is recorded as a parse
	// error and is not retried with the simplified parser).
	ParserMode ParserMode

	// EmbeddingProvider selects the embedding backend: "openai", "nomic",
	// "ollama", or "mock".
	EmbeddingProvider string

	// EmbeddingDimensions is the vector size the store's embedding
	// relations are created with. Must match what the provider emits
	// and stays fixed for the store's lifetime; zero uses the storage
	// default.
	EmbeddingDimensions int

	// MaxFileSizeBytes skips files larger than this during repository
	// loading.
	MaxFileSizeBytes int64

	// MaxCodeTextBytes truncates stored function/type source text beyond
	// this size.
	MaxCodeTextBytes int64

	// IncludeGlobs, when non-empty, restricts loading to files matching
	// at least one pattern (relative to repo root). Exclusion wins when
	// a file matches both lists.
	IncludeGlobs []string

	// ExcludeGlobs are glob patterns (relative to repo root) skipped during
	// loading. The list is used as given: a non-empty value replaces the
	// defaults from DefaultConfig rather than adding to them (cmd/cie
	// appends its patterns to DefaultConfig's list itself).
	ExcludeGlobs []string

	// Concurrency controls parse and embedding worker pool sizes.
	Concurrency ConcurrencyConfig

	// LocalDataDir is the CozoDB data directory. Defaults to
	// ~/.cie/data/<project_id> when empty.
	LocalDataDir string

	// LocalEngine selects the CozoDB storage engine: "rocksdb", "sqlite",
	// or "mem".
	LocalEngine string

	// BatchTargetMutations is the approximate number of mutations per
	// CozoScript batch sent to the database.
	BatchTargetMutations int

	// CheckpointPath is the directory used to persist incremental indexing
	// checkpoints between runs.
	CheckpointPath string
}

// Config is the top-level configuration for an indexing run.
type Config struct {
	ProjectID       string
	RepoSource      RepoSource
	IngestionConfig IngestionConfig
}

// DefaultConfig returns sensible defaults for local indexing. Callers
// typically override ExcludeGlobs, Concurrency, and the embedding provider
// to match the target project.
func DefaultConfig() IngestionConfig {
	return IngestionConfig{
		ParserMode:           ParserModeAuto,
		EmbeddingProvider:    "mock",
		MaxFileSizeBytes:     1024 * 1024,
		MaxCodeTextBytes:     100 * 1024,
		BatchTargetMutations: 2000,
		LocalEngine:          "rocksdb",
		Concurrency: ConcurrencyConfig{
			ParseWorkers: 4,
			EmbedWorkers: 8,
		},
		ExcludeGlobs: []string{
			".git/**",
			"node_modules/**",
			"vendor/**",
			"dist/**",
			"build/**",
			".next/**",
			"*.min.js",
			"*.lock",
			"*.generated.go",
			"**/*.pb.go",
		},
	}
}
