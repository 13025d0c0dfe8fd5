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

	"github.com/kraklabs/cie-engine/pkg/storage"
)

// Finding is a single observation an Analyzer attaches to a function:
// a taint sink, a purity verdict, or a pattern match. Category is
// analyzer-specific (e.g. "network", "pure", "singleton").
type Finding struct {
	FunctionID string
	Category   string
	Detail     string
	Line       int
}

// PartialBatch is the output of a single Analyzer pass, combined with the
// other registered analyzers' output before being written to storage.
type PartialBatch struct {
	Findings []Finding
}

// Analyzer runs a single semantic or pattern check over a batch of
// extracted functions. Analyzers never mutate their input and must be safe
// to run concurrently with other Analyzers over the same batch.
type Analyzer interface {
	Name() string
	Run(ctx context.Context, functions []FunctionEntity) (PartialBatch, error)
}

// DefaultAnalyzers returns the fixed set of analyzers a Coordinator runs
// during PhaseExtracting. Order doesn't matter: each analyzer only reads
// FunctionEntity.CodeText.
func DefaultAnalyzers() []Analyzer {
	return []Analyzer{
		NewTaintAnalyzer(),
		NewPurityAnalyzer(),
		NewPatternAnalyzer(),
	}
}

// RunAnalyzers runs every analyzer over functions and merges their
// findings. A single analyzer's error doesn't abort the others.
func RunAnalyzers(ctx context.Context, analyzers []Analyzer, functions []FunctionEntity) ([]Finding, []error) {
	var findings []Finding
	var errs []error
	for _, a := range analyzers {
		batch, err := a.Run(ctx, functions)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
			continue
		}
		findings = append(findings, batch.Findings...)
	}
	return findings, errs
}

// WriteFindings persists analyzer findings to cie_analysis_finding. Safe to
// call with an empty slice.
func WriteFindings(ctx context.Context, backend *storage.EmbeddedBackend, findings []Finding) error {
	if len(findings) == 0 {
		return nil
	}

	rows := make([]string, len(findings))
	for i, f := range findings {
		id := fmt.Sprintf("finding:%s:%s:%d", f.FunctionID, f.Category, i)
		rows[i] = fmt.Sprintf("[%s, %s, %s, %s, %d]",
			quoteString(id), quoteString(f.FunctionID), quoteString(f.Category), quoteString(f.Detail), f.Line)
	}
	script := fmt.Sprintf("?[id, function_id, category, detail, line] <- [%s] :put cie_analysis_finding {id => function_id, category, detail, line}\n", joinRows(rows))
	return backend.Execute(ctx, script)
}
