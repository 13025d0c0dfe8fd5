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
	"math"
	"strings"

	"github.com/kraklabs/cie-engine/pkg/storage"
)

const topCallersLimit = 3

// enrichment holds everything attached to a result beyond its raw score:
// justification text, detected design patterns, top incoming callers, and
// incoming call count (the popularity signal the boost uses).
type enrichment struct {
	purposeSummary string
	patterns       []string
	topCallers     []string
	incomingCalls  int
}

// enrichFunction gathers justification, pattern findings, and caller/
// popularity data for a single function in as few queries as the caller
// batches for (callers shares FindCallers' bind-then-filter convention).
func enrichFunction(ctx context.Context, backend storage.Backend, functionID, functionName string) (enrichment, error) {
	var e enrichment

	if purpose, err := queryJustificationSummary(ctx, backend, functionID); err == nil {
		e.purposeSummary = purpose
	}

	patterns, err := queryPatternFindings(ctx, backend, functionID)
	if err != nil {
		return e, fmt.Errorf("query pattern findings: %w", err)
	}
	e.patterns = patterns

	callers, incoming, err := queryCallersAndPopularity(ctx, backend, functionID)
	if err != nil {
		return e, fmt.Errorf("query callers: %w", err)
	}
	e.topCallers = callers
	e.incomingCalls = incoming

	return e, nil
}

func queryJustificationSummary(ctx context.Context, backend storage.Backend, entityID string) (string, error) {
	script := fmt.Sprintf(`?[purpose_summary] := *cie_justification { entity_id, purpose_summary },
	entity_id = %s
:limit 1`, quoteLiteral(entityID))
	result, err := backend.Query(ctx, script)
	if err != nil {
		return "", err
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return "", nil
	}
	s, _ := result.Rows[0][0].(string)
	return s, nil
}

// queryPatternFindings returns the design-pattern names analyze_pattern.go
// recorded for functionID (category values of the form "pattern:<name>").
func queryPatternFindings(ctx context.Context, backend storage.Backend, functionID string) ([]string, error) {
	script := fmt.Sprintf(`?[category] := *cie_analysis_finding { function_id, category },
	function_id = %s`, quoteLiteral(functionID))
	result, err := backend.Query(ctx, script)
	if err != nil {
		return nil, err
	}
	var patterns []string
	for _, row := range result.Rows {
		if len(row) == 0 {
			continue
		}
		cat, _ := row[0].(string)
		if name, ok := strings.CutPrefix(cat, "pattern:"); ok {
			patterns = append(patterns, name)
		}
	}
	return patterns, nil
}

// queryCallersAndPopularity returns up to topCallersLimit caller names and
// the total incoming call count for functionID, mirroring FindCallers'
// bind-then-filter query shape.
func queryCallersAndPopularity(ctx context.Context, backend storage.Backend, functionID string) ([]string, int, error) {
	script := fmt.Sprintf(`?[caller_name] := *cie_calls { caller_id, callee_id },
	*cie_function { id: caller_id, name: caller_name },
	callee_id = %s`, quoteLiteral(functionID))
	result, err := backend.Query(ctx, script)
	if err != nil {
		return nil, 0, err
	}
	names := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) == 0 {
			continue
		}
		if name, ok := row[0].(string); ok {
			names = append(names, name)
		}
	}
	top := names
	if len(top) > topCallersLimit {
		top = top[:topCallersLimit]
	}
	return top, len(names), nil
}

// popularityBoost grows logarithmically with incoming call count so a
// handful of extra callers don't dominate a relevance-based score.
func popularityBoost(incomingCalls int) float64 {
	return 1 + 0.1*math.Log2(1+float64(incomingCalls))
}

// quoteLiteral escapes a value for inclusion in a CozoScript string literal.
func quoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
