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
	"regexp"
)

// impurityPatterns match syntax that disqualifies a function from being
// pure: printing, file and environment access, network and database
// calls, randomness, clock reads, and a `global` declaration. They
// overlap TaintAnalyzer's sink categories but do not cover user input
// or external API clients.
var impurityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(fmt\.Print(ln|f)?\(|console\.log\(|\bprint\()`),
	regexp.MustCompile(`(?i)\b(os\.(Open|ReadFile|WriteFile|Getenv)|ioutil\.)`),
	regexp.MustCompile(`(?i)\b(http\.(Get|Post)\(|net\.Dial|fetch\()`),
	regexp.MustCompile(`(?i)(\.Query\(|\.Exec\(|\bdb\.Run)`),
	regexp.MustCompile(`(?i)\b(rand\.|Math\.random\()`),
	regexp.MustCompile(`(?i)\b(time\.Now\(\)|Date\.now\(\))`),
	regexp.MustCompile(`(?i)\bglobal\s`),
}

// PurityAnalyzer classifies each function as "pure" or "impure" based on
// whether its code text references I/O, shared mutable state, or any
// other non-deterministic input. This is a syntactic approximation, not a
// dataflow proof: a function with no matched pattern is marked pure even
// though it may call an impure function elsewhere.
type PurityAnalyzer struct{}

// NewPurityAnalyzer creates a PurityAnalyzer.
func NewPurityAnalyzer() *PurityAnalyzer {
	return &PurityAnalyzer{}
}

// Name identifies this analyzer in logs and error wrapping.
func (a *PurityAnalyzer) Name() string { return "purity" }

// Run emits exactly one Finding per function: "pure" or "impure".
func (a *PurityAnalyzer) Run(_ context.Context, functions []FunctionEntity) (PartialBatch, error) {
	var out PartialBatch
	for _, fn := range functions {
		category := "pure"
		detail := ""
		for _, p := range impurityPatterns {
			if m := p.FindString(fn.CodeText); m != "" {
				category = "impure"
				detail = m
				break
			}
		}
		out.Findings = append(out.Findings, Finding{
			FunctionID: fn.ID,
			Category:   "purity:" + category,
			Detail:     detail,
			Line:       fn.StartLine,
		})
	}
	return out, nil
}
