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
	"strings"
)

// designPatternSignature pairs a pattern name with a heuristic matched
// against a function's name and code text.
type designPatternSignature struct {
	name    string
	namePat *regexp.Regexp
	bodyPat *regexp.Regexp
}

// designPatternSignatures enumerates the structural patterns PatternAnalyzer
// recognizes. Matches are name/shape heuristics, not a proof of intent.
var designPatternSignatures = []designPatternSignature{
	{
		name:    "singleton",
		namePat: regexp.MustCompile(`(?i)^(get)?instance$|^new\w*singleton`),
		bodyPat: regexp.MustCompile(`(?i)sync\.Once|if\s+instance\s*==\s*nil`),
	},
	{
		name:    "factory",
		namePat: regexp.MustCompile(`(?i)^new[A-Z]|^create[A-Z]|factory`),
	},
	{
		name:    "builder",
		namePat: regexp.MustCompile(`(?i)builder$|^with[A-Z]`),
	},
	{
		name:    "observer",
		namePat: regexp.MustCompile(`(?i)^(subscribe|notify|addlistener|on[A-Z])`),
	},
	{
		name:    "adapter",
		namePat: regexp.MustCompile(`(?i)adapter$|^wrap[A-Z]`),
	},
	{
		name:    "retry",
		bodyPat: regexp.MustCompile(`(?i)for\s+(attempt|retries|i)\s*:=.*\n.*(retry|backoff)`),
	},
}

// PatternAnalyzer flags functions whose name or body matches a known
// design-pattern shape (singleton, factory, builder, observer, adapter,
// retry loop).
type PatternAnalyzer struct{}

// NewPatternAnalyzer creates a PatternAnalyzer.
func NewPatternAnalyzer() *PatternAnalyzer {
	return &PatternAnalyzer{}
}

// Name identifies this analyzer in logs and error wrapping.
func (a *PatternAnalyzer) Name() string { return "pattern" }

// Run emits one Finding per matched pattern signature; a function may
// match more than one signature (e.g. both factory and builder).
func (a *PatternAnalyzer) Run(_ context.Context, functions []FunctionEntity) (PartialBatch, error) {
	var out PartialBatch
	for _, fn := range functions {
		for _, sig := range designPatternSignatures {
			nameMatch := sig.namePat != nil && sig.namePat.MatchString(fn.Name)
			bodyMatch := sig.bodyPat != nil && sig.bodyPat.MatchString(fn.CodeText)
			if !nameMatch && !bodyMatch {
				continue
			}
			detail := strings.TrimSpace(fn.Name)
			out.Findings = append(out.Findings, Finding{
				FunctionID: fn.ID,
				Category:   "pattern:" + sig.name,
				Detail:     detail,
				Line:       fn.StartLine,
			})
		}
	}
	return out, nil
}
