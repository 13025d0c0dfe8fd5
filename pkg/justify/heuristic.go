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

package justify

import (
	"regexp"
	"strings"
)

// namePatternHint pairs a name/path regex with the purpose it implies.
type namePatternHint struct {
	pattern *regexp.Regexp
	purpose string
}

var namePatternHints = []namePatternHint{
	{regexp.MustCompile(`(?i)^test_|_test$|test$`), "test helper or test case"},
	{regexp.MustCompile(`(?i)^(get|fetch)`), "accessor that retrieves a value"},
	{regexp.MustCompile(`(?i)^(set|update)`), "mutator that updates state"},
	{regexp.MustCompile(`(?i)^(new|create)`), "constructor"},
	{regexp.MustCompile(`(?i)^(is|has|can)`), "predicate check"},
	{regexp.MustCompile(`(?i)^(validate|verify|check)`), "validation routine"},
	{regexp.MustCompile(`(?i)^(handle|on[A-Z])`), "event or request handler"},
	{regexp.MustCompile(`(?i)main\.go$`), "entry point"},
	{regexp.MustCompile(`(?i)_test\.go$`), "test file"},
	{regexp.MustCompile(`(?i)config`), "configuration"},
}

// heuristicJustification builds a low-confidence fallback Justification
// from an entity's name and path alone, used when the LLM is unavailable
// or its response doesn't parse.
func heuristicJustification(ec entityContext) *llmResponse {
	purpose := "unknown purpose"
	for _, h := range namePatternHints {
		if h.pattern.MatchString(ec.entity.Name) || h.pattern.MatchString(ec.entity.FilePath) {
			purpose = h.purpose
			break
		}
	}

	return &llmResponse{
		PurposeSummary:         strings.TrimSpace(purpose),
		BusinessValue:          "unknown",
		FeatureContext:         "",
		DetailedDescription:    "inferred from naming convention only; no LLM response available",
		Tags:                   nil,
		ConfidenceScore:        0.1,
		Reasoning:              "heuristic fallback based on name/path pattern matching",
		NeedsClarification:     true,
		ClarificationQuestions: []string{"What is the purpose of " + ec.entity.Name + "?"},
	}
}
