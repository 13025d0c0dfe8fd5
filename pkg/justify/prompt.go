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
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// llmResponse is the schema the justification prompt instructs the model
// to emit as a single JSON object.
type llmResponse struct {
	PurposeSummary         string   `json:"purposeSummary"`
	BusinessValue          string   `json:"businessValue"`
	FeatureContext         string   `json:"featureContext"`
	DetailedDescription    string   `json:"detailedDescription"`
	Tags                   []string `json:"tags"`
	ConfidenceScore        float64  `json:"confidenceScore"`
	Reasoning              string   `json:"reasoning"`
	NeedsClarification     bool     `json:"needsClarification"`
	ClarificationQuestions []string `json:"clarificationQuestions"`
}

// entityContext is everything gathered about an entity before building
// its prompt.
type entityContext struct {
	entity             entityRow
	parentJustification *Justification
	callers            []string
	callees            []string
	siblings           []string
}

// buildPrompt constructs a typed prompt for the entity's kind (function,
// type, or file), instructing the LLM to respond with exactly one JSON
// object matching llmResponse's fields.
func buildPrompt(ec entityContext) string {
	var sb strings.Builder

	kind := "function"
	switch ec.entity.Type {
	case EntityFile:
		kind = "file"
	case EntityTypeDef:
		kind = "type"
	}

	fmt.Fprintf(&sb, "You are documenting the purpose of a %s named %q in %s.\n\n", kind, ec.entity.Name, ec.entity.FilePath)

	if ec.parentJustification != nil && ec.parentJustification.PurposeSummary != "" {
		fmt.Fprintf(&sb, "Parent context: %s\n\n", ec.parentJustification.PurposeSummary)
	}
	if len(ec.callers) > 0 {
		fmt.Fprintf(&sb, "Called by: %s\n", strings.Join(ec.callers, ", "))
	}
	if len(ec.callees) > 0 {
		fmt.Fprintf(&sb, "Calls: %s\n", strings.Join(ec.callees, ", "))
	}
	if len(ec.siblings) > 0 {
		fmt.Fprintf(&sb, "Other %ss in the same file: %s\n", kind, strings.Join(ec.siblings, ", "))
	}
	if ec.entity.CodeText != "" {
		fmt.Fprintf(&sb, "\nSource:\n```\n%s\n```\n", truncate(ec.entity.CodeText, 4000))
	}

	sb.WriteString("\nRespond with exactly one JSON object with these fields: purposeSummary (string), ")
	sb.WriteString("businessValue (string), featureContext (string), detailedDescription (string), ")
	sb.WriteString("tags (array of strings), confidenceScore (number 0-1), reasoning (string), ")
	sb.WriteString("needsClarification (bool), clarificationQuestions (array of up to 3 strings). ")
	sb.WriteString("No prose outside the JSON object.\n")

	return sb.String()
}

// buildAggregationPrompt summarizes a parent entity's children so a
// re-justification pass can produce an inferredFrom=aggregated result.
func buildAggregationPrompt(ec entityContext, childSummaries []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summarize the overall purpose of %q in %s given its parts:\n\n", ec.entity.Name, ec.entity.FilePath)
	for _, s := range childSummaries {
		fmt.Fprintf(&sb, "- %s\n", s)
	}
	sb.WriteString("\nRespond with exactly one JSON object with the same fields as before: purposeSummary, ")
	sb.WriteString("businessValue, featureContext, detailedDescription, tags, confidenceScore, reasoning, ")
	sb.WriteString("needsClarification, clarificationQuestions.\n")
	return sb.String()
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseLLMResponse extracts and validates the JSON object from raw model
// output, which may be wrapped in markdown code fences or preceded by
// commentary.
func parseLLMResponse(raw string) (*llmResponse, error) {
	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(match), &resp); err != nil {
		return nil, fmt.Errorf("parse justification response: %w", err)
	}
	if resp.PurposeSummary == "" {
		return nil, fmt.Errorf("response missing purposeSummary")
	}
	if resp.ConfidenceScore < 0 || resp.ConfidenceScore > 1 {
		return nil, fmt.Errorf("confidenceScore %f out of range", resp.ConfidenceScore)
	}
	if len(resp.ClarificationQuestions) > 3 {
		resp.ClarificationQuestions = resp.ClarificationQuestions[:3]
	}
	return &resp, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}
