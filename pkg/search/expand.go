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
	"regexp"
	"strings"

	"github.com/kraklabs/cie-engine/pkg/llm"
)

const maxExpansionSynonyms = 3

var expansionLinePattern = regexp.MustCompile(`(?m)^\s*[-*\d.]*\s*(.+)$`)

// ExpandQuery asks provider for up to three synonyms or related phrasings
// for query, returning the original query first followed by the synonyms
// in the order the model produced them. A nil provider, or any failure to
// get a usable response, returns just the original query.
func ExpandQuery(ctx context.Context, provider llm.Provider, query string) []string {
	terms := []string{query}
	if provider == nil {
		return terms
	}

	prompt := fmt.Sprintf(
		"List up to %d short alternate phrasings or synonyms for this code search query, one per line, no numbering or explanation:\n\n%s",
		maxExpansionSynonyms, query)
	resp, err := provider.Generate(ctx, llm.GenerateRequest{Prompt: prompt})
	if err != nil || resp == nil || strings.TrimSpace(resp.Text) == "" {
		return terms
	}

	seen := map[string]bool{strings.ToLower(query): true}
	for _, match := range expansionLinePattern.FindAllStringSubmatch(resp.Text, -1) {
		if len(match) < 2 {
			continue
		}
		term := strings.TrimSpace(match[1])
		if term == "" || seen[strings.ToLower(term)] {
			continue
		}
		seen[strings.ToLower(term)] = true
		terms = append(terms, term)
		if len(terms) > maxExpansionSynonyms+1 {
			break
		}
	}
	return terms
}
