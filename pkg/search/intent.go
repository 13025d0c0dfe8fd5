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

// Package search implements hybrid retrieval over the code graph: a
// semantic leg over function/type embeddings, a lexical leg over raw
// text, fused by Reciprocal Rank Fusion with intent-tuned constants, then
// enriched with justifications, design patterns, and popularity boosts.
package search

import "regexp"

// Intent classifies a query so RRF can use intent-tuned fusion constants
// and so downstream enrichment knows what the user is after.
type Intent string

const (
	IntentDefinition Intent = "definition"
	IntentUsage      Intent = "usage"
	IntentConceptual Intent = "conceptual"
	IntentKeyword    Intent = "keyword"
)

var (
	usagePattern = regexp.MustCompile(`(?i)\b(who calls|callers? of|usages?( of)?|references? to|where is .+ used)\b`)

	definitionPattern = regexp.MustCompile(`(?i)\b(where is .+ defined|class|interface|type|struct|enum)\b`)
	usageWordPattern  = regexp.MustCompile(`(?i)\b(defined|used|called)\b`)

	conceptualPattern = regexp.MustCompile(`(?i)\b(how does|explain|what is the purpose of|why does|what happens when)\b`)
	questionPattern   = regexp.MustCompile(`(?i)^(how|why|what|when)\b.*\?\s*$`)
)

// ClassifyIntent applies the regex pattern families in priority order:
// usage, then definition (only without a usage word), then conceptual
// (explicit phrasing or a bare question form), falling back to keyword.
func ClassifyIntent(query string) Intent {
	switch {
	case usagePattern.MatchString(query):
		return IntentUsage
	case definitionPattern.MatchString(query) && !usageWordPattern.MatchString(query):
		return IntentDefinition
	case conceptualPattern.MatchString(query):
		return IntentConceptual
	case questionPattern.MatchString(query) && !usageWordPattern.MatchString(query):
		return IntentConceptual
	default:
		return IntentKeyword
	}
}

// IsQuestion reports whether query is phrased as a question, used to
// decide whether optional synthesis runs.
func IsQuestion(query string) bool {
	return questionPattern.MatchString(query) || conceptualPattern.MatchString(query)
}

var codeFileExtensionPattern = regexp.MustCompile(`(?i)\.(go|ts|tsx|js|jsx|py|java|rb|rs|c|cpp|h|hpp)$`)

// IsFilenameQuery reports whether query looks like a filename reference
// (a known code extension or a path separator), used by the filename
// boost.
func IsFilenameQuery(query string) bool {
	return codeFileExtensionPattern.MatchString(query) || containsPathSeparator(query)
}

func containsPathSeparator(s string) bool {
	for _, r := range s {
		if r == '/' {
			return true
		}
	}
	return false
}
