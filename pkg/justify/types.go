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

// Package justify infers the purpose and business value of indexed code
// entities by walking them in hierarchy order (file, then type, then
// function) and prompting an LLM for a structured explanation, falling
// back to a name/path heuristic when the LLM is unavailable or its
// response doesn't parse.
package justify

import "time"

// EntityType names the kind of entity a Justification describes.
type EntityType string

const (
	EntityFile     EntityType = "file"
	EntityTypeDef    EntityType = "type"
	EntityFunction EntityType = "function"
)

// InferredFrom records how a Justification's current field values were
// produced.
type InferredFrom string

const (
	InferredLLM        InferredFrom = "llm"
	InferredHeuristic   InferredFrom = "heuristic"
	InferredUserProvided InferredFrom = "user_provided"
	InferredAggregated  InferredFrom = "aggregated"
)

// ConfidenceLevel buckets a Justification's numeric confidenceScore for
// display and filtering.
type ConfidenceLevel string

const (
	ConfidenceHigh      ConfidenceLevel = "high"
	ConfidenceMedium    ConfidenceLevel = "medium"
	ConfidenceLow       ConfidenceLevel = "low"
	ConfidenceUncertain ConfidenceLevel = "uncertain"
)

// confidenceThreshold is the score below which an entity's justification
// gets a clarification question queued.
const confidenceThreshold = 0.5

// LevelForScore maps a confidenceScore to its displayed ConfidenceLevel:
// >=0.8 high, >=0.5 medium, >=0.3 low, else uncertain.
func LevelForScore(score float64) ConfidenceLevel {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	case score >= 0.3:
		return ConfidenceLow
	default:
		return ConfidenceUncertain
	}
}

// Justification is the stored record of an entity's inferred purpose,
// business value, and feature context.
type Justification struct {
	ID                  string
	EntityID            string
	EntityType          EntityType
	HierarchyDepth      int
	PurposeSummary      string
	BusinessValue       string
	FeatureContext      string
	DetailedDescription string
	Tags                []string
	ConfidenceScore     float64
	ConfidenceLevel     ConfidenceLevel
	Reasoning           string
	PendingQuestions    []string
	ClarificationPending bool
	InferredFrom        InferredFrom
	LastConfirmedByUser *time.Time
	Version             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// needsClarification reports whether j's score is low enough to warrant
// queuing a clarification question.
func (j *Justification) needsClarification() bool {
	return j.ConfidenceScore < confidenceThreshold
}

// applyScore sets ConfidenceScore and recomputes the derived
// ConfidenceLevel and ClarificationPending fields.
func (j *Justification) applyScore(score float64) {
	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	j.ConfidenceScore = score
	j.ConfidenceLevel = LevelForScore(score)
	j.ClarificationPending = j.needsClarification()
}

// entityTypePriority orders entity types in a ClarificationQuestion's
// priority formula; files are asked about before functions since a
// file-level answer can resolve many descendant questions at once.
func entityTypePriority(t EntityType) int {
	switch t {
	case EntityFile:
		return 0
	case EntityTypeDef:
		return 1
	case EntityFunction:
		return 2
	default:
		return 3
	}
}
