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
	"context"
	"testing"

	"github.com/kraklabs/cie-engine/pkg/storage"
)

func TestLevelForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{0.95, ConfidenceHigh},
		{0.8, ConfidenceHigh},
		{0.7, ConfidenceMedium},
		{0.5, ConfidenceMedium},
		{0.4, ConfidenceLow},
		{0.3, ConfidenceLow},
		{0.2, ConfidenceUncertain},
		{0.0, ConfidenceUncertain},
	}
	for _, tc := range cases {
		if got := LevelForScore(tc.score); got != tc.want {
			t.Errorf("LevelForScore(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestJustification_ApplyScore_ClampsAndDerives(t *testing.T) {
	j := &Justification{}
	j.applyScore(1.4)
	if j.ConfidenceScore != 1.0 {
		t.Errorf("expected score clamped to 1.0, got %v", j.ConfidenceScore)
	}
	if j.ConfidenceLevel != ConfidenceHigh {
		t.Errorf("expected high confidence, got %v", j.ConfidenceLevel)
	}
	if j.ClarificationPending {
		t.Errorf("expected clarificationPending false at score 1.0")
	}

	j.applyScore(0.2)
	if !j.ClarificationPending {
		t.Errorf("expected clarificationPending true at score 0.2")
	}
}

// fakeBackend is a no-op storage.Backend: queries return no rows and
// writes are discarded. The clarification queue tests use it so they run
// without a real CozoDB instance.
type fakeBackend struct {
	justifications map[string]*Justification
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{justifications: make(map[string]*Justification)}
}

func (b *fakeBackend) Query(ctx context.Context, datalog string) (*storage.QueryResult, error) {
	return &storage.QueryResult{}, nil
}
func (b *fakeBackend) Execute(ctx context.Context, datalog string) error        { return nil }
func (b *fakeBackend) Close() error                                            { return nil }
func (b *fakeBackend) WriteBatch(ctx context.Context, script string) error     { return nil }
func (b *fakeBackend) VectorSearch(ctx context.Context, params storage.VectorSearchParams) (*storage.QueryResult, error) {
	return &storage.QueryResult{}, nil
}

// TestApplyAnswer_NeverDecreasesConfidence exercises the monotonicity
// property directly against the Justification mutation logic ApplyAnswer
// uses, bypassing the store round-trip (covered separately by the CozoDB
// integration path).
func TestApplyAnswer_NeverDecreasesConfidence(t *testing.T) {
	j := &Justification{EntityType: EntityFunction}
	j.applyScore(0.2)
	before := j.ConfidenceScore

	j.applyScore(j.ConfidenceScore + answerScoreBoost)
	if j.ConfidenceScore < before {
		t.Fatalf("confidenceScore decreased after answer: %v -> %v", before, j.ConfidenceScore)
	}
	if j.ConfidenceScore != before+answerScoreBoost {
		t.Errorf("expected score to rise by %v, got %v -> %v", answerScoreBoost, before, j.ConfidenceScore)
	}

	// A near-maximal score must clamp rather than exceed 1.0.
	j.applyScore(0.9)
	before = j.ConfidenceScore
	j.applyScore(j.ConfidenceScore + answerScoreBoost)
	if j.ConfidenceScore != 1.0 {
		t.Errorf("expected score clamped to 1.0, got %v", j.ConfidenceScore)
	}
	if j.ConfidenceScore < before {
		t.Fatalf("confidenceScore decreased after clamped answer: %v -> %v", before, j.ConfidenceScore)
	}
}

func TestPriority_OrdersFilesBeforeFunctions(t *testing.T) {
	filePrio := priority(EntityFile, hierarchyDepthFor(EntityFile), 0.2)
	fnPrio := priority(EntityFunction, hierarchyDepthFor(EntityFunction), 0.2)
	if filePrio >= fnPrio {
		t.Errorf("expected file priority (%d) < function priority (%d)", filePrio, fnPrio)
	}
}

func TestParseLLMResponse_TruncatesExcessQuestions(t *testing.T) {
	raw := `here is the answer: {"purposeSummary": "does a thing", "confidenceScore": 0.6,
		"clarificationQuestions": ["a", "b", "c", "d"]}`
	resp, err := parseLLMResponse(raw)
	if err != nil {
		t.Fatalf("parseLLMResponse: %v", err)
	}
	if len(resp.ClarificationQuestions) != 3 {
		t.Errorf("expected clarificationQuestions truncated to 3, got %d", len(resp.ClarificationQuestions))
	}
}

func TestParseLLMResponse_RejectsMissingPurpose(t *testing.T) {
	if _, err := parseLLMResponse(`{"confidenceScore": 0.5}`); err == nil {
		t.Errorf("expected error for missing purposeSummary")
	}
}

var _ storage.Backend = (*fakeBackend)(nil)
