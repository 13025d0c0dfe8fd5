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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kraklabs/cie-engine/pkg/llm"
	"github.com/kraklabs/cie-engine/pkg/storage"
)

const (
	defaultTopN        = 5
	defaultMaxQuestions = 3
	answerScoreBoost    = 0.3
)

// Config controls an Engine run.
type Config struct {
	// Model, if set, overrides the provider's default model.
	Model string
	// SkipLLM forces every entity through the heuristic fallback path,
	// used for `cie justify --skip-llm` and offline/test runs.
	SkipLLM bool
	// Force re-justifies entities that already have a stored
	// Justification instead of skipping them.
	Force bool
	// OnlyFile restricts the walk to entities defined in this file path.
	OnlyFile string
}

// Engine walks stored entities in hierarchy order, prompting an LLM (or
// falling back to a heuristic) to produce a Justification for each, and
// maintains the clarification queue for low-confidence results.
type Engine struct {
	backend  storage.Backend
	provider llm.Provider
	queue    *ClarificationQueue
	logger   *slog.Logger
	config   Config
}

// NewEngine creates an Engine. provider may be a llm.MockProvider for
// --skip-llm runs and tests.
func NewEngine(backend storage.Backend, provider llm.Provider, logger *slog.Logger, config Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		backend:  backend,
		provider: provider,
		queue:    NewClarificationQueue(backend),
		logger:   logger,
		config:   config,
	}
}

// Queue exposes the clarification queue for the interactive CLI flow.
func (e *Engine) Queue() *ClarificationQueue { return e.queue }

// RunResult summarizes a completed justification pass.
type RunResult struct {
	EntitiesJustified int
	ClarificationsQueued int
	LLMFailures       int
}

// Run walks every stored entity in hierarchy order (file, type,
// function), justifying each one that lacks a Justification or, when
// Force is set, every entity regardless. Child prompts can cite the
// current stored Justification of their parent because files are always
// justified before the types and functions they define.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	entities, err := ScanEntities(ctx, e.backend)
	if err != nil {
		return nil, fmt.Errorf("scan entities: %w", err)
	}

	if e.config.OnlyFile != "" {
		filtered := entities[:0]
		for _, ent := range entities {
			if ent.FilePath == e.config.OnlyFile {
				filtered = append(filtered, ent)
			}
		}
		entities = filtered
	}

	sort.SliceStable(entities, func(i, j int) bool {
		return hierarchyRank(entities[i].Type) < hierarchyRank(entities[j].Type)
	})

	if err := e.queue.Load(ctx); err != nil {
		e.logger.Warn("justify.queue.load.warning", "err", err)
	}

	justificationByEntity := make(map[string]*Justification, len(entities))
	result := &RunResult{}

	for _, ent := range entities {
		existing, err := GetJustification(ctx, e.backend, ent.ID)
		if err != nil {
			e.logger.Warn("justify.lookup.warning", "entity_id", ent.ID, "err", err)
		}
		if existing != nil {
			justificationByEntity[ent.ID] = existing
			if !e.config.Force {
				continue
			}
		}

		j, err := e.justifyOne(ctx, ent, justificationByEntity)
		if err != nil {
			result.LLMFailures++
			e.logger.Warn("justify.entity.error", "entity_id", ent.ID, "err", err)
			continue
		}

		justificationByEntity[ent.ID] = j
		result.EntitiesJustified++
		if j.ClarificationPending {
			result.ClarificationsQueued++
		}
	}

	return result, nil
}

// hierarchyRank orders entity types for the walk: file, then type, then
// function.
func hierarchyRank(t EntityType) int {
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

// hierarchyDepthFor computes a HierarchyDepth value consistent with
// hierarchyRank, used for the clarification priority formula.
func hierarchyDepthFor(t EntityType) int {
	return hierarchyRank(t)
}

func (e *Engine) justifyOne(ctx context.Context, ent entityRow, byEntity map[string]*Justification) (*Justification, error) {
	inferStart := time.Now()
	ec := entityContext{entity: ent}
	if ent.ParentID != "" {
		ec.parentJustification = byEntity[ent.ParentID]
	}

	if ent.Type == EntityFunction {
		callers, err := callerNames(ctx, e.backend, ent.ID, defaultTopN)
		if err == nil {
			ec.callers = callers
		}
		callees, err := calleeNames(ctx, e.backend, ent.ID, defaultTopN)
		if err == nil {
			ec.callees = callees
		}
		siblings, err := siblingNames(ctx, e.backend, ent.FilePath, ent.ID, defaultTopN)
		if err == nil {
			ec.siblings = siblings
		}
	}

	resp, inferredFrom := e.infer(ctx, ec)

	now := time.Now()
	j := &Justification{
		ID:                  justificationID(ent.ID),
		EntityID:            ent.ID,
		EntityType:          ent.Type,
		HierarchyDepth:      hierarchyDepthFor(ent.Type),
		PurposeSummary:      resp.PurposeSummary,
		BusinessValue:       resp.BusinessValue,
		FeatureContext:      resp.FeatureContext,
		DetailedDescription: resp.DetailedDescription,
		Tags:                resp.Tags,
		Reasoning:           resp.Reasoning,
		PendingQuestions:    resp.ClarificationQuestions,
		InferredFrom:        inferredFrom,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	j.applyScore(resp.ConfidenceScore)

	if err := SaveJustification(ctx, e.backend, j); err != nil {
		return nil, fmt.Errorf("save justification: %w", err)
	}

	if j.ClarificationPending {
		e.enqueueClarifications(ctx, j)
	}
	recordEntityJustified(time.Since(inferStart).Seconds())

	return j, nil
}

// infer produces an llmResponse for ec, trying the LLM first (unless
// SkipLLM is set or no provider is configured) and falling back to the
// name/path heuristic on any failure.
func (e *Engine) infer(ctx context.Context, ec entityContext) (*llmResponse, InferredFrom) {
	if e.config.SkipLLM || e.provider == nil {
		recordHeuristicFallback()
		return heuristicJustification(ec), InferredHeuristic
	}

	recordLLMCall()
	prompt := buildPrompt(ec)
	genResp, err := e.provider.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		Model:       e.config.Model,
		Temperature: 0.2,
		MaxTokens:   1024,
	})
	if err != nil {
		e.logger.Warn("justify.llm.generate.error", "entity_id", ec.entity.ID, "err", err)
		recordLLMFailure()
		return heuristicJustification(ec), InferredHeuristic
	}

	parsed, err := parseLLMResponse(genResp.Text)
	if err != nil {
		e.logger.Warn("justify.llm.parse.error", "entity_id", ec.entity.ID, "err", err)
		recordLLMFailure()
		return heuristicJustification(ec), InferredHeuristic
	}

	return parsed, InferredLLM
}

func (e *Engine) enqueueClarifications(ctx context.Context, j *Justification) {
	questions := j.PendingQuestions
	if len(questions) == 0 {
		questions = []string{fmt.Sprintf("What is the purpose of %s?", j.EntityID)}
	}
	if len(questions) > defaultMaxQuestions {
		questions = questions[:defaultMaxQuestions]
	}

	for i, q := range questions {
		cq := &ClarificationQuestion{
			ID:         fmt.Sprintf("%s:%d", j.ID, i),
			EntityID:   j.EntityID,
			EntityType: j.EntityType,
			Category:   "purpose",
			Question:   q,
			Priority:   priority(j.EntityType, j.HierarchyDepth, j.ConfidenceScore),
		}
		if err := e.queue.Enqueue(ctx, cq); err != nil {
			e.logger.Warn("justify.clarification.enqueue.warning", "entity_id", j.EntityID, "err", err)
		} else {
			recordClarificationQueued()
		}
	}
}

// ApplyAnswer rewrites the field the question's category names, raises
// confidenceScore by 0.3 (capped at 1.0), sets inferredFrom=user_provided,
// stamps lastConfirmedByUser, and clears clarificationPending once the
// score clears the threshold.
func (e *Engine) ApplyAnswer(ctx context.Context, questionID, entityID, category, answer string) (*Justification, error) {
	j, err := GetJustification(ctx, e.backend, entityID)
	if err != nil {
		return nil, fmt.Errorf("load justification: %w", err)
	}
	if j == nil {
		return nil, fmt.Errorf("no justification found for entity %s", entityID)
	}

	switch category {
	case "purpose":
		j.PurposeSummary = answer
	case "business_value":
		j.BusinessValue = answer
	case "feature_context":
		j.FeatureContext = answer
	default:
		j.DetailedDescription = j.DetailedDescription + "\n" + answer
	}

	now := time.Now()
	j.applyScore(j.ConfidenceScore + answerScoreBoost)
	j.InferredFrom = InferredUserProvided
	j.LastConfirmedByUser = &now
	j.UpdatedAt = now
	j.Version++

	if err := SaveJustification(ctx, e.backend, j); err != nil {
		return nil, fmt.Errorf("save justification: %w", err)
	}
	if err := e.queue.MarkAnswered(ctx, questionID); err != nil {
		e.logger.Warn("justify.clarification.answer.warning", "question_id", questionID, "err", err)
	}
	recordClarificationAnswer()

	return j, nil
}

// Aggregate re-justifies a parent entity from the purpose summaries of
// its already-justified children, producing an inferredFrom=aggregated
// result. Intended to run after a full Run completes so every child has
// a Justification to summarize.
func (e *Engine) Aggregate(ctx context.Context, parent entityRow, childSummaries []string) (*Justification, error) {
	if len(childSummaries) == 0 {
		return nil, fmt.Errorf("no child summaries to aggregate for %s", parent.ID)
	}

	ec := entityContext{entity: parent}
	var resp *llmResponse
	if e.config.SkipLLM || e.provider == nil {
		resp = heuristicJustification(ec)
	} else {
		prompt := buildAggregationPrompt(ec, childSummaries)
		genResp, err := e.provider.Generate(ctx, llm.GenerateRequest{Prompt: prompt, Model: e.config.Model, Temperature: 0.2, MaxTokens: 1024})
		if err != nil {
			resp = heuristicJustification(ec)
		} else if parsed, err := parseLLMResponse(genResp.Text); err == nil {
			resp = parsed
		} else {
			resp = heuristicJustification(ec)
		}
	}

	now := time.Now()
	j := &Justification{
		ID:                  justificationID(parent.ID),
		EntityID:            parent.ID,
		EntityType:          parent.Type,
		HierarchyDepth:      hierarchyDepthFor(parent.Type),
		PurposeSummary:      resp.PurposeSummary,
		BusinessValue:       resp.BusinessValue,
		FeatureContext:      resp.FeatureContext,
		DetailedDescription: resp.DetailedDescription,
		Tags:                resp.Tags,
		Reasoning:           resp.Reasoning,
		InferredFrom:        InferredAggregated,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	j.applyScore(resp.ConfidenceScore)

	if err := SaveJustification(ctx, e.backend, j); err != nil {
		return nil, fmt.Errorf("save aggregated justification: %w", err)
	}
	return j, nil
}

func justificationID(entityID string) string {
	hash := sha256.Sum256([]byte("justification:" + entityID))
	return hex.EncodeToString(hash[:12])
}
