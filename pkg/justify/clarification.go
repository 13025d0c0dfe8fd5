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
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kraklabs/cie-engine/pkg/storage"
)

// ClarificationQuestion is a single pending question queued against an
// entity whose justification fell below the clarification threshold.
type ClarificationQuestion struct {
	ID         string
	EntityID   string
	EntityType EntityType
	Category   string // "purpose", "business_value", "feature_context", or free-form
	Question   string
	Priority   int
	Answered   bool
}

// priority computes entityTypePriority*100 + hierarchyDepth*10 +
// floor((1-score)*10); lower values are asked first.
func priority(entityType EntityType, hierarchyDepth int, score float64) int {
	return entityTypePriority(entityType)*100 + hierarchyDepth*10 + int(math.Floor((1-score)*10))
}

// ClarificationQueue holds pending clarification questions in priority
// order, guarded by a mutex in the same simple-guarded-struct style as
// CheckpointManager. Persisted to the store as rows rather than a JSON
// file so state survives restarts across separate CLI invocations.
type ClarificationQueue struct {
	mu      sync.Mutex
	backend storage.Backend
	items   []*ClarificationQuestion
}

// NewClarificationQueue creates an empty queue bound to backend.
func NewClarificationQueue(backend storage.Backend) *ClarificationQueue {
	return &ClarificationQueue{backend: backend}
}

// Load populates the queue from cie_clarification_question, replacing any
// in-memory state.
func (q *ClarificationQueue) Load(ctx context.Context) error {
	result, err := q.backend.Query(ctx, `?[id, entity_id, entity_type, category, question, priority, answered] :=
		*cie_clarification_question { id, entity_id, entity_type, category, question, priority, answered }`)
	if err != nil {
		return nil // table not yet populated; an empty queue is valid
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
	for _, row := range result.Rows {
		if len(row) < 7 {
			continue
		}
		id, _ := row[0].(string)
		entityID, _ := row[1].(string)
		entityType, _ := row[2].(string)
		category, _ := row[3].(string)
		question, _ := row[4].(string)
		prio, _ := row[5].(float64)
		answered, _ := row[6].(bool)
		q.items = append(q.items, &ClarificationQuestion{
			ID: id, EntityID: entityID, EntityType: EntityType(entityType),
			Category: category, Question: question, Priority: int(prio), Answered: answered,
		})
	}
	q.sortLocked()
	return nil
}

// Enqueue adds a question and persists it immediately.
func (q *ClarificationQueue) Enqueue(ctx context.Context, cq *ClarificationQuestion) error {
	q.mu.Lock()
	q.items = append(q.items, cq)
	q.sortLocked()
	q.mu.Unlock()

	script := fmt.Sprintf(`?[id, entity_id, entity_type, category, question, priority, answered] <- [[
		%s, %s, %s, %s, %s, %d, %v
	]] :put cie_clarification_question { id => entity_id, entity_type, category, question, priority, answered }`,
		quoteString(cq.ID), quoteString(cq.EntityID), quoteString(string(cq.EntityType)),
		quoteString(cq.Category), quoteString(cq.Question), cq.Priority, cq.Answered)
	return q.backend.Execute(ctx, script)
}

func (q *ClarificationQueue) sortLocked() {
	sort.Slice(q.items, func(i, j int) bool { return q.items[i].Priority < q.items[j].Priority })
}

// NextBatch returns the top-N unanswered pending questions, deduplicated
// so at most one question per entity appears.
func (q *ClarificationQueue) NextBatch(n int) []*ClarificationQuestion {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]bool)
	var out []*ClarificationQuestion
	for _, item := range q.items {
		if item.Answered || seen[item.EntityID] {
			continue
		}
		seen[item.EntityID] = true
		out = append(out, item)
		if len(out) >= n {
			break
		}
	}
	return out
}

// MarkAnswered flags a question as answered and persists the change.
func (q *ClarificationQueue) MarkAnswered(ctx context.Context, questionID string) error {
	q.mu.Lock()
	var found *ClarificationQuestion
	for _, item := range q.items {
		if item.ID == questionID {
			item.Answered = true
			found = item
			break
		}
	}
	q.mu.Unlock()

	if found == nil {
		return nil
	}

	script := fmt.Sprintf(`?[id, entity_id, entity_type, category, question, priority, answered] <- [[
		%s, %s, %s, %s, %s, %d, true
	]] :put cie_clarification_question { id => entity_id, entity_type, category, question, priority, answered }`,
		quoteString(found.ID), quoteString(found.EntityID), quoteString(string(found.EntityType)),
		quoteString(found.Category), quoteString(found.Question), found.Priority)
	return q.backend.Execute(ctx, script)
}

// PendingForEntity returns the unanswered questions queued against
// entityID.
func (q *ClarificationQueue) PendingForEntity(entityID string) []*ClarificationQuestion {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*ClarificationQuestion
	for _, item := range q.items {
		if item.EntityID == entityID && !item.Answered {
			out = append(out, item)
		}
	}
	return out
}
