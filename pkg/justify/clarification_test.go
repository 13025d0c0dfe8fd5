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
	"testing"
)

func enqueueForTest(t *testing.T, q *ClarificationQueue, id, entityID string, entityType EntityType, score float64) {
	t.Helper()
	cq := &ClarificationQuestion{
		ID:         id,
		EntityID:   entityID,
		EntityType: entityType,
		Category:   "purpose",
		Question:   fmt.Sprintf("What is the purpose of %s?", entityID),
		Priority:   priority(entityType, hierarchyDepthFor(entityType), score),
	}
	if err := q.Enqueue(context.Background(), cq); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
}

func TestClarificationQueue_PriorityOrder(t *testing.T) {
	q := NewClarificationQueue(newFakeBackend())

	// Enqueued out of order: the file-level question must surface first,
	// then the type, then the function.
	enqueueForTest(t, q, "q-fn", "fn1", EntityFunction, 0.2)
	enqueueForTest(t, q, "q-file", "file1", EntityFile, 0.2)
	enqueueForTest(t, q, "q-type", "type1", EntityTypeDef, 0.2)

	batch := q.NextBatch(3)
	if len(batch) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(batch))
	}
	if batch[0].EntityID != "file1" || batch[1].EntityID != "type1" || batch[2].EntityID != "fn1" {
		t.Errorf("wrong order: %s, %s, %s", batch[0].EntityID, batch[1].EntityID, batch[2].EntityID)
	}
}

func TestClarificationQueue_NextBatchDeduplicatesPerEntity(t *testing.T) {
	q := NewClarificationQueue(newFakeBackend())

	enqueueForTest(t, q, "q1", "fn1", EntityFunction, 0.1)
	enqueueForTest(t, q, "q2", "fn1", EntityFunction, 0.2)
	enqueueForTest(t, q, "q3", "fn2", EntityFunction, 0.3)

	batch := q.NextBatch(10)
	if len(batch) != 2 {
		t.Fatalf("expected one question per entity, got %d", len(batch))
	}
	seen := map[string]bool{}
	for _, cq := range batch {
		if seen[cq.EntityID] {
			t.Errorf("entity %s appears twice in one batch", cq.EntityID)
		}
		seen[cq.EntityID] = true
	}
}

func TestClarificationQueue_MarkAnsweredExcludesFromBatches(t *testing.T) {
	q := NewClarificationQueue(newFakeBackend())

	enqueueForTest(t, q, "q1", "fn1", EntityFunction, 0.2)
	enqueueForTest(t, q, "q2", "fn2", EntityFunction, 0.2)

	if err := q.MarkAnswered(context.Background(), "q1"); err != nil {
		t.Fatalf("MarkAnswered() error = %v", err)
	}

	batch := q.NextBatch(10)
	if len(batch) != 1 || batch[0].ID != "q2" {
		t.Errorf("answered question still surfaced: %+v", batch)
	}

	if pending := q.PendingForEntity("fn1"); len(pending) != 0 {
		t.Errorf("fn1 should have no pending questions, got %d", len(pending))
	}
}

func TestClarificationQueue_BatchSizeLimit(t *testing.T) {
	q := NewClarificationQueue(newFakeBackend())
	for i := 0; i < 7; i++ {
		enqueueForTest(t, q, fmt.Sprintf("q%d", i), fmt.Sprintf("fn%d", i), EntityFunction, 0.2)
	}

	if got := len(q.NextBatch(3)); got != 3 {
		t.Errorf("NextBatch(3) returned %d questions", got)
	}
}

func TestPriority_ScoreTermOrdersWithinType(t *testing.T) {
	// Within one entity type, the floor((1-score)*10) term makes a
	// near-threshold justification sort ahead of a hopeless one.
	nearThreshold := priority(EntityFunction, hierarchyDepthFor(EntityFunction), 0.45)
	hopeless := priority(EntityFunction, hierarchyDepthFor(EntityFunction), 0.05)
	if nearThreshold >= hopeless {
		t.Errorf("expected priority(0.45)=%d < priority(0.05)=%d", nearThreshold, hopeless)
	}
}
