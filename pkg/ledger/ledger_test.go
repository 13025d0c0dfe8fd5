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

package ledger

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cie-engine/pkg/storage"
)

// recordingBackend captures WriteBatch scripts so tests can assert on
// what a flush actually commits.
type recordingBackend struct {
	mu      sync.Mutex
	scripts []string
	fail    bool
}

func (b *recordingBackend) Query(ctx context.Context, datalog string) (*storage.QueryResult, error) {
	return &storage.QueryResult{}, nil
}
func (b *recordingBackend) Execute(ctx context.Context, datalog string) error { return nil }
func (b *recordingBackend) Close() error                                      { return nil }
func (b *recordingBackend) WriteBatch(ctx context.Context, script string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return assert.AnError
	}
	b.scripts = append(b.scripts, script)
	return nil
}
func (b *recordingBackend) VectorSearch(ctx context.Context, params storage.VectorSearchParams) (*storage.QueryResult, error) {
	return &storage.QueryResult{}, nil
}

func (b *recordingBackend) flushed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.scripts))
	copy(out, b.scripts)
	return out
}

func TestLedger_AppendAndSnapshot(t *testing.T) {
	l := New(&recordingBackend{}, Config{Capacity: 8})

	l.Append("index.run.start", "run-1", "full index")
	l.Append("file.deleted", "src/old.go", "removed from working tree")

	entries := l.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "index.run.start", entries[0].Kind)
	assert.Equal(t, "src/old.go", entries[1].EntityID)
	assert.NotEmpty(t, entries[0].ID)

	// Commit-time order is monotonic.
	assert.False(t, entries[1].CreatedAt.Before(entries[0].CreatedAt))
}

func TestLedger_RingEviction(t *testing.T) {
	l := New(&recordingBackend{}, Config{Capacity: 3})

	for i := 0; i < 5; i++ {
		l.Append("event", "entity", "detail")
	}

	// The ring never grows past its capacity.
	assert.Len(t, l.Snapshot(), 3)
}

func TestLedger_ShutdownDrainsBuffer(t *testing.T) {
	backend := &recordingBackend{}
	l := New(backend, Config{Capacity: 8, FlushInterval: time.Hour})

	l.Append("index.run.complete", "run-1", "2 files")

	// Never started: Shutdown must still drain the buffered entry.
	l.Shutdown(context.Background())

	scripts := backend.flushed()
	require.Len(t, scripts, 1)
	assert.Contains(t, scripts[0], "cie_ledger_entry")
	assert.Contains(t, scripts[0], "index.run.complete")
}

func TestLedger_StartedShutdownDrains(t *testing.T) {
	backend := &recordingBackend{}
	l := New(backend, Config{Capacity: 8, FlushInterval: time.Hour})
	l.Start(context.Background())

	l.Append("justify.pass.complete", "run-2", "10 entities")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	l.Shutdown(ctx)

	scripts := backend.flushed()
	require.NotEmpty(t, scripts)
	assert.Contains(t, strings.Join(scripts, "\n"), "justify.pass.complete")
}

func TestLedger_SubscribersNotified(t *testing.T) {
	l := New(&recordingBackend{}, Config{Capacity: 8})

	var mu sync.Mutex
	var seen []Entry
	l.Subscribe(func(e Entry) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})

	l.Append("file.deleted", "a.go", "")
	l.Append("file.deleted", "b.go", "")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, "a.go", seen[0].EntityID)
	assert.Equal(t, "b.go", seen[1].EntityID)
}

func TestLedger_SlowSubscriberDoesNotBlockAppend(t *testing.T) {
	l := New(&recordingBackend{}, Config{Capacity: 8})
	l.Subscribe(func(Entry) {
		time.Sleep(2 * subscriberTimeout)
	})

	start := time.Now()
	l.Append("event", "entity", "")
	elapsed := time.Since(start)

	// The producer waits at most the bounded interval, not the full
	// subscriber sleep.
	assert.Less(t, elapsed, 2*subscriberTimeout)
}

func TestLedger_FlushFailureKeepsEntriesPending(t *testing.T) {
	backend := &recordingBackend{fail: true}
	l := New(backend, Config{Capacity: 8, FlushInterval: time.Hour})

	l.Append("event", "entity", "")
	l.flush(context.Background())
	assert.Empty(t, backend.flushed())

	// Once the backend recovers, the same entry flushes.
	backend.mu.Lock()
	backend.fail = false
	backend.mu.Unlock()
	l.flush(context.Background())
	require.Len(t, backend.flushed(), 1)
}

var _ storage.Backend = (*recordingBackend)(nil)
