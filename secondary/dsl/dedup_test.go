// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

package dsl

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestDeduplicatorCollapsesConcurrentCallers(t *testing.T) {
	d := NewRequestDeduplicator[string]()

	var actionCalls int
	var mu sync.Mutex
	var complete CompletionListener

	action := func(_ string, c CompletionListener) {
		mu.Lock()
		actionCalls++
		complete = c
		mu.Unlock()
	}

	var results []error
	var resMu sync.Mutex
	listener := func(err error) {
		resMu.Lock()
		results = append(results, err)
		resMu.Unlock()
	}

	d.ExecuteOnce("k1", listener, action)
	d.ExecuteOnce("k1", listener, action)
	d.ExecuteOnce("k1", listener, action)

	require.Equal(t, 1, actionCalls, "action must fire exactly once for concurrent callers on the same key")
	require.Equal(t, 1, d.Size())

	complete(nil)

	require.Len(t, results, 3, "every caller must be notified on completion")
	require.Equal(t, 0, d.Size())
}

func TestRequestDeduplicatorDistinctKeysRunIndependently(t *testing.T) {
	d := NewRequestDeduplicator[string]()
	var calls []string

	action := func(key string, c CompletionListener) {
		calls = append(calls, key)
		c(nil)
	}

	d.ExecuteOnce("a", func(error) {}, action)
	d.ExecuteOnce("b", func(error) {}, action)

	require.ElementsMatch(t, []string{"a", "b"}, calls)
}

func TestRequestDeduplicatorClearDropsInFlightWithoutNotifying(t *testing.T) {
	d := NewRequestDeduplicator[string]()
	notified := false

	d.ExecuteOnce("k1", func(error) { notified = true }, func(_ string, _ CompletionListener) {
		// never calls complete - simulates an action still in flight
	})
	require.Equal(t, 1, d.Size())

	d.Clear()
	require.Equal(t, 0, d.Size())
	require.False(t, notified)

	// a fresh caller after Clear must trigger the action again, not fan in
	// to the cleared entry.
	fired := false
	d.ExecuteOnce("k1", func(error) {}, func(_ string, c CompletionListener) {
		fired = true
		c(nil)
	})
	require.True(t, fired)
}

func TestTransportKeyExcludesBookkeepingFields(t *testing.T) {
	a := ForceMergeRequest{RequestID: "r1", ParentTaskID: "p1", IndexName: "idx-1"}
	b := ForceMergeRequest{RequestID: "r2", ParentTaskID: "p2", IndexName: "idx-1"}
	require.Equal(t, a.DedupKey(), b.DedupKey(), "request id and parent task id must not affect dedup equality")

	c := ForceMergeRequest{RequestID: "r1", ParentTaskID: "p1", IndexName: "idx-2"}
	require.NotEqual(t, a.DedupKey(), c.DedupKey())
}
