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
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/couchbase/data-stream-lifecycled/secondary/common"
	"github.com/couchbase/data-stream-lifecycled/secondary/logging"
	"github.com/couchbase/data-stream-lifecycled/secondary/metrics"
)

// runContext carries everything one LifecycleRun pass needs to issue
// deduplicated actions and record per-index errors, plus the settings
// snapshot in effect for this run.
type runContext struct {
	actions         *actions
	forceMergeTasks *taskSubmitter
	swapTasks       *taskSubmitter
	errors          *ErrorStore
	settings        common.LifecycleSettings
}

// LifecycleRun is one pass over every lifecycle-managed data stream
// (spec.md §4.4, "the heart"). It never blocks on I/O: every transport
// call and cluster-state submission is fire-and-forget through the
// deduplicator, and the run returns once every data stream's decisions
// have been issued.
func LifecycleRun(snap common.ClusterSnapshot, rc *runContext) {
	metrics.RunDuration.Time(func() {
		runDataStreams(snap, rc)
	})
	metrics.RunsCompleted.Inc(1)
}

func runDataStreams(snap common.ClusterSnapshot, rc *runContext) {
	clearStaleErrors(snap, rc.errors)

	g, _ := errgroup.WithContext(context.Background())
	for _, ds := range snap.DataStreams() {
		ds := ds
		if ds.Lifecycle == nil {
			continue
		}
		g.Go(func() error {
			runOneDataStream(snap, ds, rc)
			return nil
		})
	}
	// No ordering guarantee between data streams (spec.md §5); errors from
	// individual streams are already contained internally, so Wait only
	// blocks until every stream's decisions have been issued.
	_ = g.Wait()
}

func runOneDataStream(snap common.ClusterSnapshot, ds common.DataStream, rc *runContext) {
	defer func() {
		if p := recover(); p != nil {
			logging.Errorf("dsl: panic while processing data stream %s: %v", ds.Name, p)
		}
	}()

	writeIndex := ds.WriteIndex()
	excluded := make(map[string]bool)

	func() {
		defer func() {
			if p := recover(); p != nil {
				logging.Errorf("dsl: rollover phase panicked for %s: %v", ds.Name, p)
			}
		}()
		runRolloverPhase(snap, ds, writeIndex, rc)
	}()

	var removing map[string]bool
	func() {
		defer func() {
			if p := recover(); p != nil {
				logging.Errorf("dsl: retention phase panicked for %s: %v", ds.Name, p)
			}
		}()
		removing = runRetentionPhase(snap, ds, rc)
	}()

	excluded[writeIndex] = true
	for idx := range removing {
		excluded[idx] = true
	}

	func() {
		defer func() {
			if p := recover(); p != nil {
				logging.Errorf("dsl: force-merge phase panicked for %s: %v", ds.Name, p)
			}
		}()
		for _, idx := range ds.ManagedBackingIndices() {
			if excluded[idx] {
				continue
			}
			if rc.forceMergeOne(snap, idx) {
				excluded[idx] = true
			}
		}
	}()

	func() {
		defer func() {
			if p := recover(); p != nil {
				logging.Errorf("dsl: downsampling phase panicked for %s: %v", ds.Name, p)
			}
		}()
		for _, idx := range ds.ManagedBackingIndices() {
			if excluded[idx] {
				continue
			}
			rc.downsampleOne(snap, ds, idx)
		}
	}()
}

// clearStaleErrors implements spec.md §4.4 step 1: for every index
// currently in the error store, clear its entry if it no longer exists in
// the cluster or is no longer managed by any lifecycle-enabled data
// stream. This runs once per LifecycleRun pass against the whole
// snapshot, not once per data stream scoped to that stream's own
// BackingIndices: an index removed from every data stream (e.g. a
// downsample source deleted once its swap has landed) must still be
// visited here, or its stale entry leaks in ErrorStore forever since no
// single data stream's BackingIndices will ever contain it again.
func clearStaleErrors(snap common.ClusterSnapshot, errStore *ErrorStore) {
	managed := make(map[string]bool)
	for _, ds := range snap.DataStreams() {
		if ds.Lifecycle == nil {
			continue
		}
		for _, idx := range ds.ManagedBackingIndices() {
			managed[idx] = true
		}
	}
	for name := range errStore.List() {
		if _, exists := snap.Index(name); !exists || !managed[name] {
			errStore.Clear(name)
		}
	}
}

func runRolloverPhase(snap common.ClusterSnapshot, ds common.DataStream, writeIndex string, rc *runContext) {
	if writeIndex == "" {
		return
	}
	managed := false
	for _, idx := range ds.ManagedBackingIndices() {
		if idx == writeIndex {
			managed = true
			break
		}
	}
	if !managed {
		return
	}

	req := RolloverRequest{
		RequestID:  common.NewRequestID(),
		DataStream: ds.Name,
		Conditions: rc.settings.Rollover,
	}
	metrics.RolloversIssued.Inc(1)
	rc.actions.issueRollover(req, func(err error) {
		if err == nil {
			return
		}
		// Attribute the failure to the write-index name that was current
		// at attempt time, but only if snap still has that index and still
		// shows it as the stream's write index. snap is this run's own
		// snapshot, the one writeIndex was taken from, so a rollover that
		// lands after the snapshot was taken is not seen here and the
		// failure is still recorded against writeIndex.
		if _, ok := snap.Index(writeIndex); ok {
			stillWrite := false
			for _, s := range snap.DataStreams() {
				if s.Name == ds.Name && s.WriteIndex() == writeIndex {
					stillWrite = true
					break
				}
			}
			if stillWrite {
				prev, existed := rc.errors.Record(writeIndex, err.Error())
				if !existed || prev != err.Error() {
					logging.Errorf("dsl: rollover failed for %s: %v", writeIndex, err)
				}
			}
		}
	})
}

func runRetentionPhase(snap common.ClusterSnapshot, ds common.DataStream, rc *runContext) map[string]bool {
	removing := make(map[string]bool)
	if ds.Lifecycle.Retention <= 0 {
		return removing
	}
	writeIndex := ds.WriteIndex()
	for _, idx := range ds.ManagedBackingIndices() {
		if idx == writeIndex {
			continue
		}
		meta, ok := snap.Index(idx)
		if !ok || meta.Age < ds.Lifecycle.Retention {
			continue
		}
		removing[idx] = true
		req := DeleteIndexRequest{
			RequestID: common.NewRequestID(),
			IndexName: idx,
			Reason:    fmt.Sprintf("retention of %s exceeded", ds.Lifecycle.Retention),
		}
		metrics.DeletesIssued.Inc(1)
		rc.actions.issueDeleteIndex(req, func(err error) {})
	}
	return removing
}
