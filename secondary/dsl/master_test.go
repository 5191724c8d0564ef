// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

package dsl_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchbase/data-stream-lifecycled/secondary/common"
	"github.com/couchbase/data-stream-lifecycled/secondary/dsl"
	"github.com/couchbase/data-stream-lifecycled/secondary/simulate"
)

// stubScheduler records Add/Remove calls without ever firing, so these
// tests can assert on job (de)registration directly.
type stubScheduler struct {
	added   []dsl.Job
	removed []string
}

func (s *stubScheduler) Register(dsl.SchedulerEventListener) {}
func (s *stubScheduler) Add(job dsl.Job)                      { s.added = append(s.added, job) }
func (s *stubScheduler) Remove(name string)                   { s.removed = append(s.removed, name) }
func (s *stubScheduler) Stop()                                {}

// TestMastershipGainStartsJobAndLossStopsIt covers spec.md §4.3: the first
// master-election transition starts the scheduler; losing mastership
// unregisters the job.
func TestMastershipGainStartsJobAndLossStopsIt(t *testing.T) {
	snap := simulate.NewSnapshot()
	cluster := simulate.NewClusterService(snap)
	transport := simulate.NewTransport(cluster)
	sched := &stubScheduler{}
	ctrl := dsl.NewController(cluster, transport, func() dsl.Scheduler { return sched })
	ctrl.Init()

	cluster.SetMaster(true)
	require.Len(t, sched.added, 1)
	require.Equal(t, dsl.JobName, sched.added[0].Name)

	cluster.SetMaster(false)
	require.Equal(t, []string{dsl.JobName}, sched.removed)
}

// stuckTransport never completes its Rollover call, simulating a request
// still in flight when mastership is lost.
type stuckTransport struct {
	mu    sync.Mutex
	calls int
}

func (s *stuckTransport) Rollover(dsl.RolloverRequest, func(acked bool, err error)) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	// deliberately never invokes the completion callback
}
func (s *stuckTransport) DeleteIndex(dsl.DeleteIndexRequest, func(err error)) {}
func (s *stuckTransport) AddIndexBlock(dsl.AddIndexBlockRequest, func(dsl.AddIndexBlockResponse, error)) {
}
func (s *stuckTransport) UpdateSettings(dsl.UpdateSettingsRequest, func(err error)) {}
func (s *stuckTransport) ForceMerge(dsl.ForceMergeRequest, func(dsl.ForceMergeResponse, error))     {}
func (s *stuckTransport) Downsample(dsl.DownsampleRequest, func(err error))                          {}

func (s *stuckTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// TestMastershipLossClearsDedupAndErrors is testable property 5: on
// mastership loss, the transport deduplicator and the error store are both
// cleared, so a newly elected master (even this same node re-elected) can
// re-issue requests rather than silently fanning in to a dead completion.
func TestMastershipLossClearsDedupAndErrors(t *testing.T) {
	snap := simulate.NewSnapshot()
	snap.PutDataStream(common.DataStream{
		Name:           "logs",
		BackingIndices: []string{"logs-000001"},
		Lifecycle:      &common.Lifecycle{},
	})
	snap.PutIndex(common.IndexMeta{Name: "logs-000001"})

	cluster := simulate.NewClusterService(snap)
	transport := &stuckTransport{}
	sched := &fakeScheduler{}
	ctrl := dsl.NewController(cluster, transport, func() dsl.Scheduler { return sched })
	ctrl.Init()
	cluster.SetMaster(true)

	ctrl.ErrorStore().Record("logs-000001", "boom")
	require.Equal(t, 1, ctrl.ErrorStore().Size())

	sched.Fire()
	require.Equal(t, 1, transport.callCount(), "rollover issued and stuck in flight")

	cluster.SetMaster(false)
	require.Equal(t, 0, ctrl.ErrorStore().Size(), "error store must be cleared on mastership loss")

	cluster.SetMaster(true)
	sched.Fire()
	require.Equal(t, 2, transport.callCount(), "the cleared deduplicator must allow the next master to re-issue the same logical request")
}

// TestUpdateSettingsReregistersJobOnIntervalChange covers spec.md §4.3:
// "subsequent settings updates to the poll interval re-register the job at
// the new interval."
func TestUpdateSettingsReregistersJobOnIntervalChange(t *testing.T) {
	snap := simulate.NewSnapshot()
	cluster := simulate.NewClusterService(snap)
	transport := simulate.NewTransport(cluster)
	sched := &stubScheduler{}
	ctrl := dsl.NewController(cluster, transport, func() dsl.Scheduler { return sched })
	ctrl.Init()
	cluster.SetMaster(true)
	require.Len(t, sched.added, 1)

	next := common.DefaultLifecycleSettings()
	next.PollInterval = 30 * time.Second
	ctrl.UpdateSettings(next)

	require.Len(t, sched.added, 2, "a changed poll interval must re-register the job")
	require.Equal(t, 30*time.Second, sched.added[1].Interval)
}
