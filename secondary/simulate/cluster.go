// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

package simulate

import (
	"sync"

	"github.com/couchbase/data-stream-lifecycled/secondary/common"
	"github.com/couchbase/data-stream-lifecycled/secondary/dsl"
)

// ClusterService is an in-memory dsl.ClusterService. Tests and
// cmd/dslifecycled drive it directly via SetMaster/SetSnapshot; production
// deployments replace it with a real cluster metadata store adapter.
type ClusterService struct {
	mu        sync.Mutex
	listeners []dsl.ClusterChangeListener
	snapshot  common.ClusterSnapshot
	state     dsl.ClusterLifecycleState
}

func NewClusterService(initial common.ClusterSnapshot) *ClusterService {
	return &ClusterService{snapshot: initial, state: dsl.ClusterStarted}
}

func (c *ClusterService) AddListener(l dsl.ClusterChangeListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

func (c *ClusterService) State() common.ClusterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

func (c *ClusterService) LifecycleState() dsl.ClusterLifecycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *ClusterService) CreateTaskQueue(name string, priority dsl.TaskPriority, exec dsl.TaskExecutor) dsl.TaskQueue {
	return &TaskQueue{cluster: c, exec: exec}
}

// SetSnapshot publishes a new authoritative snapshot, e.g. after a
// transport action is simulated as having taken effect.
func (c *ClusterService) SetSnapshot(s common.ClusterSnapshot) {
	c.mu.Lock()
	c.snapshot = s
	c.mu.Unlock()
}

// SetMaster notifies every listener of a mastership transition.
func (c *ClusterService) SetMaster(isMaster bool) {
	c.mu.Lock()
	listeners := append([]dsl.ClusterChangeListener(nil), c.listeners...)
	snap := c.snapshot
	c.mu.Unlock()
	for _, l := range listeners {
		l(dsl.ClusterEvent{IsMaster: isMaster, Snapshot: snap})
	}
}

// TaskQueue applies a ClusterStateTask synchronously against the
// ClusterService's current snapshot and publishes the result, mirroring
// the "executor interface execute(task, state) -> (newState, result)"
// shape spec.md §9 describes without any real batching.
type TaskQueue struct {
	cluster *ClusterService
	exec    dsl.TaskExecutor
}

func (q *TaskQueue) Submit(task dsl.ClusterStateTask, onSuccess func(result interface{}), onFailure func(err error)) {
	q.cluster.mu.Lock()
	state := q.cluster.snapshot
	q.cluster.mu.Unlock()

	newState, result, err := q.exec.Execute(task, state)
	if err != nil {
		onFailure(err)
		return
	}
	q.cluster.SetSnapshot(newState)
	onSuccess(result)
}
