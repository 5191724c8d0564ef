// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

package dsl

import "github.com/couchbase/data-stream-lifecycled/secondary/common"

// ClusterLifecycleState mirrors the cluster service's own started/
// stopped/closed lifecycle (spec.md §6).
type ClusterLifecycleState int

const (
	ClusterStarted ClusterLifecycleState = iota
	ClusterStopped
	ClusterClosed
)

// ClusterEvent is delivered to every registered change listener.
type ClusterEvent struct {
	// IsMaster is this node's mastership status after the change.
	IsMaster bool

	// StateNotRecovered mirrors the "state not recovered" block: while
	// true, MasterLifecycle ignores the event entirely (spec.md §4.3).
	StateNotRecovered bool

	Snapshot common.ClusterSnapshot
}

// ClusterChangeListener receives cluster metadata change notifications.
type ClusterChangeListener func(ClusterEvent)

// ClusterService is the external collaborator supplying cluster metadata
// (spec.md §1, §6): out of scope to implement, consumed as an interface.
type ClusterService interface {
	AddListener(ClusterChangeListener)
	State() common.ClusterSnapshot
	LifecycleState() ClusterLifecycleState
	CreateTaskQueue(name string, priority TaskPriority, exec TaskExecutor) TaskQueue
}
