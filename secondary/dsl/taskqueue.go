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
	"strconv"

	"github.com/couchbase/data-stream-lifecycled/secondary/common"
)

// TaskPriority orders cluster-state tasks within a batch (spec.md §4.7).
type TaskPriority int

const (
	TaskPriorityLow TaskPriority = iota
	TaskPriorityNormal
)

// ClusterStateTask is one mutation submitted to a TaskQueue. Execute is
// given the latest authoritative state and returns the new state plus a
// result value handed to the success listener if the batch commits.
type ClusterStateTask interface {
	// Key identifies this task for the cluster-state-task deduplicator.
	Key() TaskKey
	Execute(state common.ClusterSnapshot) (newState common.ClusterSnapshot, result interface{}, err error)
}

// TaskExecutor is the batched executor interface the queue infrastructure
// drives; the controller only ever consumes it (spec.md §4.7, §9: "model
// as an executor interface execute(task, state) -> (newState, result) plus
// a succeeded(task, result) callback").
type TaskExecutor interface {
	Execute(task ClusterStateTask, state common.ClusterSnapshot) (newState common.ClusterSnapshot, result interface{}, err error)
}

// TaskQueue is the external cluster-state submission collaborator
// (spec.md §1, §4.7): out of scope to implement, consumed as an interface.
type TaskQueue interface {
	Submit(task ClusterStateTask, onSuccess func(result interface{}), onFailure func(err error))
}

// DefaultTaskExecutor adapts any ClusterStateTask to the TaskExecutor
// interface by calling its own Execute method. A production cluster
// metadata store provides its own TaskExecutor that additionally applies
// newState to its authoritative copy; this default is what
// ClusterService.CreateTaskQueue callers pass when the task itself already
// carries its whole execution logic, as both task kinds here do.
type DefaultTaskExecutor struct{}

func (DefaultTaskExecutor) Execute(task ClusterStateTask, state common.ClusterSnapshot) (common.ClusterSnapshot, interface{}, error) {
	return task.Execute(state)
}

type taskKind int

const (
	taskKindForceMergeStamp taskKind = iota
	taskKindDownsampleSwap
)

// TaskKey is the value-typed dedup key for cluster-state tasks, the
// cluster-state-task analogue of TransportKey.
type TaskKey struct {
	kind       taskKind
	indexName  string
	dataStream string
	target     string
}

// ForceMergeCompletionTask stamps ForceMergeCompletedTimestampKey (current
// wall-clock ms) into an index's lifecycle custom metadata, preserving any
// other keys already present (spec.md §4.5).
type ForceMergeCompletionTask struct {
	IndexName string
	NowMillis int64
}

func (t ForceMergeCompletionTask) Key() TaskKey {
	return TaskKey{kind: taskKindForceMergeStamp, indexName: t.IndexName}
}

func (t ForceMergeCompletionTask) Execute(state common.ClusterSnapshot) (common.ClusterSnapshot, interface{}, error) {
	mutator, ok := state.(MutableClusterSnapshot)
	if !ok {
		return state, nil, nil
	}
	newState := mutator.WithIndexCustomMetaMerged(t.IndexName, map[string]string{
		common.ForceMergeCompletedTimestampKey: strconv.FormatInt(t.NowMillis, 10),
	})
	return newState, t.NowMillis, nil
}

// DownsampleSwapTask replaces a source index with its downsample product
// in a data stream (spec.md §4.6, final DownsamplingStateMachine branch).
type DownsampleSwapTask struct {
	DataStream  string
	SourceIndex string
	TargetIndex string
}

func (t DownsampleSwapTask) Key() TaskKey {
	return TaskKey{kind: taskKindDownsampleSwap, dataStream: t.DataStream, target: t.TargetIndex}
}

func (t DownsampleSwapTask) Execute(state common.ClusterSnapshot) (common.ClusterSnapshot, interface{}, error) {
	mutator, ok := state.(MutableClusterSnapshot)
	if !ok {
		return state, nil, nil
	}
	newState := mutator.WithBackingIndexReplaced(t.DataStream, t.SourceIndex, t.TargetIndex)
	return newState, t.TargetIndex, nil
}

// MutableClusterSnapshot is an optional extension a ClusterSnapshot
// implementation may satisfy to support the two cluster-state task kinds
// above. Production cluster-metadata stores apply these mutations to their
// own authoritative state and publish a fresh snapshot; this interface
// only exists so tasks can be expressed and tested without depending on a
// concrete store.
type MutableClusterSnapshot interface {
	common.ClusterSnapshot
	WithIndexCustomMetaMerged(indexName string, merge map[string]string) common.ClusterSnapshot
	WithBackingIndexReplaced(dataStream, oldIndex, newIndex string) common.ClusterSnapshot
}
