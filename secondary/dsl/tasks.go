// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

package dsl

import "github.com/couchbase/data-stream-lifecycled/secondary/logging"

// taskSubmitter wraps a TaskQueue with the cluster-state-task
// deduplicator, the second of the two deduplicators spec.md §4.2
// describes ("one keyed by transport request identity, one keyed by
// cluster-state task identity").
type taskSubmitter struct {
	queue TaskQueue
	dedup *RequestDeduplicator[TaskKey]
}

func newTaskSubmitter(queue TaskQueue, dedup *RequestDeduplicator[TaskKey]) *taskSubmitter {
	return &taskSubmitter{queue: queue, dedup: dedup}
}

func (t *taskSubmitter) submit(task ClusterStateTask, onDone func(err error)) {
	t.dedup.ExecuteOnce(task.Key(), onDone, func(_ TaskKey, complete CompletionListener) {
		t.queue.Submit(task,
			func(result interface{}) {
				logging.Infof("dsl: cluster-state task committed: %+v", task.Key())
				complete(nil)
			},
			func(err error) {
				logging.Errorf("dsl: cluster-state task failed: %+v: %v", task.Key(), err)
				complete(err)
			},
		)
	})
}
