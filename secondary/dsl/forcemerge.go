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
	"github.com/couchbase/data-stream-lifecycled/secondary/common"
	"github.com/couchbase/data-stream-lifecycled/secondary/logging"
	"github.com/couchbase/data-stream-lifecycled/secondary/metrics"
)

// nowMillisFunc lets tests stub out wall-clock time (testable property 8).
var nowMillisFunc = defaultNowMillis

// forceMergeOne implements spec.md §4.5 for one target index, and reports
// whether the index became "affected" this run (any action was issued
// against it).
func (r *runContext) forceMergeOne(snap common.ClusterSnapshot, indexName string) (affected bool) {
	meta, ok := snap.Index(indexName)
	if !ok {
		return false
	}

	if _, stamped := meta.ForceMergeCompletedAt(); stamped {
		return false
	}

	target := r.settings.TargetMerge
	current := meta.Settings.MergePolicy
	if current.FloorSegmentBytes != target.FloorSegmentBytes || current.MergeFactor != target.MergeFactor {
		req := UpdateSettingsRequest{
			RequestID:   common.NewRequestID(),
			IndexName:   indexName,
			MergePolicy: target,
		}
		metrics.SettingsUpdatesIssued.Inc(1)
		r.actions.issueUpdateSettings(req, func(err error) {})
		return true
	}

	req := ForceMergeRequest{
		RequestID: common.NewRequestID(),
		IndexName: indexName,
	}
	metrics.ForceMergesIssued.Inc(1)
	r.actions.issueForceMerge(req, func(resp ForceMergeResponse) {
		task := ForceMergeCompletionTask{IndexName: indexName, NowMillis: nowMillisFunc()}
		r.forceMergeTasks.submit(task, func(err error) {
			if err != nil {
				logging.Errorf("dsl: failed to stamp force-merge completion for %s: %v", indexName, err)
			}
		})
	}, func(err error) {})

	return true
}
