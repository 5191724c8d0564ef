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
	"fmt"

	"github.com/couchbase/data-stream-lifecycled/secondary/common"
	"github.com/couchbase/data-stream-lifecycled/secondary/logging"
	"github.com/couchbase/data-stream-lifecycled/secondary/metrics"
)

// downsampleOne runs the per-index downsampling state machine (spec.md
// §4.6) for one target index of one data stream, returning whether the
// index became affected this run.
func (r *runContext) downsampleOne(snap common.ClusterSnapshot, ds common.DataStream, indexName string) (affected bool) {
	meta, ok := snap.Index(indexName)
	if !ok {
		return false
	}

	rounds := ds.Lifecycle.MatchingRounds(meta.Age)
	if len(rounds) == 0 {
		return false
	}

	// Read-only transition: only original backing indices need the write
	// block; a downsample product is already immutable.
	if !meta.IsDownsampleProduct() && !meta.WriteBlocked {
		req := AddIndexBlockRequest{RequestID: common.NewRequestID(), IndexName: indexName}
		metrics.BlocksIssued.Inc(1)
		r.actions.issueAddIndexBlock(req, func(err error) {})
		return true
	}

	// Source cleanup: this index is itself a successful downsample
	// product and its source still exists - delete the source now that
	// its replacement has landed.
	if meta.IsDownsampleProduct() && meta.Settings.DownsampleStatus == common.DownsampleSuccess {
		if _, sourceExists := snap.Index(meta.Settings.DownsampleSourceName); sourceExists {
			delReq := DeleteIndexRequest{
				RequestID: common.NewRequestID(),
				IndexName: meta.Settings.DownsampleSourceName,
				Reason:    "replacement with its downsampled index in the data stream",
			}
			metrics.DeletesIssued.Inc(1)
			r.actions.issueDeleteIndex(delReq, func(err error) {})
			return true
		}
	}

	lastRound := rounds[len(rounds)-1]
	for _, round := range rounds {
		downsampleName := common.DownsampleIndexName(indexName, round.FixedInterval)
		target, exists := snap.Index(downsampleName)

		if !exists {
			if round == lastRound {
				req := DownsampleRequest{
					RequestID:     common.NewRequestID(),
					SourceIndex:   indexName,
					TargetIndex:   downsampleName,
					FixedInterval: round.FixedInterval,
				}
				metrics.DownsamplesIssued.Inc(1)
				r.actions.issueDownsample(req, func(err error) {})
				return true
			}
			// An earlier round was never started; wait for the last round
			// to be the one that triggers (spec.md §9 Open Question 4: no
			// cancellation of an in-progress earlier round).
			continue
		}

		switch target.Settings.DownsampleStatus {
		case common.DownsampleUnknown:
			if round == lastRound {
				msg := fmt.Sprintf("%v: downsample target %s already exists and is not a downsample index", ErrNameClash, downsampleName)
				prev, existed := r.errors.Record(indexName, msg)
				metrics.NameClashErrors.Inc(1)
				if !existed || prev != msg {
					logging.Errorf("dsl: %s", msg)
				} else {
					logging.Tracef("dsl: %s (unchanged)", msg)
				}
			}
			continue

		case common.DownsampleStarted:
			// A prior master may have lost the in-flight task on failover;
			// re-issuing is safe because Downsample is idempotent on
			// target name (spec.md S6).
			req := DownsampleRequest{
				RequestID:     common.NewRequestID(),
				SourceIndex:   indexName,
				TargetIndex:   downsampleName,
				FixedInterval: round.FixedInterval,
			}
			r.actions.issueDownsample(req, func(err error) {})
			return true

		case common.DownsampleSuccess:
			if !snap.ContainsIndex(ds.Name, downsampleName) {
				task := DownsampleSwapTask{
					DataStream:  ds.Name,
					SourceIndex: indexName,
					TargetIndex: downsampleName,
				}
				metrics.SwapsIssued.Inc(1)
				r.swapTasks.submit(task, func(err error) {
					if err != nil {
						logging.Errorf("dsl: failed to swap %s for %s in %s: %v", downsampleName, indexName, ds.Name, err)
					}
				})
				return true
			}
			return false
		}
	}

	return false
}
