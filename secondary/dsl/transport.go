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
	"errors"

	"github.com/couchbase/data-stream-lifecycled/secondary/logging"
)

// Transport is the external request-transport collaborator (spec.md §1,
// §6): six typed async calls, each taking a request and a completion
// callback. Out of scope to implement; consumed as an interface.
//
// The request types carry no master-node timeout, and the controller
// imposes no timeout of its own on any call, relying on the operation's
// own cost to bound execution.
type Transport interface {
	Rollover(req RolloverRequest, onDone func(acked bool, err error))
	DeleteIndex(req DeleteIndexRequest, onDone func(err error))
	AddIndexBlock(req AddIndexBlockRequest, onDone func(resp AddIndexBlockResponse, err error))
	UpdateSettings(req UpdateSettingsRequest, onDone func(err error))
	ForceMerge(req ForceMergeRequest, onDone func(resp ForceMergeResponse, err error))
	Downsample(req DownsampleRequest, onDone func(err error))
}

// actions wraps a Transport with the deduplication and idempotence rules
// common to every request kind (spec.md §4.8): INFO on success, map
// ErrIndexNotFound to success plus clear the error store, and dedupe via a
// single TransportKey-keyed RequestDeduplicator shared by every phase.
// issueRollover is the one exception to the classify-based idempotence
// handling, since it has no real index name to record against; see its
// own doc comment.
type actions struct {
	transport Transport
	dedup     *RequestDeduplicator[TransportKey]
	errors    *ErrorStore
}

func newActions(transport Transport, dedup *RequestDeduplicator[TransportKey], errStore *ErrorStore) *actions {
	return &actions{transport: transport, dedup: dedup, errors: errStore}
}

// issueRollover submits a rollover request and reports completion via
// done. Unlike every other action, RolloverRequest carries a data-stream
// name, not an index name, so it does not route through classify: classify
// unconditionally logs and records into ErrorStore keyed by whatever name
// it's given, and ErrorStore's contract is index-name keyed (spec.md §4.1,
// §3). Recording against a data-stream name would never get cleared by
// clearStaleErrors (which checks index existence) and would leak
// permanently. The write-index-keyed completion handler in run.go owns
// ErrorStore attribution for rollover failures instead.
func (a *actions) issueRollover(req RolloverRequest, done func(err error)) {
	a.dedup.ExecuteOnce(req.DedupKey(), done, func(_ TransportKey, complete CompletionListener) {
		a.transport.Rollover(req, func(acked bool, err error) {
			if err == nil {
				logging.Infof("dsl: rollover succeeded for %s", req.DataStream)
				if !acked {
					logging.Tracef("dsl: rollover for %s completed without acknowledgement", req.DataStream)
				}
				complete(nil)
				return
			}
			if errors.Is(err, ErrIndexNotFound) {
				logging.Infof("dsl: rollover for %s hit index-not-found, treating as success", req.DataStream)
				complete(nil)
				return
			}
			complete(err)
		})
	})
}

func (a *actions) issueDeleteIndex(req DeleteIndexRequest, done func(err error)) {
	a.dedup.ExecuteOnce(req.DedupKey(), done, func(_ TransportKey, complete CompletionListener) {
		a.transport.DeleteIndex(req, func(err error) {
			if errors.Is(err, ErrSnapshotInProgress) {
				logging.Infof("dsl: delete of %s deferred, snapshot in progress", req.IndexName)
				complete(err)
				return
			}
			complete(a.classify(req.IndexName, "delete", err))
		})
	})
}

func (a *actions) issueAddIndexBlock(req AddIndexBlockRequest, done func(err error)) {
	a.dedup.ExecuteOnce(req.DedupKey(), done, func(_ TransportKey, complete CompletionListener) {
		a.transport.AddIndexBlock(req, func(resp AddIndexBlockResponse, err error) {
			if err == nil && !resp.Acknowledged {
				if resp.ShardFailure != "" {
					err = errors.New(resp.ShardFailure)
				} else {
					err = ErrNotAcknowledged
				}
			}
			complete(a.classify(req.IndexName, "add-block", err))
		})
	})
}

func (a *actions) issueUpdateSettings(req UpdateSettingsRequest, done func(err error)) {
	a.dedup.ExecuteOnce(req.DedupKey(), done, func(_ TransportKey, complete CompletionListener) {
		a.transport.UpdateSettings(req, func(err error) {
			complete(a.classify(req.IndexName, "update-settings", err))
		})
	})
}

// issueForceMerge dedupes the merge itself; onSuccess fires exactly once,
// only on the call that actually triggered the transport request (not
// once per fan-in listener), since it drives a cluster-state task
// submission that must itself happen exactly once per logical merge.
// onDone fans out to every caller the way every other action does.
func (a *actions) issueForceMerge(req ForceMergeRequest, onSuccess func(resp ForceMergeResponse), onDone func(err error)) {
	a.dedup.ExecuteOnce(req.DedupKey(), onDone, func(_ TransportKey, complete CompletionListener) {
		a.transport.ForceMerge(req, func(resp ForceMergeResponse, err error) {
			if err == nil {
				if resp.FailedShards > 0 {
					err = errors.New("force merge reported failed shards")
				} else if resp.SuccessfulShards < resp.TotalShards {
					err = errors.New("force merge reported incomplete shard success")
				}
			}
			err = a.classify(req.IndexName, "force-merge", err)
			if err == nil {
				onSuccess(resp)
			}
			complete(err)
		})
	})
}

func (a *actions) issueDownsample(req DownsampleRequest, done func(err error)) {
	a.dedup.ExecuteOnce(req.DedupKey(), done, func(_ TransportKey, complete CompletionListener) {
		a.transport.Downsample(req, func(err error) {
			complete(a.classify(req.SourceIndex, "downsample", err))
		})
	})
}

// classify applies the idempotence and logging rules shared by every
// request kind, and returns the error the caller should treat as the
// phase-level outcome (nil if absorbed as idempotent).
func (a *actions) classify(indexName, verb string, err error) error {
	if err == nil {
		logging.Infof("dsl: %s succeeded for %s", verb, indexName)
		return nil
	}
	if errors.Is(err, ErrIndexNotFound) {
		logging.Infof("dsl: %s for %s hit index-not-found, treating as success", verb, indexName)
		a.errors.Clear(indexName)
		return nil
	}
	prev, existed := a.errors.Record(indexName, err.Error())
	if !existed || prev != err.Error() {
		logging.Errorf("dsl: %s failed for %s: %v", verb, indexName, err)
	} else {
		logging.Tracef("dsl: %s failed for %s (unchanged): %v", verb, indexName, err)
	}
	return err
}
