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
)

// Every transport request type below carries a RequestID purely for
// peer-side tracing/logging. TransportKey, their shared dedup-key
// projection, deliberately omits it along with ForceMergeRequest's
// ParentTaskID - per spec.md §9, if a new request type is added its
// dedup-key projection must be specified explicitly, never inferred.

// transportKind discriminates TransportKey's fields, letting one
// RequestDeduplicator[TransportKey] dedupe all six request kinds rather
// than needing one deduplicator instance per kind.
type transportKind int

const (
	kindRollover transportKind = iota
	kindDeleteIndex
	kindAddBlock
	kindUpdateSettings
	kindForceMerge
	kindDownsample
)

// TransportKey is the value-typed dedup key for every transport request.
// Two requests of the same kind targeting the same index(es) with the same
// logical parameters collapse to one in-flight call.
type TransportKey struct {
	kind        transportKind
	dataStream  string
	indexName   string
	mergePolicy common.MergePolicy
	sourceIndex string
	targetIndex string
}

// RolloverRequest asks the cluster to roll a data stream's write index.
type RolloverRequest struct {
	RequestID  string
	DataStream string
	Conditions common.RolloverConditions
}

func (r RolloverRequest) DedupKey() TransportKey {
	return TransportKey{kind: kindRollover, dataStream: r.DataStream}
}

// DeleteIndexRequest asks the cluster to delete an index outright.
type DeleteIndexRequest struct {
	RequestID string
	IndexName string
	Reason    string
}

func (r DeleteIndexRequest) DedupKey() TransportKey {
	return TransportKey{kind: kindDeleteIndex, indexName: r.IndexName}
}

// AddIndexBlockRequest asks the cluster to add a WRITE block to an index.
type AddIndexBlockRequest struct {
	RequestID string
	IndexName string
}

func (r AddIndexBlockRequest) DedupKey() TransportKey {
	return TransportKey{kind: kindAddBlock, indexName: r.IndexName}
}

// UpdateSettingsRequest pushes new merge-policy settings to an index ahead
// of force-merge.
type UpdateSettingsRequest struct {
	RequestID   string
	IndexName   string
	MergePolicy common.MergePolicy
}

func (r UpdateSettingsRequest) DedupKey() TransportKey {
	return TransportKey{kind: kindUpdateSettings, indexName: r.IndexName, mergePolicy: r.MergePolicy}
}

// ForceMergeRequest asks the cluster to force-merge an index's segments.
// RequestID and ParentTaskID are bookkeeping only: the source this was
// distilled from explicitly excludes the request UUID/request-id/parent
// task from equality so the same logical merge dedups across callers
// (spec.md §4.5, §9).
type ForceMergeRequest struct {
	RequestID    string
	ParentTaskID string
	IndexName    string
}

func (r ForceMergeRequest) DedupKey() TransportKey {
	return TransportKey{kind: kindForceMerge, indexName: r.IndexName}
}

// ForceMergeResponse is the shard-level result of a force-merge call.
type ForceMergeResponse struct {
	TotalShards      int
	SuccessfulShards int
	FailedShards     int
}

// DownsampleRequest asks the cluster to produce a downsampled target index
// from a source index at a fixed interval.
type DownsampleRequest struct {
	RequestID     string
	SourceIndex   string
	TargetIndex   string
	FixedInterval string
}

func (r DownsampleRequest) DedupKey() TransportKey {
	return TransportKey{kind: kindDownsample, sourceIndex: r.SourceIndex, targetIndex: r.TargetIndex}
}

// AddIndexBlockResponse carries per-index acknowledgement and any
// explicit shard-level block failures (spec.md §4.8).
type AddIndexBlockResponse struct {
	Acknowledged bool
	ShardFailure string // non-empty if a specific shard failure was reported
}
