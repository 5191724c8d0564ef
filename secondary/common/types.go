// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

// Package common holds the data model shared by the data-stream lifecycle
// controller: data streams, backing index metadata, downsampling rounds and
// the immutable cluster snapshot a single run decides against.
package common

import (
	"fmt"
	"time"
)

// LifecycleMetaKey is the custom-metadata key under which all lifecycle
// bookkeeping for an index is stored.
const LifecycleMetaKey = "lifecycle"

// ForceMergeCompletedTimestampKey is the single key the controller writes
// into an index's lifecycle custom metadata on successful force-merge.
const ForceMergeCompletedTimestampKey = "force_merge_completed_timestamp"

// DownsampleStatus mirrors an index's downsample_status setting.
type DownsampleStatus int

const (
	DownsampleUnknown DownsampleStatus = iota
	DownsampleStarted
	DownsampleSuccess
)

func (s DownsampleStatus) String() string {
	switch s {
	case DownsampleStarted:
		return "STARTED"
	case DownsampleSuccess:
		return "SUCCESS"
	}
	return "UNKNOWN"
}

// MergePolicy is the subset of an index's merge-policy settings the
// force-merge phase cares about.
type MergePolicy struct {
	FloorSegmentBytes int64
	MergeFactor       int
}

// IndexSettings is the subset of an index's settings the controller reads
// or writes.
type IndexSettings struct {
	MergePolicy MergePolicy

	// DownsampleSourceName is non-empty when this index is itself a
	// downsample product; it names the index it was produced from.
	DownsampleSourceName string

	// DownsampleStatus is only meaningful when DownsampleSourceName is set,
	// i.e. this index is a downsample target.
	DownsampleStatus DownsampleStatus
}

// IndexMeta is a point-in-time view of one backing index as carried by a
// ClusterSnapshot.
type IndexMeta struct {
	Name string
	Age  time.Duration

	Settings IndexSettings

	// CustomMeta is the lifecycle custom-metadata map (string -> string),
	// as stored under LifecycleMetaKey. A nil map means no lifecycle
	// metadata has ever been written for this index.
	CustomMeta map[string]string

	// WriteBlocked is true if the index currently carries a WRITE block.
	WriteBlocked bool
}

// ForceMergeCompletedAt returns the stamped completion timestamp, if any.
func (m IndexMeta) ForceMergeCompletedAt() (time.Time, bool) {
	if m.CustomMeta == nil {
		return time.Time{}, false
	}
	v, ok := m.CustomMeta[ForceMergeCompletedTimestampKey]
	if !ok {
		return time.Time{}, false
	}
	var millis int64
	if _, err := fmt.Sscanf(v, "%d", &millis); err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

// IsDownsampleProduct reports whether this index was produced by a
// downsampling action (as opposed to being an original backing index).
func (m IndexMeta) IsDownsampleProduct() bool {
	return m.Settings.DownsampleSourceName != ""
}

// DownsamplingRound is one step of a data stream's downsampling schedule:
// once a backing index reaches age After, it becomes eligible to be
// downsampled at FixedInterval.
type DownsamplingRound struct {
	After        time.Duration
	FixedInterval string
}

// RolloverConditions mirrors the cluster-default rollover conditions
// inherited by every managed data stream (spec.md §6, "(inherited) cluster
// default rollover conditions").
type RolloverConditions struct {
	MaxAge  time.Duration
	MaxDocs int64
	MaxSize int64
}

// Lifecycle is the optional policy attached to a data stream.
type Lifecycle struct {
	// Retention is the maximum age a backing index may reach before it is
	// deleted. Zero means "no retention configured".
	Retention time.Duration

	// DownsamplingRounds are applied in ascending After order; callers are
	// not required to pre-sort, MatchingRounds will sort defensively.
	DownsamplingRounds []DownsamplingRound

	// IsIndexManaged decides, per backing index name, whether this
	// lifecycle applies to it. A nil predicate manages every backing index.
	IsIndexManaged func(indexName string) bool
}

func (l *Lifecycle) managed(name string) bool {
	if l == nil {
		return false
	}
	if l.IsIndexManaged == nil {
		return true
	}
	return l.IsIndexManaged(name)
}

// MatchingRounds returns the rounds whose After duration is <= age, ordered
// ascending by After (so the last element is the most advanced round that
// currently matches).
func (l *Lifecycle) MatchingRounds(age time.Duration) []DownsamplingRound {
	if l == nil {
		return nil
	}
	sorted := make([]DownsamplingRound, len(l.DownsamplingRounds))
	copy(sorted, l.DownsamplingRounds)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].After > sorted[j].After; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	var out []DownsamplingRound
	for _, r := range sorted {
		if age >= r.After {
			out = append(out, r)
		}
	}
	return out
}

// DataStream is a named, ordered list of backing indices with a
// distinguished write index (the last one).
type DataStream struct {
	Name            string
	BackingIndices  []string // ordered; last is the write index
	Lifecycle       *Lifecycle
}

// WriteIndex returns the name of the current write index, or "" if the
// data stream has no backing indices (should not happen in practice).
func (ds DataStream) WriteIndex() string {
	if len(ds.BackingIndices) == 0 {
		return ""
	}
	return ds.BackingIndices[len(ds.BackingIndices)-1]
}

// ManagedBackingIndices returns the backing indices, the write index
// included, that the data stream's lifecycle considers managed.
func (ds DataStream) ManagedBackingIndices() []string {
	if ds.Lifecycle == nil {
		return nil
	}
	out := make([]string, 0, len(ds.BackingIndices))
	for _, idx := range ds.BackingIndices {
		if ds.Lifecycle.managed(idx) {
			out = append(out, idx)
		}
	}
	return out
}

// ClusterSnapshot is an immutable view of all data streams and index
// metadata at a point in time. Every LifecycleRun receives exactly one.
type ClusterSnapshot interface {
	// DataStreams returns every data stream the cluster currently knows
	// about, managed or not.
	DataStreams() []DataStream

	// Index returns the metadata for a named index, or ok=false if the
	// index does not exist in this snapshot.
	Index(name string) (IndexMeta, bool)

	// ContainsIndex reports whether a data stream's backing indices
	// currently include the named index (used to detect whether a
	// downsample swap has already landed).
	ContainsIndex(dataStream, indexName string) bool
}
