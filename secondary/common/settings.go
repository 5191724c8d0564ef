// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

package common

import "time"

// Setting keys, as listed in spec.md §6. The settings watcher reads all
// three from a single JSON document (config.LifecycleSettingsMetaPath),
// not from one metakv path per key.
const (
	SettingPollInterval = "data_streams.lifecycle.poll_interval"
	SettingMergeFactor  = "data_streams.lifecycle.target.merge.policy.merge_factor"
	SettingFloorSegment = "data_streams.lifecycle.target.merge.policy.floor_segment"
)

// Defaults and minimums from spec.md §6.
const (
	DefaultPollInterval = 5 * time.Minute
	MinPollInterval     = 1 * time.Second

	DefaultMergeFactor = 16
	MinMergeFactor     = 2

	DefaultFloorSegmentBytes int64 = 100 * 1024 * 1024 // 100 MiB
)

// MaxMasterNodeTimeout is the sentinel "effectively no timeout" duration,
// matching TimeValue.MAX_VALUE in the source this was distilled from. The
// request types in package dsl carry no timeout field, so this value is not
// attached to any request; the controller sets no client-side timeout of
// its own on any call.
const MaxMasterNodeTimeout time.Duration = 1<<63 - 1

// LifecycleSettings is the dynamic, cluster-scoped configuration the
// controller reads every run. It is held in a ConfigHolder and refreshed by
// the metakv settings watcher in package config.
type LifecycleSettings struct {
	PollInterval time.Duration
	TargetMerge  MergePolicy
	Rollover     RolloverConditions
}

// DefaultLifecycleSettings returns the settings in effect before any
// metakv document has been observed.
func DefaultLifecycleSettings() LifecycleSettings {
	return LifecycleSettings{
		PollInterval: DefaultPollInterval,
		TargetMerge: MergePolicy{
			FloorSegmentBytes: DefaultFloorSegmentBytes,
			MergeFactor:       DefaultMergeFactor,
		},
	}
}

// Clamp enforces the minimums from spec.md §6, falling back to the default
// for any field below its minimum (a value equal to the minimum is kept),
// and for a floor segment that is zero or negative.
func (s LifecycleSettings) Clamp() LifecycleSettings {
	out := s
	if out.PollInterval < MinPollInterval {
		out.PollInterval = DefaultPollInterval
	}
	if out.TargetMerge.MergeFactor < MinMergeFactor {
		out.TargetMerge.MergeFactor = DefaultMergeFactor
	}
	if out.TargetMerge.FloorSegmentBytes <= 0 {
		out.TargetMerge.FloorSegmentBytes = DefaultFloorSegmentBytes
	}
	return out
}
