// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

// Package metrics exposes the per-run counters operators use to see the
// controller working, the same role secondary/indexer/stats_manager.go
// plays for the indexer's own periodic stats dump, built on top of
// rcrowley/go-metrics rather than a bespoke stats struct.
package metrics

import (
	gometrics "github.com/rcrowley/go-metrics"
)

// Registry is the single registry the controller's counters live in.
var Registry = gometrics.NewRegistry()

var (
	RolloversIssued       = gometrics.GetOrRegisterCounter("lifecycle.rollovers_issued", Registry)
	DeletesIssued         = gometrics.GetOrRegisterCounter("lifecycle.deletes_issued", Registry)
	ForceMergesIssued     = gometrics.GetOrRegisterCounter("lifecycle.force_merges_issued", Registry)
	SettingsUpdatesIssued = gometrics.GetOrRegisterCounter("lifecycle.settings_updates_issued", Registry)
	DownsamplesIssued     = gometrics.GetOrRegisterCounter("lifecycle.downsamples_issued", Registry)
	BlocksIssued          = gometrics.GetOrRegisterCounter("lifecycle.write_blocks_issued", Registry)
	SwapsIssued           = gometrics.GetOrRegisterCounter("lifecycle.swaps_issued", Registry)
	NameClashErrors       = gometrics.GetOrRegisterCounter("lifecycle.name_clash_errors", Registry)
	RunsCompleted         = gometrics.GetOrRegisterCounter("lifecycle.runs_completed", Registry)
	RunDuration           = gometrics.GetOrRegisterTimer("lifecycle.run_duration", Registry)
)

// Snapshot returns a name->value map suitable for a /lifecycle/metrics
// HTTP handler, mirroring the plain JSON dump stats_manager.go produces.
func Snapshot() map[string]int64 {
	out := make(map[string]int64)
	Registry.Each(func(name string, metric interface{}) {
		switch m := metric.(type) {
		case gometrics.Counter:
			out[name] = m.Count()
		case gometrics.Timer:
			out[name] = m.Count()
		}
	})
	return out
}
