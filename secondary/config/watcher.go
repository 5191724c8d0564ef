// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

// Package config watches the cluster-scoped dynamic settings listed in
// spec.md §6 via metakv, the same mechanism secondary/indexer/settings.go
// uses for indexer settings: a long-running metakv.RunObserveChildren
// watch, retried with backoff, feeding a ConfigHolder that the rest of the
// controller reads without blocking.
package config

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/couchbase/cbauth/metakv"

	"github.com/couchbase/data-stream-lifecycled/secondary/common"
	"github.com/couchbase/data-stream-lifecycled/secondary/logging"
)

// LifecycleSettingsMetaPath is the metakv document holding the current
// data-stream-lifecycle settings.
const LifecycleSettingsMetaPath = "/data_streams/lifecycle/settings"

const maxMetakvRetries = 5

// Listener is notified whenever the effective settings change. Used by
// MasterLifecycle to re-register the scheduler job at a new poll interval.
type Listener func(old, new common.LifecycleSettings)

// Watcher owns a ConfigHolder and keeps it in sync with metakv.
type Watcher struct {
	holder    *common.ConfigHolder
	cancelCh  chan struct{}
	listeners []Listener
}

// NewWatcher constructs a Watcher seeded with the documented defaults; call
// Start to begin observing metakv.
func NewWatcher(listeners ...Listener) *Watcher {
	w := &Watcher{
		holder:    &common.ConfigHolder{},
		cancelCh:  make(chan struct{}),
		listeners: listeners,
	}
	w.holder.Store(common.DefaultLifecycleSettings())
	return w
}

func (w *Watcher) Settings() common.LifecycleSettings {
	return w.holder.Load()
}

// Start launches the background metakv watch. It mirrors
// settingsManager's goroutine in secondary/indexer/settings.go: wrap
// RunObserveChildren in a RetryHelper, and escalate to Fatalf if retries
// are exhausted (the settings watcher is load-bearing; without it the
// controller silently runs with stale config forever).
func (w *Watcher) Start() {
	go func() {
		fn := func(r int, err error) error {
			if r > 0 {
				logging.Warnf("lifecycle.config: metakv notifier failed (%v), retrying (%d)", err, r)
			}
			return metakv.RunObserveChildren("/data_streams/lifecycle/", w.metaKVCallback, w.cancelCh)
		}
		rh := common.NewRetryHelper(maxMetakvRetries, time.Second, 2, fn)
		if err := rh.Run(); err != nil {
			logging.Fatalf("lifecycle.config: metakv notifier failed even after max retries: %v", err)
		}
	}()
}

func (w *Watcher) Stop() {
	close(w.cancelCh)
}

// wireSettings is the JSON document shape stored at LifecycleSettingsMetaPath.
type wireSettings struct {
	PollInterval string `json:"poll_interval,omitempty"`
	MergeFactor  int    `json:"merge_factor,omitempty"`
	FloorSegment int64  `json:"floor_segment,omitempty"`
}

func (w *Watcher) metaKVCallback(path string, value []byte, rev interface{}) error {
	if path != LifecycleSettingsMetaPath || len(value) == 0 {
		return nil
	}

	var wire wireSettings
	if err := json.Unmarshal(value, &wire); err != nil {
		logging.Errorf("lifecycle.config: failed to unmarshal settings document: %v", err)
		return nil
	}

	next := w.holder.Load()
	if wire.PollInterval != "" {
		if d, err := time.ParseDuration(wire.PollInterval); err == nil {
			next.PollInterval = d
		} else {
			logging.Warnf("lifecycle.config: invalid %s value %q: %v", common.SettingPollInterval, wire.PollInterval, err)
		}
	}
	if wire.MergeFactor > 0 {
		next.TargetMerge.MergeFactor = wire.MergeFactor
	}
	if wire.FloorSegment > 0 {
		next.TargetMerge.FloorSegmentBytes = wire.FloorSegment
	}
	next = next.Clamp()

	old := w.holder.Load()
	w.holder.Store(next)
	logging.Infof("lifecycle.config: settings updated poll_interval=%s merge_factor=%d floor_segment=%s",
		next.PollInterval, next.TargetMerge.MergeFactor, strconv.FormatInt(next.TargetMerge.FloorSegmentBytes, 10))

	for _, l := range w.listeners {
		l(old, next)
	}
	return nil
}
