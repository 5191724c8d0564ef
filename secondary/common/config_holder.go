// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

package common

import "sync/atomic"

// ConfigHolder is a single-assignment-then-atomic-swap cell, the same shape
// as the indexer's c.ConfigHolder used by the rebalancer and stats manager
// (config c.ConfigHolder; r.config.Store(config)). Reads never block a
// concurrent Store.
type ConfigHolder struct {
	ptr atomic.Value
}

func (h *ConfigHolder) Store(cfg LifecycleSettings) {
	h.ptr.Store(cfg)
}

func (h *ConfigHolder) Load() LifecycleSettings {
	v := h.ptr.Load()
	if v == nil {
		return LifecycleSettings{}
	}
	return v.(LifecycleSettings)
}
