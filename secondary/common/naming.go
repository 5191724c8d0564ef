// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

package common

import (
	"fmt"

	"github.com/google/uuid"
)

// DownsampleIndexName is a pure function of (source index name, fixed
// interval). It must stay bit-for-bit stable across versions: repeated
// runs that reach the same state must produce the same name, and therefore
// the same deduplication key (spec.md §9).
func DownsampleIndexName(sourceName, fixedInterval string) string {
	return fmt.Sprintf("downsample-%s-%s", sourceName, fixedInterval)
}

// NewRequestID generates a random request identifier used purely for
// bookkeeping (logging, peer-side tracing). Dedup-key projections must
// never include it, see RequestDeduplicator.
func NewRequestID() string {
	return uuid.NewString()
}
