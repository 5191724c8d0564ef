// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

package dsl

import "errors"

// ErrIndexNotFound is returned by a Transport when the target index no
// longer exists. The controller treats this as idempotence, not failure
// (spec.md §4.8, §7): the requested end state already holds.
var ErrIndexNotFound = errors.New("index not found")

// ErrSnapshotInProgress is returned by Transport.DeleteIndex when the
// index cannot be deleted because a snapshot of it is in progress. Unlike
// ErrIndexNotFound this is still surfaced as a failure; the next run
// retries (spec.md §4.8, §7).
var ErrSnapshotInProgress = errors.New("snapshot in progress")

// ErrNameClash is recorded against an index when its deterministic
// downsample target name already exists but is not itself a downsample
// product (spec.md §4.6, S5).
var ErrNameClash = errors.New("resource already exists")

// ErrNotAcknowledged is the generic failure surfaced for an
// AddIndexBlock response that came back unacknowledged with no more
// specific shard failure to report (spec.md §4.8).
var ErrNotAcknowledged = errors.New("request not acknowledged")
