// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

// Package simulate is an in-memory stand-in for the cluster metadata
// store, transport and scheduler the controller consumes as external
// collaborators (spec.md §1, §6). It exists purely so cmd/dslifecycled and
// the test suite can drive the whole rollover -> retention -> force-merge
// -> downsample cycle without a real cluster; it is not used by the
// production wiring of secondary/dsl itself.
package simulate

import (
	"github.com/couchbase/data-stream-lifecycled/secondary/common"
)

// Snapshot is an immutable, copy-on-write ClusterSnapshot backed by plain
// maps. WithIndexCustomMetaMerged and WithBackingIndexReplaced return a new
// Snapshot, leaving the receiver untouched, matching the "immutable view"
// contract of common.ClusterSnapshot.
type Snapshot struct {
	streams map[string]common.DataStream
	indices map[string]common.IndexMeta
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		streams: make(map[string]common.DataStream),
		indices: make(map[string]common.IndexMeta),
	}
}

func (s *Snapshot) clone() *Snapshot {
	out := &Snapshot{
		streams: make(map[string]common.DataStream, len(s.streams)),
		indices: make(map[string]common.IndexMeta, len(s.indices)),
	}
	for k, v := range s.streams {
		cp := v
		cp.BackingIndices = append([]string(nil), v.BackingIndices...)
		out.streams[k] = cp
	}
	for k, v := range s.indices {
		cp := v
		if v.CustomMeta != nil {
			cp.CustomMeta = make(map[string]string, len(v.CustomMeta))
			for mk, mv := range v.CustomMeta {
				cp.CustomMeta[mk] = mv
			}
		}
		out.indices[k] = cp
	}
	return out
}

// PutDataStream installs or replaces a data stream in-place (test/setup
// helper only - a real cluster metadata store would never mutate a
// published snapshot).
func (s *Snapshot) PutDataStream(ds common.DataStream) {
	s.streams[ds.Name] = ds
}

// PutIndex installs or replaces an index's metadata in-place (test/setup
// helper only).
func (s *Snapshot) PutIndex(m common.IndexMeta) {
	s.indices[m.Name] = m
}

func (s *Snapshot) DataStreams() []common.DataStream {
	out := make([]common.DataStream, 0, len(s.streams))
	for _, ds := range s.streams {
		out = append(out, ds)
	}
	return out
}

func (s *Snapshot) Index(name string) (common.IndexMeta, bool) {
	m, ok := s.indices[name]
	return m, ok
}

func (s *Snapshot) ContainsIndex(dataStream, indexName string) bool {
	ds, ok := s.streams[dataStream]
	if !ok {
		return false
	}
	for _, idx := range ds.BackingIndices {
		if idx == indexName {
			return true
		}
	}
	return false
}

func (s *Snapshot) WithIndexCustomMetaMerged(indexName string, merge map[string]string) common.ClusterSnapshot {
	next := s.clone()
	m, ok := next.indices[indexName]
	if !ok {
		return next
	}
	if m.CustomMeta == nil {
		m.CustomMeta = make(map[string]string, len(merge))
	}
	for k, v := range merge {
		m.CustomMeta[k] = v
	}
	next.indices[indexName] = m
	return next
}

func (s *Snapshot) WithBackingIndexReplaced(dataStream, oldIndex, newIndex string) common.ClusterSnapshot {
	next := s.clone()
	ds, ok := next.streams[dataStream]
	if !ok {
		return next
	}
	for i, idx := range ds.BackingIndices {
		if idx == oldIndex {
			ds.BackingIndices[i] = newIndex
			break
		}
	}
	next.streams[dataStream] = ds
	return next
}
