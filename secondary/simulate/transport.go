// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

package simulate

import (
	"fmt"
	"sync"

	"github.com/couchbase/data-stream-lifecycled/secondary/common"
	"github.com/couchbase/data-stream-lifecycled/secondary/dsl"
)

// Transport is an in-memory dsl.Transport that applies each request to a
// ClusterService's snapshot synchronously before invoking the completion
// callback, so a test can observe the resulting state immediately.
type Transport struct {
	cluster *ClusterService

	mu      sync.Mutex
	seq     int
}

func NewTransport(cluster *ClusterService) *Transport {
	return &Transport{cluster: cluster}
}

func (t *Transport) Rollover(req dsl.RolloverRequest, onDone func(acked bool, err error)) {
	snap := t.cluster.State().(*Snapshot)
	ds, ok := snap.streams[req.DataStream]
	if !ok {
		onDone(false, dsl.ErrIndexNotFound)
		return
	}
	next := snap.clone()
	t.mu.Lock()
	t.seq++
	newName := fmt.Sprintf("%s-%06d", req.DataStream, t.seq+len(ds.BackingIndices))
	t.mu.Unlock()
	nds := next.streams[req.DataStream]
	nds.BackingIndices = append(nds.BackingIndices, newName)
	next.streams[req.DataStream] = nds
	next.indices[newName] = common.IndexMeta{Name: newName}
	t.cluster.SetSnapshot(next)
	onDone(true, nil)
}

func (t *Transport) DeleteIndex(req dsl.DeleteIndexRequest, onDone func(err error)) {
	snap := t.cluster.State().(*Snapshot)
	if _, ok := snap.indices[req.IndexName]; !ok {
		onDone(dsl.ErrIndexNotFound)
		return
	}
	next := snap.clone()
	delete(next.indices, req.IndexName)
	for name, ds := range next.streams {
		filtered := make([]string, 0, len(ds.BackingIndices))
		for _, idx := range ds.BackingIndices {
			if idx != req.IndexName {
				filtered = append(filtered, idx)
			}
		}
		ds.BackingIndices = filtered
		next.streams[name] = ds
	}
	t.cluster.SetSnapshot(next)
	onDone(nil)
}

func (t *Transport) AddIndexBlock(req dsl.AddIndexBlockRequest, onDone func(resp dsl.AddIndexBlockResponse, err error)) {
	snap := t.cluster.State().(*Snapshot)
	m, ok := snap.indices[req.IndexName]
	if !ok {
		onDone(dsl.AddIndexBlockResponse{}, dsl.ErrIndexNotFound)
		return
	}
	next := snap.clone()
	m.WriteBlocked = true
	next.indices[req.IndexName] = m
	t.cluster.SetSnapshot(next)
	onDone(dsl.AddIndexBlockResponse{Acknowledged: true}, nil)
}

func (t *Transport) UpdateSettings(req dsl.UpdateSettingsRequest, onDone func(err error)) {
	snap := t.cluster.State().(*Snapshot)
	m, ok := snap.indices[req.IndexName]
	if !ok {
		onDone(dsl.ErrIndexNotFound)
		return
	}
	next := snap.clone()
	m.Settings.MergePolicy = req.MergePolicy
	next.indices[req.IndexName] = m
	t.cluster.SetSnapshot(next)
	onDone(nil)
}

func (t *Transport) ForceMerge(req dsl.ForceMergeRequest, onDone func(resp dsl.ForceMergeResponse, err error)) {
	snap := t.cluster.State().(*Snapshot)
	if _, ok := snap.indices[req.IndexName]; !ok {
		onDone(dsl.ForceMergeResponse{}, dsl.ErrIndexNotFound)
		return
	}
	onDone(dsl.ForceMergeResponse{TotalShards: 1, SuccessfulShards: 1}, nil)
}

func (t *Transport) Downsample(req dsl.DownsampleRequest, onDone func(err error)) {
	snap := t.cluster.State().(*Snapshot)
	if _, ok := snap.indices[req.SourceIndex]; !ok {
		onDone(dsl.ErrIndexNotFound)
		return
	}
	next := snap.clone()
	next.indices[req.TargetIndex] = common.IndexMeta{
		Name: req.TargetIndex,
		Settings: common.IndexSettings{
			DownsampleSourceName: req.SourceIndex,
			DownsampleStatus:     common.DownsampleStarted,
		},
	}
	t.cluster.SetSnapshot(next)
	onDone(nil)
}

// AdvanceDownsampleToSuccess is a test/demo helper simulating the
// out-of-band completion of an asynchronous downsample job: the downsample
// subsystem itself is explicitly out of scope (spec.md §1).
func (t *Transport) AdvanceDownsampleToSuccess(targetIndex string) {
	snap := t.cluster.State().(*Snapshot)
	m, ok := snap.indices[targetIndex]
	if !ok {
		return
	}
	next := snap.clone()
	m.Settings.DownsampleStatus = common.DownsampleSuccess
	next.indices[targetIndex] = m
	t.cluster.SetSnapshot(next)
}
