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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorStoreRecordReturnsPrevious(t *testing.T) {
	s := NewErrorStore()

	prev, existed := s.Record("idx-1", "boom")
	require.False(t, existed)
	require.Empty(t, prev)

	prev, existed = s.Record("idx-1", "boom")
	require.True(t, existed)
	require.Equal(t, "boom", prev)

	prev, existed = s.Record("idx-1", "different boom")
	require.True(t, existed)
	require.Equal(t, "boom", prev)
}

func TestErrorStoreClearAndClearAll(t *testing.T) {
	s := NewErrorStore()
	s.Record("idx-1", "e1")
	s.Record("idx-2", "e2")
	require.Equal(t, 2, s.Size())

	s.Clear("idx-1")
	require.Equal(t, 1, s.Size())
	_, ok := s.Get("idx-1")
	require.False(t, ok)

	s.ClearAll()
	require.Equal(t, 0, s.Size())
}

func TestErrorStoreListIsASnapshotCopy(t *testing.T) {
	s := NewErrorStore()
	s.Record("idx-1", "e1")

	list := s.List()
	list["idx-1"] = "mutated"

	v, _ := s.Get("idx-1")
	require.Equal(t, "e1", v)
}
