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
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/couchbase/cbauth"

	"github.com/couchbase/data-stream-lifecycled/secondary/common"
	"github.com/couchbase/data-stream-lifecycled/secondary/logging"
)

// HTTPHandlers registers the lifecycle inspection surface, the
// data-stream-lifecycle analogue of secondary/indexer/settings.go's
// handleSettingsReq: GET/POST /lifecycle/settings over the ConfigHolder,
// and a read-only GET /lifecycle/errors over the ErrorStore (spec.md §7:
// "the error store is the user-visible surface, inspected via external
// APIs, not designed here" - this adapter is that API, kept intentionally
// thin).
type HTTPHandlers struct {
	settings       *common.ConfigHolder
	updateSettings func(common.LifecycleSettings)
	errors         *ErrorStore
}

// NewHTTPHandlers wires the inspection surface against settings (read path)
// and updateSettings (write path). updateSettings must be the controller's
// own UpdateSettings method, not a direct settings.Store - a POST that
// changes the poll interval has to go through the same re-registration
// logic a metakv settings push does (spec.md §4.3).
func NewHTTPHandlers(settings *common.ConfigHolder, updateSettings func(common.LifecycleSettings), errors *ErrorStore) *HTTPHandlers {
	return &HTTPHandlers{settings: settings, updateSettings: updateSettings, errors: errors}
}

// Register wires both handlers onto mux, mirroring settingsManager.Init's
// direct http.HandleFunc calls rather than a router library.
func (h *HTTPHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/lifecycle/settings", h.handleSettings)
	mux.HandleFunc("/lifecycle/errors", h.handleErrors)
}

// validateAuth mirrors settingsManager.validateAuth in
// secondary/indexer/settings.go, built directly on cbauth.AuthWebCreds
// rather than common.IsAuthValid's wrapper since this handler needs no
// other common.* dependency.
func (h *HTTPHandlers) validateAuth(w http.ResponseWriter, r *http.Request) (cbauth.Creds, bool) {
	creds, err := cbauth.AuthWebCreds(r)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("401 Unauthorized\n"))
		return nil, false
	}
	return creds, true
}

type wireLifecycleSettings struct {
	PollIntervalSeconds float64 `json:"poll_interval_seconds"`
	MergeFactor         int     `json:"merge_factor"`
	FloorSegmentBytes   int64   `json:"floor_segment_bytes"`
}

func (h *HTTPHandlers) handleSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.validateAuth(w, r); !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		s := h.settings.Load()
		h.writeJSON(w, wireLifecycleSettings{
			PollIntervalSeconds: s.PollInterval.Seconds(),
			MergeFactor:         s.TargetMerge.MergeFactor,
			FloorSegmentBytes:   s.TargetMerge.FloorSegmentBytes,
		})
	case http.MethodPost:
		var wire wireLifecycleSettings
		if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
			h.writeError(w, err)
			return
		}
		next := h.settings.Load()
		if wire.PollIntervalSeconds > 0 {
			next.PollInterval = time.Duration(wire.PollIntervalSeconds * float64(time.Second))
		}
		if wire.MergeFactor > 0 {
			next.TargetMerge.MergeFactor = wire.MergeFactor
		}
		if wire.FloorSegmentBytes > 0 {
			next.TargetMerge.FloorSegmentBytes = wire.FloorSegmentBytes
		}
		h.updateSettings(next)
		logging.Infof("dsl: settings updated over HTTP: %+v", next)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK\n"))
	default:
		h.writeError(w, errUnsupportedMethod)
	}
}

func (h *HTTPHandlers) handleErrors(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.validateAuth(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		h.writeError(w, errUnsupportedMethod)
		return
	}
	h.writeJSON(w, h.errors.List())
}

func (h *HTTPHandlers) writeJSON(w http.ResponseWriter, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		h.writeError(w, err)
		return
	}
	header := w.Header()
	header["Content-Type"] = []string{"application/json"}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	w.Write([]byte("\n"))
}

func (h *HTTPHandlers) writeError(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusBadRequest)
	w.Write([]byte(err.Error() + "\n"))
}

var errUnsupportedMethod = errors.New("unsupported method")
