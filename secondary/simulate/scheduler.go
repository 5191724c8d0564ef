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
	"sync"
	"time"

	"github.com/couchbase/data-stream-lifecycled/secondary/dsl"
	"github.com/couchbase/data-stream-lifecycled/secondary/logging"
)

// TickerScheduler is a time.Ticker-backed dsl.Scheduler, in the same
// goroutine-plus-select-loop shape as the indexer's own periodic loops
// (secondary/indexer/stats_manager.go's runStatsDumpLogger,
// secondary/indexer/system_state_logger.go's Run).
type TickerScheduler struct {
	mu       sync.Mutex
	listener dsl.SchedulerEventListener
	jobs     map[string]chan struct{}
	stopped  bool
}

func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{jobs: make(map[string]chan struct{})}
}

func (s *TickerScheduler) Register(l dsl.SchedulerEventListener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

func (s *TickerScheduler) Add(job dsl.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if stop, exists := s.jobs[job.Name]; exists {
		close(stop)
	}
	stop := make(chan struct{})
	s.jobs[job.Name] = stop
	go s.run(job, stop)
}

func (s *TickerScheduler) Remove(jobName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, exists := s.jobs[jobName]; exists {
		close(stop)
		delete(s.jobs, jobName)
	}
}

func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, stop := range s.jobs {
		close(stop)
		delete(s.jobs, name)
	}
	s.stopped = true
}

func (s *TickerScheduler) run(job dsl.Job, stop chan struct{}) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			listener := s.listener
			s.mu.Unlock()
			if listener == nil {
				continue
			}
			func() {
				defer func() {
					if p := recover(); p != nil {
						logging.Errorf("simulate: scheduler job %s panicked: %v", job.Name, p)
					}
				}()
				listener(dsl.SchedulerEvent{JobName: job.Name})
			}()
		}
	}
}
