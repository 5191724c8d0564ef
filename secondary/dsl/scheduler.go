// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

package dsl

import "time"

// JobName is the constant job name the scheduler fires on (spec.md §6).
const JobName = "data_stream_lifecycle"

// SchedulerEvent names which job fired.
type SchedulerEvent struct {
	JobName string
}

// SchedulerEventListener is registered once via Scheduler.Register.
type SchedulerEventListener func(SchedulerEvent)

// Job describes one periodic registration.
type Job struct {
	Name     string
	Interval time.Duration
}

// Scheduler is the external periodic-job collaborator (spec.md §1, §6):
// out of scope to implement, consumed as an interface. Register must be
// called before the first Add; Add is idempotent per job name (a second
// Add replaces the first job's interval without double-firing).
type Scheduler interface {
	Register(SchedulerEventListener)
	Add(job Job)
	Remove(jobName string)
	Stop()
}
