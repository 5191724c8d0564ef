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
	"sync"

	"github.com/couchbase/data-stream-lifecycled/secondary/common"
	"github.com/couchbase/data-stream-lifecycled/secondary/logging"
)

// Controller is constructed inert; Init wires the cluster-change listener
// only. Init registers no settings listener: settings changes reach the
// controller solely through UpdateSettings, which the caller must wire to
// its settings source. The first master-election transition starts the
// scheduler; losing mastership cancels the job and clears the transport
// deduplicator and error store (spec.md §3 "Lifecycles: Controller").
type Controller struct {
	cluster   ClusterService
	transport Transport

	transportDedup *RequestDeduplicator[TransportKey]
	taskDedup      *RequestDeduplicator[TaskKey]
	errors         *ErrorStore

	actions         *actions
	forceMergeTasks *taskSubmitter
	swapTasks       *taskSubmitter

	settings common.ConfigHolder

	// schedulerOnce guards the SetOnce-style lazy creation of the
	// scheduler reference (spec.md §9: "model as a single-assignment cell
	// with a compare-and-set initialiser; volatile read thereafter").
	schedulerOnce sync.Once
	scheduler     Scheduler
	newScheduler  func() Scheduler

	mu       sync.Mutex
	isMaster bool
}

// NewController builds an inert controller. newScheduler is invoked at
// most once, lazily, on the first master-election transition.
func NewController(cluster ClusterService, transport Transport, newScheduler func() Scheduler) *Controller {
	c := &Controller{
		cluster:        cluster,
		transport:      transport,
		transportDedup: NewRequestDeduplicator[TransportKey](),
		taskDedup:      NewRequestDeduplicator[TaskKey](),
		errors:         NewErrorStore(),
		newScheduler:   newScheduler,
	}
	c.settings.Store(common.DefaultLifecycleSettings())
	return c
}

// ErrorStore exposes the error store for external inspection (spec.md §7:
// "the error store is the user-visible surface").
func (c *Controller) ErrorStore() *ErrorStore { return c.errors }

// Settings exposes the settings holder so an HTTPHandlers can be wired
// against it without the controller depending on net/http itself.
func (c *Controller) Settings() *common.ConfigHolder { return &c.settings }

// UpdateSettings installs new dynamic settings and, if the poll interval
// changed while this node is master, re-registers the job at the new
// interval (spec.md §4.3: "subsequent settings updates to the poll
// interval re-register the job at the new interval").
func (c *Controller) UpdateSettings(next common.LifecycleSettings) {
	next = next.Clamp()
	prev := c.settings.Load()
	c.settings.Store(next)

	if prev.PollInterval == next.PollInterval {
		return
	}
	c.mu.Lock()
	master := c.isMaster
	sched := c.scheduler
	c.mu.Unlock()
	if master && sched != nil {
		sched.Add(Job{Name: JobName, Interval: next.PollInterval})
	}
}

// Init wires the cluster-change listener and creates the two cluster-state
// task queues (spec.md §4.7: LOW priority for force-merge stamps, NORMAL
// for downsample swaps). Call once at startup.
func (c *Controller) Init() {
	c.actions = newActions(c.transport, c.transportDedup, c.errors)
	forceMergeQueue := c.cluster.CreateTaskQueue("data-stream-lifecycle-force-merge", TaskPriorityLow, DefaultTaskExecutor{})
	swapQueue := c.cluster.CreateTaskQueue("data-stream-lifecycle-swap", TaskPriorityNormal, DefaultTaskExecutor{})
	c.forceMergeTasks = newTaskSubmitter(forceMergeQueue, c.taskDedup)
	c.swapTasks = newTaskSubmitter(swapQueue, c.taskDedup)

	c.cluster.AddListener(c.onClusterEvent)
}

func (c *Controller) getScheduler() Scheduler {
	c.schedulerOnce.Do(func() {
		c.scheduler = c.newScheduler()
		c.scheduler.Register(c.onSchedulerEvent)
	})
	return c.scheduler
}

func (c *Controller) onClusterEvent(ev ClusterEvent) {
	if ev.StateNotRecovered {
		return
	}

	c.mu.Lock()
	was := c.isMaster
	c.isMaster = ev.IsMaster
	c.mu.Unlock()

	if !was && ev.IsMaster {
		c.onBecomeMaster()
	} else if was && !ev.IsMaster {
		c.onLoseMastership()
	}
}

func (c *Controller) onBecomeMaster() {
	if c.cluster.LifecycleState() != ClusterStarted {
		logging.Infof("dsl: elected master but cluster service is not started, deferring job registration")
		return
	}
	logging.Infof("dsl: elected master, starting %s", JobName)
	settings := c.settings.Load()
	c.getScheduler().Add(Job{Name: JobName, Interval: settings.PollInterval})
}

func (c *Controller) onLoseMastership() {
	logging.Infof("dsl: lost mastership, stopping %s", JobName)
	if c.scheduler != nil {
		c.scheduler.Remove(JobName)
	}
	c.transportDedup.Clear()
	c.errors.ClearAll()
}

func (c *Controller) onSchedulerEvent(ev SchedulerEvent) {
	if ev.JobName != JobName {
		return
	}
	c.mu.Lock()
	master := c.isMaster
	c.mu.Unlock()
	if !master {
		return
	}

	snap := c.cluster.State()
	rc := &runContext{
		actions:         c.actions,
		forceMergeTasks: c.forceMergeTasks,
		swapTasks:       c.swapTasks,
		errors:          c.errors,
		settings:        c.settings.Load(),
	}
	LifecycleRun(snap, rc)
}
