// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

// Command dslifecycled wires a simulated cluster service, transport and
// scheduler to the data-stream lifecycle controller and runs it until
// killed. It exists to make the controller runnable end-to-end without a
// real cluster (spec.md §1 scopes the cluster metadata store and
// transport out as external collaborators); production deployments supply
// real adapters for dsl.ClusterService/dsl.Transport/dsl.Scheduler.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchbase/data-stream-lifecycled/secondary/common"
	"github.com/couchbase/data-stream-lifecycled/secondary/config"
	"github.com/couchbase/data-stream-lifecycled/secondary/dsl"
	"github.com/couchbase/data-stream-lifecycled/secondary/logging"
	"github.com/couchbase/data-stream-lifecycled/secondary/simulate"
)

func main() {
	fset := flag.NewFlagSet("dslifecycled", flag.ContinueOnError)
	logLevel := fset.String("loglevel", "Info", "Log Level - Silent, Fatal, Error, Info, Debug, Trace")
	pollInterval := fset.Duration("pollInterval", common.DefaultPollInterval, "Fallback poll interval until metakv settings arrive")
	adminPort := fset.String("adminPort", "9110", "Lifecycle settings/errors inspection port")

	if err := fset.Parse(os.Args[1:]); err != nil {
		logging.Fatalf("dslifecycled: failed to parse flags: %v", err)
	}

	switch *logLevel {
	case "Silent":
		logging.SetLevel(logging.Silent)
	case "Fatal":
		logging.SetLevel(logging.Fatal)
	case "Error":
		logging.SetLevel(logging.Error)
	case "Debug":
		logging.SetLevel(logging.Debug)
	case "Trace":
		logging.SetLevel(logging.Trace)
	default:
		logging.SetLevel(logging.Info)
	}

	logging.Infof("dslifecycled started with command line: %v", os.Args)

	snap := simulate.NewSnapshot()
	cluster := simulate.NewClusterService(snap)
	transport := simulate.NewTransport(cluster)

	ctrl := dsl.NewController(cluster, transport, func() dsl.Scheduler {
		return simulate.NewTickerScheduler()
	})

	settings := common.DefaultLifecycleSettings()
	settings.PollInterval = *pollInterval
	ctrl.UpdateSettings(settings)

	watcher := config.NewWatcher(func(_, next common.LifecycleSettings) {
		ctrl.UpdateSettings(next)
	})
	watcher.Start()
	defer watcher.Stop()

	ctrl.Init()
	cluster.SetMaster(true)

	mux := http.NewServeMux()
	dsl.NewHTTPHandlers(ctrl.Settings(), ctrl.UpdateSettings, ctrl.ErrorStore()).Register(mux)
	go func() {
		if err := http.ListenAndServe(":"+*adminPort, mux); err != nil {
			logging.Errorf("dslifecycled: admin server exited: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Infof("dslifecycled shutting down")
	time.Sleep(100 * time.Millisecond)
}
