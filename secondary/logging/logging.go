// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

// Package logging is a small leveled logging facade used throughout the
// data-stream lifecycle controller. It mirrors the level names and
// package-level Infof/Warnf/Errorf style this codebase uses everywhere else.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

type Level int32

const (
	Silent Level = iota
	Fatal
	Error
	Warn
	Info
	Trace
	Debug
)

func (l Level) String() string {
	switch l {
	case Fatal:
		return "Fatal"
	case Error:
		return "Error"
	case Warn:
		return "Warn"
	case Info:
		return "Info"
	case Trace:
		return "Trace"
	case Debug:
		return "Debug"
	}
	return "Silent"
}

var curLevel int32 = int32(Info)

var out = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

// SetLevel changes the global logging threshold. Messages above the
// configured level are dropped without formatting their arguments.
func SetLevel(l Level) {
	atomic.StoreInt32(&curLevel, int32(l))
}

func GetLevel() Level {
	return Level(atomic.LoadInt32(&curLevel))
}

// IsEnabled reports whether a message at level l would currently be logged.
func IsEnabled(l Level) bool {
	return int32(l) <= atomic.LoadInt32(&curLevel)
}

func logf(l Level, format string, v ...interface{}) {
	if !IsEnabled(l) {
		return
	}
	out.Output(3, fmt.Sprintf("["+l.String()+"] "+format, v...))
}

// Fatalf logs at Fatal level unconditionally (Fatal is never disabled) and
// then terminates the process, matching the "restarting indexer" semantics
// of every Fatalf call site this facade is grounded on: a failure this deep
// (e.g. the metakv settings watch giving up after its retry budget) is not
// something the node can keep running past.
func Fatalf(format string, v ...interface{}) {
	out.Output(2, fmt.Sprintf("[Fatal] "+format, v...))
	os.Exit(1)
}
func Errorf(format string, v ...interface{}) { logf(Error, format, v...) }
func Warnf(format string, v ...interface{})  { logf(Warn, format, v...) }
func Infof(format string, v ...interface{})  { logf(Info, format, v...) }
func Tracef(format string, v ...interface{}) { logf(Trace, format, v...) }
func Debugf(format string, v ...interface{}) { logf(Debug, format, v...) }
