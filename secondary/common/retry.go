// Copyright (c) 2014 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

package common

import "time"

// RetryHelperFunc is invoked once per attempt. retry is 0 on the first
// attempt; err is the error from the previous attempt (nil on the first).
// Returning a nil error stops the retry loop.
type RetryHelperFunc func(retry int, err error) error

// RetryHelper retries fn with exponential backoff, matching the pattern
// used by the indexer's metakv and cbauth retry loops.
type RetryHelper struct {
	maxRetries int
	sleep      time.Duration
	factor     int
	fn         RetryHelperFunc
}

func NewRetryHelper(maxRetries int, sleep time.Duration, factor int, fn RetryHelperFunc) *RetryHelper {
	return &RetryHelper{
		maxRetries: maxRetries,
		sleep:      sleep,
		factor:     factor,
		fn:         fn,
	}
}

func (rh *RetryHelper) Run() error {
	var err error
	sleep := rh.sleep
	for retry := 0; ; retry++ {
		err = rh.fn(retry, err)
		if err == nil {
			return nil
		}
		if retry >= rh.maxRetries {
			return err
		}
		time.Sleep(sleep)
		if rh.factor > 0 {
			sleep = sleep * time.Duration(rh.factor)
		}
	}
}
