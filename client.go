// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package durableflow

import (
	"context"
	"time"
)

// Client is the external caller's surface onto the store: Start to
// enqueue a workflow, Wait to poll for a terminal status. It holds no
// state beyond the store and clock, and can be constructed wherever a
// Store is reachable, independent of any Worker.
type Client struct {
	store Store
	clock Clock
}

// NewClient constructs a Client over store. A nil clock defaults to
// RealClock().
func NewClient(store Store, clock Clock) *Client {
	if clock == nil {
		clock = RealClock()
	}
	return &Client{store: store, clock: clock}
}

// Start inserts a new, independent workflow. It returns true when
// freshly created and false when id already existed.
func (c *Client) Start(ctx context.Context, id, handler string, input []byte) (bool, error) {
	ok, err := c.store.Insert(ctx, id, handler, DefaultQueue, input)
	if err != nil {
		return false, wrapStore("Insert", err)
	}
	return ok, nil
}

// Wait polls FindStatus up to times times, intervalMs apart, returning
// as soon as the workflow's status is a member of until. It returns
// (status, true, nil) on a match, or (status, false, nil) once the
// poll budget is exhausted without matching — status in the latter
// case is whatever FindStatus last returned, possibly the zero value
// if the workflow was never found or times is 0.
func (c *Client) Wait(ctx context.Context, id string, until map[Status]struct{}, times int, intervalMs time.Duration) (Status, bool, error) {
	var lastStatus Status
	for attempt := 0; attempt < times; attempt++ {
		status, ok, err := c.store.FindStatus(ctx, id)
		if err != nil {
			return "", false, wrapStore("FindStatus", err)
		}
		if ok {
			lastStatus = status
			if _, matched := until[status]; matched {
				return status, true, nil
			}
		}
		if attempt < times-1 {
			if err := c.clock.Delay(ctx, intervalMs); err != nil {
				return lastStatus, false, err
			}
		}
	}
	return lastStatus, false, nil
}
