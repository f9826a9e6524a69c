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
	"errors"
	"fmt"
)

// Sentinel errors observable at the core boundary (spec §7).
var (
	// ErrWorkflowNotFound is returned by run when claim handed back an
	// id that is no longer in the store. Indicates store corruption.
	ErrWorkflowNotFound = errors.New("durableflow: workflow not found")
	// ErrHandlerNotFound is returned by run when the workflow's handler
	// name is not registered. Indicates misconfiguration.
	ErrHandlerNotFound = errors.New("durableflow: handler not found")
)

// StoreError wraps any error returned by a Store call. It propagates
// out of the primitive that issued the call; the caller's lease
// eventually expires and another worker retries.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("durableflow: store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
