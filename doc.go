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

// Package durableflow is a library for durable workflow execution.
//
// Application code registers handler functions under a name, starts
// workflows by id through a Client, and runs one or more Worker
// processes that poll a shared Store and execute handlers through a
// Context exposing Step, Sleep and Start. Crashes and restarts are
// survived because every externally observable effect (a step's
// output, a sleep's wake time) is recorded in the Store before the
// workflow suspends, so a replayed execution reuses recorded results
// instead of re-running their producers.
package durableflow
