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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("durableflow cli 1.0.0")
	case "start":
		if len(args) < 3 {
			fmt.Fprintf(os.Stderr, "Usage: durableflow start <id>|- <handler> <input>\n")
			os.Exit(1)
		}
		id := args[0]
		if id == "-" {
			id = uuid.New().String()
		}
		runStart(id, args[1], args[2])
	case "wait":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: durableflow wait <id> [status=finished] [times=1] [intervalMs=250]\n")
			os.Exit(1)
		}
		runWait(args)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: durableflow <command> [args]

Commands:
  version                                  print the cli version
  start <id>|- <handler> <input>           start a new workflow ("-" generates a random id)
  wait <id> [status] [times] [intervalMs]  poll a workflow until it reaches status`)
}

func runStart(id, handler, input string) {
	out, err := startWorkflow(id, handler, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "durableflow: %v\n", err)
		os.Exit(1)
	}
	printJSON(out)
}

func runWait(args []string) {
	id := args[0]
	status := "finished"
	times := 1
	intervalMs := 250
	if len(args) > 1 {
		status = args[1]
	}
	if len(args) > 2 {
		if n, err := strconv.Atoi(args[2]); err == nil {
			times = n
		}
	}
	if len(args) > 3 {
		if n, err := strconv.Atoi(args[3]); err == nil {
			intervalMs = n
		}
	}
	out, err := waitWorkflow(id, status, times, intervalMs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "durableflow: %v\n", err)
		os.Exit(1)
	}
	printJSON(out)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
