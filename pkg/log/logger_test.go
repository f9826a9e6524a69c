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

package log

import (
	"path/filepath"
	"testing"
)

func TestNewLogger_DefaultsToInfoJSON(t *testing.T) {
	logger, err := NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger(nil): %v", err)
	}
	if logger == nil || logger.Logger == nil {
		t.Fatal("expected a non-nil logger")
	}
}

func TestNewLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	logger, err := NewLogger(&Config{Level: "debug", Format: "text", File: path})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("hello")
}

func TestNewLogger_InvalidFilePathFails(t *testing.T) {
	_, err := NewLogger(&Config{File: filepath.Join(t.TempDir(), "missing-dir", "worker.log")})
	if err == nil {
		t.Fatal("expected an error opening a file in a nonexistent directory")
	}
}
