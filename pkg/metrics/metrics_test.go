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

package metrics

import (
	"bytes"
	"testing"
)

func TestWriteExposition_IncludesRegisteredCollectors(t *testing.T) {
	ClaimTotal.WithLabelValues("billing").Inc()

	var buf bytes.Buffer
	if err := WriteExposition(&buf); err != nil {
		t.Fatalf("WriteExposition: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("durableflow_claim_total")) {
		t.Fatalf("expected exposition to include durableflow_claim_total, got:\n%s", buf.String())
	}
}
