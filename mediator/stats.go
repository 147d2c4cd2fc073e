// Copyright 2026 The Dotnope Authors
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

package mediator

import (
	"sync/atomic"

	"github.com/spinualexandru/dotnope/policy"
)

// stats holds the monotonic access counters backing
// Handle.GetAccessStats(). Each field is independently atomic so
// concurrent mediated operations never contend on a lock for bookkeeping
// (§5: "Concurrent mediated operations against an installed mediator are
// safe"). The shape and "declared allowlist + denial counters" bookkeeping
// pattern is grounded on
// smtg-ai-claude-squad/integrations/kgc/agent-5/workspace_isolator.go's
// WorkspaceMetrics (ReadCount/ReadDenied/WriteCount/WriteDenied), extended
// here with delete and unknown-caller/eval-context counters the
// environment-variable domain needs that the filesystem domain didn't.
type stats struct {
	allowedReads         atomic.Int64
	deniedReads          atomic.Int64
	allowedWrites        atomic.Int64
	deniedWrites         atomic.Int64
	allowedDeletes       atomic.Int64
	deniedDeletes        atomic.Int64
	enumerations         atomic.Int64
	unknownCallerDenials atomic.Int64
	evalContextDenials   atomic.Int64
}

// AccessStats is an immutable snapshot of stats, returned by
// Handle.GetAccessStats().
type AccessStats struct {
	AllowedReads         int64
	DeniedReads          int64
	AllowedWrites        int64
	DeniedWrites         int64
	AllowedDeletes       int64
	DeniedDeletes        int64
	Enumerations         int64
	UnknownCallerDenials int64
	EvalContextDenials   int64
}

func (s *stats) recordAllowed(op policy.Operation, _ policy.Identity) {
	switch op {
	case policy.OpRead:
		s.allowedReads.Add(1)
	case policy.OpWrite:
		s.allowedWrites.Add(1)
	case policy.OpDelete:
		s.allowedDeletes.Add(1)
	}
}

func (s *stats) recordDenied(op policy.Operation, id policy.Identity) {
	switch op {
	case policy.OpRead:
		s.deniedReads.Add(1)
	case policy.OpWrite:
		s.deniedWrites.Add(1)
	case policy.OpDelete:
		s.deniedDeletes.Add(1)
	}
	if id.IsUnknown() {
		s.unknownCallerDenials.Add(1)
	}
	if id.IsEval() {
		s.evalContextDenials.Add(1)
	}
}

// recordEnumerationOutcome folds an enumeration's unknown-caller/eval-
// context denial into the shared counters; enumerations itself is
// incremented unconditionally by the caller since every enumeration
// attempt counts, allowed or denied.
func (s *stats) recordEnumerationOutcome(id policy.Identity, denied bool) {
	if !denied {
		return
	}
	if id.IsUnknown() {
		s.unknownCallerDenials.Add(1)
	}
	if id.IsEval() {
		s.evalContextDenials.Add(1)
	}
}

func (s *stats) snapshot() AccessStats {
	return AccessStats{
		AllowedReads:         s.allowedReads.Load(),
		DeniedReads:          s.deniedReads.Load(),
		AllowedWrites:        s.allowedWrites.Load(),
		DeniedWrites:         s.deniedWrites.Load(),
		AllowedDeletes:       s.allowedDeletes.Load(),
		DeniedDeletes:        s.deniedDeletes.Load(),
		Enumerations:         s.enumerations.Load(),
		UnknownCallerDenials: s.unknownCallerDenials.Load(),
		EvalContextDenials:   s.evalContextDenials.Load(),
	}
}
