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

// Package decision implements the pure decision function described in
// §4.3 of the specification: decide(identity, operation, variable, policy)
// -> allow or a structured deny reason. Nothing here touches the real
// environment, a stack trace, or any mutable state; the same four
// arguments always produce the same verdict (§8, determinism).
package decision

import (
	"github.com/spinualexandru/dotnope/dnerr"
	"github.com/spinualexandru/dotnope/policy"
)

// Verdict is the outcome of Decide. For OpEnumerate by a resolved caller,
// Verdict is Allow=true and Keys carries the filtered key set — denial for
// enumeration is expressed as key omission, not as an error (§4.3). An
// unknown caller under failClosed, or an eval-flagged caller while
// allowEval is false, is still denied with an error by rules 3 and 4.
type Verdict struct {
	Allow bool
	Keys  []string // only populated for OpEnumerate
	Err   error    // nil when Allow is true
}

// Decide evaluates a single access against pol and returns a Verdict. For
// OpEnumerate, allKeys must be the real key set and the result's Keys field
// holds the filtered subset; for all other operations allKeys is ignored.
func Decide(id policy.Identity, op policy.Operation, variable string, pol policy.Model, allKeys []string) Verdict {
	// Rule 1: main always passes when treated as unrestricted.
	if id.IsMain() && pol.Options.TreatMainAsUnrestricted {
		return allow(op, variable, pol, allKeys)
	}

	// Rule 2: an unprotected operation class passes regardless of caller.
	if !protected(op, pol.Options) {
		return allow(op, variable, pol, allKeys)
	}

	// Rule 3: an unresolved caller is denied unless failClosed is off.
	if id.IsUnknown() {
		if pol.Options.FailClosed {
			return deny(dnerr.UnknownCaller())
		}
		return allow(op, variable, pol, allKeys)
	}

	// Rule 4: a dynamically generated frame is denied unless eval is
	// explicitly permitted.
	if id.IsEval() && !pol.Options.AllowEval {
		pkgName, _ := id.Package()
		return deny(dnerr.EvalContext(pkgName))
	}

	// Rule 5: named package, evaluated against its own policy entry.
	pkgName, isPackage := id.Package()
	if !isPackage {
		// main reached here only because TreatMainAsUnrestricted was
		// false; fall through to policy lookup under the empty package
		// name, which yields an empty PackagePolicy (deny-by-default).
		pkgName = ""
	}

	switch op {
	case policy.OpRead:
		if pol.MayRead(pkgName, variable) {
			return Verdict{Allow: true}
		}
		return deny(dnerr.Unauthorized(pkgName, variable, dnerr.OpRead))
	case policy.OpWrite:
		if pol.MayWrite(pkgName, variable) {
			return Verdict{Allow: true}
		}
		return deny(dnerr.Unauthorized(pkgName, variable, dnerr.OpWrite))
	case policy.OpDelete:
		if pol.MayDelete(pkgName, variable) {
			return Verdict{Allow: true}
		}
		return deny(dnerr.Unauthorized(pkgName, variable, dnerr.OpDelete))
	case policy.OpEnumerate:
		// Enumeration always "succeeds"; denial is silent key omission.
		return Verdict{Allow: true, Keys: pol.VisibleKeys(pkgName, allKeys)}
	default:
		return deny(dnerr.Unauthorized(pkgName, variable, dnerr.Operation(op.String())))
	}
}

func protected(op policy.Operation, o policy.Options) bool {
	switch op {
	case policy.OpWrite:
		return o.ProtectWrites
	case policy.OpDelete:
		return o.ProtectDeletes
	case policy.OpEnumerate:
		return o.ProtectEnumeration
	default:
		return true // reads are always mediated
	}
}

func allow(op policy.Operation, variable string, pol policy.Model, allKeys []string) Verdict {
	if op == policy.OpEnumerate {
		return Verdict{Allow: true, Keys: append([]string(nil), allKeys...)}
	}
	return Verdict{Allow: true}
}

func deny(err error) Verdict { return Verdict{Allow: false, Err: err} }
