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

// Package nativepolicy implements the coarse, per-variable-only policy
// serialization the native plane consumes (§4.5, §6, §8 scenario 6). It is
// shared between the launcher CLI, which computes the DOTNOPE_POLICY
// environment variable before exec'ing a child, and the native interposer,
// which parses it back. Both sides are pure functions over policy.Model /
// strings, with no I/O, so either can be unit tested without a live
// process.
package nativepolicy

import (
	"sort"
	"strings"

	"github.com/spinualexandru/dotnope/policy"
)

// EnvVar is the name of the process environment variable carrying the
// serialized allow-set.
const EnvVar = "DOTNOPE_POLICY"

// LogEnvVar is the name of the process environment variable carrying the
// optional decision-log path for the native interposer.
const LogEnvVar = "DOTNOPE_LOG"

// AllowAll is the serialized form meaning "every variable is readable at
// the native level".
const AllowAll = "*"

// Generate computes the native plane's coarse allow-set from a full Policy
// Model: the union, across every package, of Allowed ∪ CanWrite ∪
// CanDelete. If any package carries a wildcard in any of its three sets,
// the result is AllowAll. The output is always sorted, so permuting the
// input map's iteration order never changes the result (§8, "generatePolicy
// is order-independent").
func Generate(m policy.Model) string {
	names := make(map[string]struct{})
	for _, pkg := range m.Packages {
		if pkg.Allowed.IsWildcard() || pkg.CanWrite.IsWildcard() || pkg.CanDelete.IsWildcard() {
			return AllowAll
		}
		for n := range pkg.Allowed {
			names[n] = struct{}{}
		}
		for n := range pkg.CanWrite {
			names[n] = struct{}{}
		}
		for n := range pkg.CanDelete {
			names[n] = struct{}{}
		}
	}
	if len(names) == 0 {
		return ""
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// AllowSet is a parsed native-plane policy: a set of variable names, or the
// special states "allow everything" / "allow nothing".
type AllowSet struct {
	allowAll bool
	names    map[string]struct{}
}

// Parse decodes the DOTNOPE_POLICY wire format described in §4.5 step 1:
// "*" (allow-all), "" (allow-none), or a comma-separated list.
func Parse(raw string) AllowSet {
	if raw == AllowAll {
		return AllowSet{allowAll: true}
	}
	if raw == "" {
		return AllowSet{names: map[string]struct{}{}}
	}
	parts := strings.Split(raw, ",")
	names := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		if p != "" {
			names[p] = struct{}{}
		}
	}
	return AllowSet{names: names}
}

// Allows reports whether name is readable under the native-plane policy.
func (a AllowSet) Allows(name string) bool {
	if a.allowAll {
		return true
	}
	_, ok := a.names[name]
	return ok
}
