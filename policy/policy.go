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

// Package policy holds the normalized, immutable representation of an
// environment-variable access policy: per-package allow/write/delete sets
// plus the process-wide options that govern how aggressively the mediator
// enforces them. It is a pure value type — nothing in this package touches
// the real environment or a stack trace. Callers (the identity and decision
// packages) consult it by name; the mediator owns the single live instance
// for a process.
package policy

import "sort"

// Wildcard is the reserved sentinel meaning "any variable" in any of a
// PackagePolicy's three sets.
const Wildcard = "*"

// Identity is a tagged value identifying the code responsible for an
// environment access. Exactly one of the three shapes below is active;
// Main and Unknown carry no payload, Package carries a module name.
type Identity struct {
	kind   identityKind
	pkg    string
	isEval bool
}

type identityKind int

const (
	kindMain identityKind = iota
	kindPackage
	kindUnknown
)

// MainIdentity is the host application's own top-level code.
func MainIdentity() Identity { return Identity{kind: kindMain} }

// PackageIdentity names a third-party module by its slash-joined identifier
// (a leading @scope segment is supported by convention, not validated here).
func PackageIdentity(name string) Identity { return Identity{kind: kindPackage, pkg: name} }

// UnknownIdentity means no attributable module could be determined.
func UnknownIdentity() Identity { return Identity{kind: kindUnknown} }

// WithEval returns a copy of id flagged as originating from a dynamically
// generated frame (the Go analogue of a V8 eval/Function frame: reflect
// invocation, a loaded plugin symbol, or a synthetic <autogenerated> file).
func (id Identity) WithEval() Identity {
	id.isEval = true
	return id
}

// IsMain reports whether id is the host application itself.
func (id Identity) IsMain() bool { return id.kind == kindMain }

// IsUnknown reports whether identity resolution failed to attribute a
// caller.
func (id Identity) IsUnknown() bool { return id.kind == kindUnknown }

// IsEval reports whether the frame that produced id was flagged as
// dynamically generated code.
func (id Identity) IsEval() bool { return id.isEval }

// Package returns the package name and true when id is a package identity.
func (id Identity) Package() (string, bool) {
	if id.kind != kindPackage {
		return "", false
	}
	return id.pkg, true
}

func (id Identity) String() string {
	switch id.kind {
	case kindMain:
		return "main"
	case kindPackage:
		return "package(" + id.pkg + ")"
	default:
		return "unknown"
	}
}

// Operation is one of the four mediated access kinds. Membership and
// descriptor-query checks at the call site map onto OpRead before reaching
// the decision engine.
type Operation int

const (
	OpRead Operation = iota
	OpWrite
	OpDelete
	OpEnumerate
)

func (op Operation) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpDelete:
		return "delete"
	case OpEnumerate:
		return "enumerate"
	default:
		return "unknown"
	}
}

// VarSet is a set of variable names, where Wildcard means "all variables".
type VarSet map[string]struct{}

// NewVarSet builds a VarSet from a slice, deduplicating as it goes.
func NewVarSet(names []string) VarSet {
	s := make(VarSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is explicitly present or the set carries the
// wildcard.
func (s VarSet) Has(name string) bool {
	if len(s) == 0 {
		return false
	}
	if _, ok := s[Wildcard]; ok {
		return true
	}
	_, ok := s[name]
	return ok
}

// IsWildcard reports whether the set grants every variable.
func (s VarSet) IsWildcard() bool {
	_, ok := s[Wildcard]
	return ok
}

// Sorted returns the set's members (including a literal "*" if present) in
// ascending order, for deterministic serialization.
func (s VarSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PackagePolicy is the per-package record of §3: allowed grants read only,
// canWrite and canDelete also grant read. The three sets are permissive
// unions, never subtracted from one another.
type PackagePolicy struct {
	Allowed   VarSet
	CanWrite  VarSet
	CanDelete VarSet
}

// MayRead reports whether name is readable under p: present in Allowed, or
// implied by CanWrite/CanDelete.
func (p PackagePolicy) MayRead(name string) bool {
	return p.Allowed.Has(name) || p.CanWrite.Has(name) || p.CanDelete.Has(name)
}

// MayWrite reports whether name is writable under p.
func (p PackagePolicy) MayWrite(name string) bool { return p.CanWrite.Has(name) }

// MayDelete reports whether name is deletable under p.
func (p PackagePolicy) MayDelete(name string) bool { return p.CanDelete.Has(name) }

// VisibleKeys filters allKeys down to the subset p grants at least read
// access to. Order of allKeys is preserved.
func (p PackagePolicy) VisibleKeys(allKeys []string) []string {
	if p.Allowed.IsWildcard() || p.CanWrite.IsWildcard() || p.CanDelete.IsWildcard() {
		out := make([]string, len(allKeys))
		copy(out, allKeys)
		return out
	}
	out := make([]string, 0, len(allKeys))
	for _, k := range allKeys {
		if p.MayRead(k) {
			out = append(out, k)
		}
	}
	return out
}

// Options are the global, process-wide enforcement switches of §3. The zero
// value is not a valid Options; use DefaultOptions.
type Options struct {
	FailClosed              bool
	ProtectWrites           bool
	ProtectDeletes          bool
	ProtectEnumeration      bool
	AllowEval               bool
	TreatMainAsUnrestricted bool
	// AllowWorkerMediators governs whether a secondary execution context
	// (§5) may install its own mediator from a serialized configuration.
	AllowWorkerMediators bool
}

// DefaultOptions returns the spec's documented defaults.
func DefaultOptions() Options {
	return Options{
		FailClosed:              true,
		ProtectWrites:           true,
		ProtectDeletes:          true,
		ProtectEnumeration:      true,
		AllowEval:               false,
		TreatMainAsUnrestricted: true,
		AllowWorkerMediators:    false,
	}
}

// Model is the immutable, process-wide Policy Model of §3. Construct one via
// config.Load and treat it as read-only; reconfiguration replaces the whole
// value rather than mutating it in place.
type Model struct {
	Packages map[string]PackagePolicy
	Options  Options
}

// PackagePolicyFor returns the policy for name, or an empty PackagePolicy
// (no grants) when name has no entry — per §4.1, a missing package yields
// an empty policy, not an error.
func (m Model) PackagePolicyFor(name string) PackagePolicy {
	if m.Packages == nil {
		return PackagePolicy{}
	}
	return m.Packages[name]
}

// MayRead, MayWrite, MayDelete and VisibleKeys are convenience forwarders to
// PackagePolicyFor(name), matching the query surface named in §4.1.
func (m Model) MayRead(name, variable string) bool {
	return m.PackagePolicyFor(name).MayRead(variable)
}

func (m Model) MayWrite(name, variable string) bool {
	return m.PackagePolicyFor(name).MayWrite(variable)
}

func (m Model) MayDelete(name, variable string) bool {
	return m.PackagePolicyFor(name).MayDelete(variable)
}

func (m Model) VisibleKeys(name string, allKeys []string) []string {
	return m.PackagePolicyFor(name).VisibleKeys(allKeys)
}
