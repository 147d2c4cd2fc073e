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

// Package mediator implements the Runtime Mediator (§4.4) and the Control
// Handle (§4.7) as a single Installation value, per the design note in §9:
// "The process-wide environment object and the mediator installation are
// both inherently global. They are modeled as a single explicit
// Installation value owned by the Control Handle."
//
// Every mediated operation (Getenv/LookupEnv/Setenv/Unsetenv/Environ/Has)
// is synchronous and non-suspending (§5): identity resolution and the
// decision happen back-to-back with no intervening suspension point.
package mediator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spinualexandru/dotnope/decision"
	"github.com/spinualexandru/dotnope/dnerr"
	"github.com/spinualexandru/dotnope/dnlog"
	"github.com/spinualexandru/dotnope/identity"
	"github.com/spinualexandru/dotnope/policy"
)

// global holds the process's sole active installation (§3 invariant: "At
// most one Runtime Mediator is installed per process"). It is nil when no
// mediator is installed.
var global atomic.Pointer[Mediator]

// Mediator is the live installation: a policy, a caller identifier, the
// wrapped store, and the bookkeeping a Control Handle exposes.
type Mediator struct {
	store    Store
	resolver *identity.Resolver

	policy atomic.Pointer[policy.Model]

	// enforcementDisabled implements §4.4 step 1 ("if enforcement is
	// currently disabled on this installation, forward directly"), a
	// runtime toggle distinct from full teardown.
	enforcementDisabled atomic.Bool
	tornDown            atomic.Bool

	stats stats

	warnMu   sync.Mutex
	warnings []SecurityWarning

	installGoroutine string
}

// SecurityWarning is one entry of emitSecurityWarnings(): an observational
// record of a security-posture downgrade (missing/failed integrity check,
// detected stack-primitive tampering). It never causes a raise.
type SecurityWarning struct {
	At      time.Time
	Message string
}

// Install creates the sole Runtime Mediator for this process, wrapping
// store under model, and returns its Control Handle. A second Install
// while one is active fails with ERR_DOTNOPE_ALREADY_INSTALLED (§3
// invariant, §8 "Install -> teardown -> install succeeds again").
func Install(model policy.Model, store Store) (*Handle, error) {
	m := &Mediator{
		store:            store,
		resolver:         identity.NewResolver(),
		installGoroutine: currentGoroutineID(),
	}
	m.policy.Store(&model)

	if !global.CompareAndSwap(nil, m) {
		return nil, dnerr.AlreadyInstalled()
	}

	h := &Handle{
		token:       uuid.NewString(),
		policyID:    uuid.NewString(),
		installedAt: time.Now(),
		mediator:    m,
	}
	dnlog.InfoLog.Printf("dotnope: mediator installed (policyId=%s)", h.policyID)
	return h, nil
}

// currentPolicy returns the live Policy Model snapshot.
func (m *Mediator) currentPolicy() policy.Model {
	p := m.policy.Load()
	if p == nil {
		return policy.Model{Options: policy.DefaultOptions()}
	}
	return *p
}

// Reconfigure replaces the Policy Model wholesale (§3: "Immutable after
// construction; replaced wholesale on reconfiguration").
func (m *Mediator) Reconfigure(model policy.Model) {
	m.policy.Store(&model)
}

func (m *Mediator) bypassed() bool {
	return m.tornDown.Load() || m.enforcementDisabled.Load()
}

// SetEnforcementEnabled toggles step 1 of §4.4 without tearing down the
// installation.
func (m *Mediator) SetEnforcementEnabled(enabled bool) {
	m.enforcementDisabled.Store(!enabled)
}

// LookupEnv mediates a read/membership/descriptor-query access (§3: these
// all map to read).
func (m *Mediator) LookupEnv(name string) (string, bool, error) {
	if m.bypassed() {
		v, ok := m.store.Lookup(name)
		return v, ok, nil
	}
	id := m.resolver.Resolve(0)
	pol := m.currentPolicy()
	v := decision.Decide(id, policy.OpRead, name, pol, nil)
	if !v.Allow {
		m.stats.recordDenied(policy.OpRead, id)
		return "", false, v.Err
	}
	m.stats.recordAllowed(policy.OpRead, id)
	value, ok := m.store.Lookup(name)
	return value, ok, nil
}

// Getenv mirrors os.Getenv: "" both for "unset" and (distinguishably, via
// the returned error) "denied".
func (m *Mediator) Getenv(name string) (string, error) {
	v, _, err := m.LookupEnv(name)
	return v, err
}

// Has mediates a membership test (§3: maps to read).
func (m *Mediator) Has(name string) (bool, error) {
	_, ok, err := m.LookupEnv(name)
	return ok, err
}

// Setenv mediates a write. A denial raises before the underlying store is
// touched (§7: "Write/delete operations are not partially applied").
func (m *Mediator) Setenv(name, value string) error {
	if m.bypassed() {
		return m.store.Set(name, value)
	}
	id := m.resolver.Resolve(0)
	pol := m.currentPolicy()
	v := decision.Decide(id, policy.OpWrite, name, pol, nil)
	if !v.Allow {
		m.stats.recordDenied(policy.OpWrite, id)
		return v.Err
	}
	m.stats.recordAllowed(policy.OpWrite, id)
	return m.store.Set(name, value)
}

// Unsetenv mediates a delete.
func (m *Mediator) Unsetenv(name string) error {
	if m.bypassed() {
		return m.store.Unset(name)
	}
	id := m.resolver.Resolve(0)
	pol := m.currentPolicy()
	v := decision.Decide(id, policy.OpDelete, name, pol, nil)
	if !v.Allow {
		m.stats.recordDenied(policy.OpDelete, id)
		return v.Err
	}
	m.stats.recordAllowed(policy.OpDelete, id)
	return m.store.Unset(name)
}

// Environ mediates key enumeration. Denial is silent key omission (§4.3),
// except when the caller identity cannot be resolved under failClosed,
// which raises ERR_DOTNOPE_UNKNOWN_CALLER, or when the caller is flagged
// as eval while allowEval is false, which raises ERR_DOTNOPE_EVAL_CONTEXT,
// per rule ordering in §4.3.
func (m *Mediator) Environ() ([]string, error) {
	if m.bypassed() {
		return m.store.Keys(), nil
	}
	id := m.resolver.Resolve(0)
	pol := m.currentPolicy()
	allKeys := m.store.Keys()
	v := decision.Decide(id, policy.OpEnumerate, "", pol, allKeys)
	m.stats.enumerations.Add(1)
	m.stats.recordEnumerationOutcome(id, !v.Allow)
	if !v.Allow {
		return nil, v.Err
	}
	return v.Keys, nil
}

// AllowNewMediator reports whether the live policy permits a secondary
// execution context to install its own mediator (§5).
func (m *Mediator) AllowNewMediator() bool {
	return m.currentPolicy().Options.AllowWorkerMediators
}

func (m *Mediator) recordWarning(message string) {
	m.warnMu.Lock()
	defer m.warnMu.Unlock()
	m.warnings = append(m.warnings, SecurityWarning{At: time.Now(), Message: message})
	dnlog.WarnLog.Printf("dotnope: %s", message)
}

func (m *Mediator) securityWarnings() []SecurityWarning {
	m.warnMu.Lock()
	defer m.warnMu.Unlock()
	out := make([]SecurityWarning, len(m.warnings))
	copy(out, m.warnings)
	return out
}

// RecordIntegrityDowngrade lets an integrity.Result observed by the caller
// (typically the launcher/handle wiring, which owns the filesystem lookup)
// be folded into this mediator's security-warning log without this package
// importing the integrity package directly.
func (m *Mediator) RecordIntegrityDowngrade(reason string) {
	m.recordWarning(fmt.Sprintf("native caller-ID helper not trusted: %s", reason))
}

// RecordTamperingDetected folds a Caller Identifier tampering flag (§4.2)
// into the security-warning log.
func (m *Mediator) RecordTamperingDetected() {
	m.recordWarning("stack-capture primitives were already modified before initialization")
}

func teardown(m *Mediator) {
	m.tornDown.Store(true)
	global.CompareAndSwap(m, nil)
	dnlog.InfoLog.Printf("dotnope: mediator torn down")
}
