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
	"time"

	"github.com/spinualexandru/dotnope/config"
	"github.com/spinualexandru/dotnope/dnerr"
	"github.com/spinualexandru/dotnope/nativepolicy"
	"github.com/spinualexandru/dotnope/policy"
)

// Handle is the Control Handle of §4.7/§3: the only object that may tear
// down an installation, and the sole read-only window onto its status and
// statistics. Exactly one is issued per Install call.
type Handle struct {
	token       string
	policyID    string
	installedAt time.Time
	mediator    *Mediator
}

// GetToken returns the 128-bit random token minted at installation,
// required to call Disable.
func (h *Handle) GetToken() string { return h.token }

// Disable tears down the installation if token matches the one minted at
// Install. Any other token (empty, wrong, or otherwise mismatched) is
// rejected with ERR_DOTNOPE_INVALID_TOKEN and leaves the mediator installed
// and enforcing (§8: "the mediator remains installed; enforcement
// continues").
func (h *Handle) Disable(token string) error {
	if token == "" || token != h.token {
		return dnerr.InvalidToken()
	}
	teardown(h.mediator)
	return nil
}

// IsEnabled reports whether this installation is still active (not torn
// down and not locally disabled via §4.4 step 1).
func (h *Handle) IsEnabled() bool {
	return !h.mediator.bypassed()
}

// GetAccessStats returns a snapshot of the installation's access counters.
func (h *Handle) GetAccessStats() AccessStats {
	return h.mediator.stats.snapshot()
}

// GetSerializableConfig returns the live Policy Model encoded the way
// config.Parse expects, so a worker execution context (§5) can rebuild an
// equivalent Model via config.Parse(payload).
func (h *Handle) GetSerializableConfig() ([]byte, error) {
	return config.Serialize(h.mediator.currentPolicy())
}

// IsPreloadActive reports whether the native plane's LD_PRELOAD mechanism
// is meaningfully available on this platform. The native interposer is
// Linux-only (§2 Non-goals: "the native plane is advisory" elsewhere), so
// this always reports false on other platforms regardless of environment
// variables; see isPreloadActive's runtime.GOOS check in runtime_support.go.
func (h *Handle) IsPreloadActive() bool { return isPreloadActive() }

// IsRunningInMainThread reports whether the calling goroutine is the one
// that performed Install. This is a best-effort approximation (Go
// goroutines have no stable, host-exposed identity); it is never used to
// change enforcement, only to answer the status query named in §6.
func (h *Handle) IsRunningInMainThread() bool {
	return currentGoroutineID() == h.mediator.installGoroutine
}

// IsWorkerAllowed reports whether the live policy permits a secondary
// execution context to install its own mediator (§5).
func (h *Handle) IsWorkerAllowed() bool { return h.mediator.AllowNewMediator() }

// EmitSecurityWarnings returns the accumulated list of security-posture
// downgrade events (missing/failed integrity check, detected tampering).
// It is purely observational and never raises.
func (h *Handle) EmitSecurityWarnings() []SecurityWarning {
	return h.mediator.securityWarnings()
}

// RecordIntegrityDowngrade forwards to the underlying Mediator; exposed on
// the Handle so callers that only hold a Handle (not the Mediator pointer)
// can still feed integrity.Result observations into the warning log.
func (h *Handle) RecordIntegrityDowngrade(reason string) {
	h.mediator.RecordIntegrityDowngrade(reason)
}

// RecordTamperingDetected forwards to the underlying Mediator.
func (h *Handle) RecordTamperingDetected() {
	h.mediator.RecordTamperingDetected()
}

// Reconfigure replaces the live Policy Model wholesale.
func (h *Handle) Reconfigure(model policy.Model) { h.mediator.Reconfigure(model) }

// SetEnforcementEnabled toggles §4.4 step 1 without tearing down.
func (h *Handle) SetEnforcementEnabled(enabled bool) { h.mediator.SetEnforcementEnabled(enabled) }

// LookupEnv, Getenv, Has, Setenv, Unsetenv and Environ forward to the
// underlying Mediator; they are the vocabulary every mediated caller must
// route through instead of the os package directly.
func (h *Handle) LookupEnv(name string) (string, bool, error) { return h.mediator.LookupEnv(name) }
func (h *Handle) Getenv(name string) (string, error)          { return h.mediator.Getenv(name) }
func (h *Handle) Has(name string) (bool, error)                { return h.mediator.Has(name) }
func (h *Handle) Setenv(name, value string) error              { return h.mediator.Setenv(name, value) }
func (h *Handle) Unsetenv(name string) error                   { return h.mediator.Unsetenv(name) }
func (h *Handle) Environ() ([]string, error)                   { return h.mediator.Environ() }

// NativePolicyString computes the DOTNOPE_POLICY value the launcher should
// export for a child process given this installation's live policy.
func (h *Handle) NativePolicyString() string {
	return nativepolicy.Generate(h.mediator.currentPolicy())
}
