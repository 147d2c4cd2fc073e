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

// Package dotnope is the programmatic entry point (§6): EnableStrictEnv
// installs the Runtime Mediator over the process environment and returns
// its Control Handle, and the legacy DisableStrictEnv exists solely to
// raise ERR_DOTNOPE_DEPRECATED without touching any installation.
package dotnope

import (
	"github.com/spinualexandru/dotnope/config"
	"github.com/spinualexandru/dotnope/dnerr"
	"github.com/spinualexandru/dotnope/integrity"
	"github.com/spinualexandru/dotnope/mediator"
	"github.com/spinualexandru/dotnope/policy"
)

// Config mirrors the options object accepted by enableStrictEnv: a path to
// an on-disk environmentWhitelist document, plus the optional native
// caller-ID helper the Integrity Verifier (§4.6) should attest before the
// mediator trusts it. Both native fields are optional; when
// NativeManifestPath is empty the verifier is skipped entirely (there is
// nothing to attest against).
type Config struct {
	ConfigPath         string
	NativeManifestPath string
	NativeHelperPath   string
}

// EnableStrictEnv loads the Policy Model named by cfg.ConfigPath (or the
// default location), installs the sole Runtime Mediator for this process
// over the real OS environment, and returns its Control Handle. A second
// call while an installation is active fails with
// ERR_DOTNOPE_ALREADY_INSTALLED (§3).
//
// If cfg.NativeManifestPath is set, the native caller-ID helper is
// verified per §4.6 before returning; a non-Verified outcome never aborts
// installation, it only folds a security-posture downgrade into the
// handle's warning log (§7: "integrity and tampering issues ... downgrade
// the security posture but do not abort the process").
func EnableStrictEnv(cfg Config) (*mediator.Handle, error) {
	path := cfg.ConfigPath
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	model, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	h, err := mediator.Install(model, mediator.OSStore)
	if err != nil {
		return nil, err
	}

	if cfg.NativeManifestPath != "" {
		result := integrity.VerifyAdjacent(cfg.NativeManifestPath, cfg.NativeHelperPath)
		if result.Outcome != integrity.Verified {
			h.RecordIntegrityDowngrade(result.Reason)
		}
	}
	return h, nil
}

// EnableStrictEnvWithModel installs the sole Runtime Mediator using an
// already-constructed Policy Model, bypassing on-disk configuration
// loading entirely. Hosts that build policy.Model programmatically (the
// launcher, tests, worker re-installation per §5) use this instead of
// round-tripping through YAML.
func EnableStrictEnvWithModel(model policy.Model) (*mediator.Handle, error) {
	return mediator.Install(model, mediator.OSStore)
}

// DisableStrictEnv is a legacy entry point retained for API compatibility.
// It never touches any installation and always fails with
// ERR_DOTNOPE_DEPRECATED (§6).
func DisableStrictEnv() error {
	return dnerr.Deprecated()
}
