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

// Package config implements the Configuration Loader of §4.8: it reads the
// raw `environmentWhitelist` document (either YAML or JSON — the wire
// shapes are identical once decoded into maps) and normalizes it into an
// immutable policy.Model. YAML decoding follows the pack's own convention
// (smtg-ai-claude-squad's config and ollama packages both load their
// project configuration through gopkg.in/yaml.v3).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spinualexandru/dotnope/policy"
)

// OptionsKey is the reserved configuration key holding global options; it
// is never treated as a package name (§4.8).
const OptionsKey = "__options__"

// rawOptions mirrors policy.Options with YAML/JSON tags and pointer fields
// so that an absent key falls back to the spec's documented default rather
// than Go's zero value (which would be the opposite of "protect by
// default").
type rawOptions struct {
	FailClosed              *bool `yaml:"failClosed" json:"failClosed"`
	ProtectWrites           *bool `yaml:"protectWrites" json:"protectWrites"`
	ProtectDeletes          *bool `yaml:"protectDeletes" json:"protectDeletes"`
	ProtectEnumeration      *bool `yaml:"protectEnumeration" json:"protectEnumeration"`
	AllowEval               *bool `yaml:"allowEval" json:"allowEval"`
	TreatMainAsUnrestricted *bool `yaml:"treatMainAsUnrestricted" json:"treatMainAsUnrestricted"`
	AllowWorkerMediators    *bool `yaml:"allowWorkerMediators" json:"allowWorkerMediators"`
}

func (r rawOptions) normalize() policy.Options {
	o := policy.DefaultOptions()
	if r.FailClosed != nil {
		o.FailClosed = *r.FailClosed
	}
	if r.ProtectWrites != nil {
		o.ProtectWrites = *r.ProtectWrites
	}
	if r.ProtectDeletes != nil {
		o.ProtectDeletes = *r.ProtectDeletes
	}
	if r.ProtectEnumeration != nil {
		o.ProtectEnumeration = *r.ProtectEnumeration
	}
	if r.AllowEval != nil {
		o.AllowEval = *r.AllowEval
	}
	if r.TreatMainAsUnrestricted != nil {
		o.TreatMainAsUnrestricted = *r.TreatMainAsUnrestricted
	}
	if r.AllowWorkerMediators != nil {
		o.AllowWorkerMediators = *r.AllowWorkerMediators
	}
	return o
}

// rawPackageEntry accepts either configuration shape named in §4.8: a bare
// array of variable names, or a record with allowed/canWrite/canDelete.
// yaml.v3 (and encoding/json) can't union-type a field, so this is decoded
// manually from the generic document in Load.
type rawPackageEntry struct {
	Allowed   []string `yaml:"allowed" json:"allowed"`
	CanWrite  []string `yaml:"canWrite" json:"canWrite"`
	CanDelete []string `yaml:"canDelete" json:"canDelete"`
}

// Document is the decoded top-level `environmentWhitelist` mapping before
// normalization: arbitrary YAML/JSON scalars and sequences keyed by
// package name (or OptionsKey).
type Document map[string]interface{}

// Load reads the environmentWhitelist document at path (YAML by default;
// JSON is a subset of YAML so the same decoder handles both) and returns
// the normalized Policy Model.
func Load(path string) (policy.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return policy.Model{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse normalizes a raw environmentWhitelist document (as YAML/JSON bytes)
// into a Policy Model. An empty document combined with the default
// failClosed=true produces a maximally restrictive policy in which only
// main has access (§4.8).
func Parse(data []byte) (policy.Model, error) {
	var doc Document
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return policy.Model{}, fmt.Errorf("config: parsing document: %w", err)
		}
	}
	return normalize(doc)
}

func normalize(doc Document) (policy.Model, error) {
	model := policy.Model{
		Packages: make(map[string]policy.PackagePolicy, len(doc)),
		Options:  policy.DefaultOptions(),
	}

	if raw, ok := doc[OptionsKey]; ok {
		opts, err := decodeOptions(raw)
		if err != nil {
			return policy.Model{}, fmt.Errorf("config: %s: %w", OptionsKey, err)
		}
		model.Options = opts
	}

	for name, raw := range doc {
		if name == OptionsKey {
			continue
		}
		pkgPolicy, err := decodePackage(raw)
		if err != nil {
			return policy.Model{}, fmt.Errorf("config: package %q: %w", name, err)
		}
		model.Packages[name] = pkgPolicy
	}

	return model, nil
}

func decodeOptions(raw interface{}) (policy.Options, error) {
	b, err := yaml.Marshal(raw)
	if err != nil {
		return policy.Options{}, err
	}
	var ro rawOptions
	if err := yaml.Unmarshal(b, &ro); err != nil {
		return policy.Options{}, err
	}
	return ro.normalize(), nil
}

// decodePackage accepts either of the two shapes described in §4.8. A bare
// list decodes as a []interface{} of scalars (read-only access); a record
// decodes as a map with optional allowed/canWrite/canDelete keys. Unknown
// keys under a package entry are ignored, per §4.8.
func decodePackage(raw interface{}) (policy.PackagePolicy, error) {
	switch v := raw.(type) {
	case []interface{}:
		names, err := toStringSlice(v)
		if err != nil {
			return policy.PackagePolicy{}, err
		}
		return policy.PackagePolicy{Allowed: policy.NewVarSet(names)}, nil
	default:
		b, err := yaml.Marshal(raw)
		if err != nil {
			return policy.PackagePolicy{}, err
		}
		var entry rawPackageEntry
		if err := yaml.Unmarshal(b, &entry); err != nil {
			return policy.PackagePolicy{}, err
		}
		return policy.PackagePolicy{
			Allowed:   policy.NewVarSet(entry.Allowed),
			CanWrite:  policy.NewVarSet(entry.CanWrite),
			CanDelete: policy.NewVarSet(entry.CanDelete),
		}, nil
	}
}

func toStringSlice(items []interface{}) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", it)
		}
		out = append(out, s)
	}
	return out, nil
}

// Serialize re-encodes a Policy Model back into the YAML document shape,
// used by Handle.GetSerializableConfig (§5) so a worker execution
// context can reconstruct an equivalent Model via Parse.
func Serialize(m policy.Model) ([]byte, error) {
	doc := make(Document, len(m.Packages)+1)
	doc[OptionsKey] = map[string]bool{
		"failClosed":              m.Options.FailClosed,
		"protectWrites":           m.Options.ProtectWrites,
		"protectDeletes":          m.Options.ProtectDeletes,
		"protectEnumeration":      m.Options.ProtectEnumeration,
		"allowEval":               m.Options.AllowEval,
		"treatMainAsUnrestricted": m.Options.TreatMainAsUnrestricted,
		"allowWorkerMediators":    m.Options.AllowWorkerMediators,
	}
	for name, pp := range m.Packages {
		doc[name] = map[string][]string{
			"allowed":   pp.Allowed.Sorted(),
			"canWrite":  pp.CanWrite.Sorted(),
			"canDelete": pp.CanDelete.Sorted(),
		}
	}
	return yaml.Marshal(doc)
}

// DefaultConfigPath mirrors the pack's convention (smtg-ai-claude-squad's
// config.GetConfigDir) of keeping per-tool configuration under the user's
// home directory.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolving home directory: %w", err)
	}
	return filepath.Join(home, ".dotnope", "environmentWhitelist.yaml"), nil
}
