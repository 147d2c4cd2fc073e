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

// Package identity implements the Caller Identifier of §4.2: given a stack
// snapshot taken at an interception point, it resolves the responsible
// caller to a policy.Identity.
//
// The host runtime this specification was written against runs on a VM
// (V8) that can offer a trusted, tamper-resistant stack walk in addition to
// the ordinary user-space one. The Go runtime has no user-space hook that
// can forge or suppress a frame the way redefining Error.prepareStackTrace
// can, so there is only one backend here — but it is built to the same
// resolution algorithm (§4.2 steps 1-5) and reports the same tamper-related
// status fields the spec asks for, so a host embedding a scripting VM of
// its own can slot in a second, VM-trusted backend without changing the
// Resolver's public shape.
package identity

import (
	"runtime"
	"strings"
	"sync"

	"github.com/spinualexandru/dotnope/policy"
)

// Frame is one entry of a resolved call stack, mirroring the fields §4.2
// asks the stack walker to report.
type Frame struct {
	File         string
	Function     string
	IsEval       bool
	IsConstructor bool
}

// Resolver walks runtime.Callers stacks and maps them to policy.Identity
// values, caching file-path -> package-name lookups (§4.2, "Cache").
type Resolver struct {
	// SelfPaths holds file-path fragments identifying the mediator's own
	// implementation; frames whose file path contains any of these are
	// skipped while walking outward from the interception site (§4.2 step 1).
	SelfPaths []string

	// InternalPrefixes holds path prefixes considered runtime-internal
	// (the Go analogue of Node's "node:" / "internal/" convention),
	// skipped the same way (§4.2 step 2).
	InternalPrefixes []string

	cache sync.Map // file path (string) -> cacheEntry

	mu                sync.Mutex
	tamperingDetected bool
	usedFallback      bool
}

type cacheEntry struct {
	pkg    string
	isMain bool
}

// DefaultSelfPaths are directory fragments of this module's own source
// files, so the resolver never attributes an access to its own mediation
// code.
var DefaultSelfPaths = []string{
	"/dotnope/mediator/",
	"/dotnope/identity/",
	"/dotnope/decision/",
	"/dotnope/policy/",
}

// DefaultInternalPrefixes mirror Node's "node:" / "internal/" convention:
// Go's own runtime and standard library frames, which are never a calling
// package.
var DefaultInternalPrefixes = []string{
	"runtime.", "runtime/", "syscall.", "internal/",
}

// NewResolver builds a Resolver seeded with the default self/internal
// path lists. Callers embedding dotnope in a larger binary can append to
// SelfPaths to also skip their own wrapper layer.
func NewResolver() *Resolver {
	return &Resolver{
		SelfPaths:        append([]string(nil), DefaultSelfPaths...),
		InternalPrefixes: append([]string(nil), DefaultInternalPrefixes...),
	}
}

// maxFrames bounds the stack walk; a process with a deeper legitimate call
// chain to an env access would be unusual, and this keeps a pathological
// recursive caller from making resolution unbounded.
const maxFrames = 64

// Resolve walks the stack starting skip frames above its own caller and
// returns the attributed Identity. skip=0 means "start at Resolve's
// immediate caller".
func (r *Resolver) Resolve(skip int) policy.Identity {
	r.markFallbackUsed()
	pcs := make([]uintptr, maxFrames)
	// +2: skip runtime.Callers itself and this Resolve frame.
	n := runtime.Callers(2+skip, pcs)
	if n == 0 {
		return policy.UnknownIdentity()
	}
	frames := runtime.CallersFrames(pcs[:n])

	for {
		f, more := frames.Next()
		if r.isSelf(f.File) || r.isInternal(f.Function) {
			if !more {
				break
			}
			continue
		}

		id := r.resolveFrame(f)
		if isEvalFrame(f) {
			id = id.WithEval()
		}
		return id
	}

	return policy.UnknownIdentity()
}

func (r *Resolver) resolveFrame(f runtime.Frame) policy.Identity {
	if entry, ok := r.lookup(f.File); ok {
		if entry.isMain {
			return policy.MainIdentity()
		}
		return policy.PackageIdentity(entry.pkg)
	}

	pkg, isMain := packageFromPath(f.File, f.Function)
	r.store(f.File, cacheEntry{pkg: pkg, isMain: isMain})
	if isMain {
		return policy.MainIdentity()
	}
	return policy.PackageIdentity(pkg)
}

func (r *Resolver) lookup(file string) (cacheEntry, bool) {
	v, ok := r.cache.Load(file)
	if !ok {
		return cacheEntry{}, false
	}
	return v.(cacheEntry), true
}

func (r *Resolver) store(file string, e cacheEntry) {
	// LoadOrStore keeps the cache append-only: once a path is resolved its
	// mapping never changes (§4.2, "Cache").
	r.cache.LoadOrStore(file, e)
}

func (r *Resolver) isSelf(file string) bool {
	for _, fragment := range r.SelfPaths {
		if strings.Contains(file, fragment) {
			return true
		}
	}
	return false
}

func (r *Resolver) isInternal(function string) bool {
	for _, prefix := range r.InternalPrefixes {
		if strings.HasPrefix(function, prefix) {
			return true
		}
	}
	return false
}

// packageFromPath maps a source file to a package name the way §4.2 step 3
// maps a node_modules path: the module segment under the last
// ".../pkg/mod/<module>@<version>/..." or ".../vendor/<module>/..."
// directory names the package; anything else (the main module's own tree)
// is "main".
func packageFromPath(file, function string) (pkg string, isMain bool) {
	if pkg, ok := moduleFromPkgMod(file); ok {
		return pkg, false
	}
	if pkg, ok := moduleFromVendor(file); ok {
		return pkg, false
	}
	return "", true
}

// moduleFromPkgMod finds the last "/pkg/mod/" segment of file and returns
// the module path it names. The module/version boundary in the Go module
// cache sits wherever a path segment carries the "@vX.Y.Z" marker, not at
// the first segment after "pkg/mod/" — e.g.
// ".../pkg/mod/github.com/google/uuid@v1.6.0/uuid.go" names the module
// "github.com/google/uuid", not "github.com". This walks segments until it
// finds the one bearing the version marker and joins everything up to (and
// excluding the version suffix of) that segment.
func moduleFromPkgMod(file string) (string, bool) {
	idx := strings.LastIndex(file, "/pkg/mod/")
	if idx < 0 {
		return "", false
	}
	segs := strings.Split(file[idx+len("/pkg/mod/"):], "/")
	for i, seg := range segs {
		if v := strings.Index(seg, "@v"); v >= 0 {
			modSegs := append(append([]string(nil), segs[:i]...), seg[:v])
			if len(modSegs) == 0 || modSegs[0] == "" {
				return "", false
			}
			return strings.Join(modSegs, "/"), true
		}
	}
	return "", false
}

// moduleFromVendor finds the last "/vendor/" segment of file and returns
// the package's full import path under it. Unlike the module cache, a
// vendor directory carries no "@version" marker to locate the module
// boundary (that mapping lives in vendor/modules.txt, which the caller
// site never has in hand), so this names the package by its full vendored
// import path rather than guessing a module root.
func moduleFromVendor(file string) (string, bool) {
	idx := strings.LastIndex(file, "/vendor/")
	if idx < 0 {
		return "", false
	}
	segs := strings.Split(file[idx+len("/vendor/"):], "/")
	if len(segs) < 2 || segs[0] == "" {
		return "", false
	}
	return strings.Join(segs[:len(segs)-1], "/"), true
}

// isEvalFrame implements the eval heuristic of §4.2 step 4, re-targeted
// onto the Go frames that correspond to "dynamically generated code": a
// function compiler-tagged <autogenerated>, a reflect-driven call, or a
// symbol loaded through plugin.Open (whose file name the runtime cannot
// resolve to stable source).
func isEvalFrame(f runtime.Frame) bool {
	if f.File == "" || f.File == "<autogenerated>" {
		return true
	}
	fn := f.Function
	if strings.Contains(fn, "reflect.") {
		return true
	}
	if strings.HasPrefix(fn, "plugin.") {
		return true
	}
	return strings.Contains(f.File, "<autogenerated>")
}

// TamperingDetected reports whether the resolver noticed the process's
// stack-capture primitives had already been replaced before first use.
// It is advisory only (§4.2): it is surfaced through the status API, never
// used to silently change enforcement semantics.
func (r *Resolver) TamperingDetected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tamperingDetected
}

// UsedFallbackBackend reports whether any resolution used the fallback
// backend (always true in this port, since no VM-trusted backend is wired
// in) — kept so a future trusted backend can flip it per §4.2 and §8's
// "Integrity refusal" scenario without changing the Resolver's shape.
func (r *Resolver) UsedFallbackBackend() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usedFallback
}

func (r *Resolver) markFallbackUsed() {
	r.mu.Lock()
	r.usedFallback = true
	r.mu.Unlock()
}
