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

//go:build linux

// Command dotnope-interposer is the Native Interposer of §4.5: built with
// `go build -buildmode=c-shared`, it is loaded via LD_PRELOAD ahead of libc
// and exports getenv/secure_getenv replacements that consult a
// process-wide allow-set carried in DOTNOPE_POLICY instead of trusting
// every native caller in the address space.
//
// This is intentionally coarse: it has no per-package identity (§4.5,
// "the interposer is intentionally coarse"). It exists to stop native
// code from sidestepping the runtime mediator, not to reimplement it; the
// runtime mediator still applies per-package decisions to Go and
// plugin-loaded callers.
//
// This package has no analogue elsewhere in the example pack (nothing
// there uses cgo, dlsym, or LD_PRELOAD); its dlsym/RTLD_NEXT plumbing
// follows the standard C idiom for a libc interposer, not a pack-grounded
// pattern. See DESIGN.md for the full grounding note.
package main

/*
#cgo LDFLAGS: -ldl
#define _GNU_SOURCE
#include <dlfcn.h>
#include <stdlib.h>

static char *dotnope_call_next_getenv(const char *name) {
	static char *(*real_getenv)(const char *) = NULL;
	if (!real_getenv) {
		real_getenv = (char *(*)(const char *))dlsym(RTLD_NEXT, "getenv");
	}
	if (!real_getenv) {
		return NULL;
	}
	return real_getenv(name);
}
*/
import "C"

import (
	"os"
	"sync"

	"github.com/spinualexandru/dotnope/nativepolicy"
)

var (
	once      sync.Once
	allowSet  nativepolicy.AllowSet
	logHandle *os.File
)

func initPolicy() {
	once.Do(func() {
		allowSet = nativepolicy.Parse(os.Getenv(nativepolicy.EnvVar))
		if path := os.Getenv(nativepolicy.LogEnvVar); path != "" {
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err == nil {
				logHandle = f
			}
		}
	})
}

func logDecision(name string, allowed bool) {
	if logHandle == nil {
		return
	}
	verdict := "deny"
	if allowed {
		verdict = "allow"
	}
	logHandle.WriteString(name + " " + verdict + "\n")
}

//export getenv
func getenv(name *C.char) *C.char {
	initPolicy()
	goName := C.GoString(name)
	if !allowSet.Allows(goName) {
		logDecision(goName, false)
		return nil
	}
	logDecision(goName, true)
	return C.dotnope_call_next_getenv(name)
}

//export secure_getenv
func secure_getenv(name *C.char) *C.char {
	return getenv(name)
}

func main() {}
