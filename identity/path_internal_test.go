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

package identity

import "testing"

func TestPackageFromPath_ModuleCachePath(t *testing.T) {
	pkg, isMain := packageFromPath("/home/u/go/pkg/mod/github.com/google/uuid@v1.6.0/uuid.go", "")
	if isMain {
		t.Fatal("a pkg/mod path must not resolve to main")
	}
	if pkg != "github.com/google/uuid" {
		t.Fatalf("expected module path github.com/google/uuid, got %q", pkg)
	}
}

func TestPackageFromPath_ModuleCachePseudoVersion(t *testing.T) {
	pkg, isMain := packageFromPath(
		"/home/u/go/pkg/mod/golang.org/x/sys@v0.0.0-20240112161030-9a8c5c1d0c0f/unix/syscall_linux.go", "")
	if isMain {
		t.Fatal("a pkg/mod path must not resolve to main")
	}
	if pkg != "golang.org/x/sys" {
		t.Fatalf("expected module path golang.org/x/sys, got %q", pkg)
	}
}

func TestPackageFromPath_VendorPath(t *testing.T) {
	pkg, isMain := packageFromPath("/repo/vendor/golang.org/x/sys/unix/syscall_linux.go", "")
	if isMain {
		t.Fatal("a vendor path must not resolve to main")
	}
	if pkg != "golang.org/x/sys/unix" {
		t.Fatalf("expected vendored import path golang.org/x/sys/unix, got %q", pkg)
	}
}

func TestPackageFromPath_MainModuleTree(t *testing.T) {
	pkg, isMain := packageFromPath("/repo/dotnope/mediator/mediator.go", "")
	if !isMain {
		t.Fatal("a file outside pkg/mod and vendor must resolve to main")
	}
	if pkg != "" {
		t.Fatalf("main identity carries no package name, got %q", pkg)
	}
}
