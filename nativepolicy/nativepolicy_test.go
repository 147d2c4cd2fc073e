package nativepolicy_test

import (
	"testing"

	"github.com/spinualexandru/dotnope/nativepolicy"
	"github.com/spinualexandru/dotnope/policy"
)

// Scenario 6 (spec §8): native plane policy serialization.
func TestGenerate_UnionOfPackages(t *testing.T) {
	m := policy.Model{Packages: map[string]policy.PackagePolicy{
		"a": {Allowed: policy.NewVarSet([]string{"X", "Y"})},
		"b": {CanWrite: policy.NewVarSet([]string{"Z"})},
	}}
	if got := nativepolicy.Generate(m); got != "X,Y,Z" {
		t.Fatalf("Generate() = %q, want %q", got, "X,Y,Z")
	}
}

func TestGenerate_WildcardShortCircuits(t *testing.T) {
	m := policy.Model{Packages: map[string]policy.PackagePolicy{
		"a": {Allowed: policy.NewVarSet([]string{"X", "Y"})},
		"b": {CanDelete: policy.NewVarSet([]string{"*"})},
	}}
	if got := nativepolicy.Generate(m); got != nativepolicy.AllowAll {
		t.Fatalf("Generate() = %q, want %q", got, nativepolicy.AllowAll)
	}
}

func TestGenerate_EmptyModelYieldsEmptyString(t *testing.T) {
	if got := nativepolicy.Generate(policy.Model{}); got != "" {
		t.Fatalf("Generate() of empty model = %q, want empty string", got)
	}
}

func TestGenerate_OrderIndependent(t *testing.T) {
	a := policy.Model{Packages: map[string]policy.PackagePolicy{
		"a": {Allowed: policy.NewVarSet([]string{"X"})},
		"b": {Allowed: policy.NewVarSet([]string{"Y"})},
		"c": {Allowed: policy.NewVarSet([]string{"Z"})},
	}}
	b := policy.Model{Packages: map[string]policy.PackagePolicy{
		"c": {Allowed: policy.NewVarSet([]string{"Z"})},
		"a": {Allowed: policy.NewVarSet([]string{"X"})},
		"b": {Allowed: policy.NewVarSet([]string{"Y"})},
	}}
	if nativepolicy.Generate(a) != nativepolicy.Generate(b) {
		t.Fatal("Generate must be order-independent over map iteration")
	}
}

func TestParse_AllowAll(t *testing.T) {
	s := nativepolicy.Parse("*")
	if !s.Allows("ANYTHING") {
		t.Fatal("\"*\" must allow every variable")
	}
}

func TestParse_Empty(t *testing.T) {
	s := nativepolicy.Parse("")
	if s.Allows("X") {
		t.Fatal("empty string must allow nothing")
	}
}

func TestParse_CSV(t *testing.T) {
	s := nativepolicy.Parse("X,Y,Z")
	if !s.Allows("X") || !s.Allows("Y") || !s.Allows("Z") {
		t.Fatal("all listed variables must be allowed")
	}
	if s.Allows("W") {
		t.Fatal("unlisted variable must not be allowed")
	}
}
