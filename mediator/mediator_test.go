package mediator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinualexandru/dotnope/mediator"
	"github.com/spinualexandru/dotnope/policy"
)

func freshModel(packages map[string]policy.PackagePolicy) policy.Model {
	return policy.Model{Packages: packages, Options: policy.DefaultOptions()}
}

func mustTeardown(t *testing.T, h *mediator.Handle) {
	t.Helper()
	require.NoError(t, h.Disable(h.GetToken()))
}

func TestInstall_SecondInstallFails(t *testing.T) {
	h1, err := mediator.Install(freshModel(nil), mediator.NewMapStore(nil))
	require.NoError(t, err)
	defer mustTeardown(t, h1)

	_, err = mediator.Install(freshModel(nil), mediator.NewMapStore(nil))
	assert.Error(t, err, "expected second Install to fail while one is active")
}

// §8: "Install -> teardown (correct token) -> install succeeds again."
func TestInstall_TeardownThenReinstall(t *testing.T) {
	h1, err := mediator.Install(freshModel(nil), mediator.NewMapStore(nil))
	require.NoError(t, err)
	require.NoError(t, h1.Disable(h1.GetToken()))

	h2, err := mediator.Install(freshModel(nil), mediator.NewMapStore(nil))
	require.NoError(t, err, "reinstall after teardown must succeed")
	mustTeardown(t, h2)
}

// §8: wrong/empty token leaves the mediator installed and enforcing.
func TestHandle_DisableWithWrongTokenIsRejected(t *testing.T) {
	h, err := mediator.Install(freshModel(nil), mediator.NewMapStore(nil))
	require.NoError(t, err)
	defer mustTeardown(t, h)

	for _, bad := range []string{"", "not-the-token", h.GetToken() + "x"} {
		assert.Error(t, h.Disable(bad), "Disable(%q) should be rejected", bad)
	}
	assert.True(t, h.IsEnabled(), "mediator must remain installed after a rejected teardown")
}

func TestHandle_SuccessfulTeardownStopsEnforcement(t *testing.T) {
	store := mediator.NewMapStore(map[string]string{"A": "1"})
	h, err := mediator.Install(freshModel(map[string]policy.PackagePolicy{}), store)
	require.NoError(t, err)

	require.NoError(t, h.Disable(h.GetToken()))
	assert.False(t, h.IsEnabled(), "IsEnabled() should be false after successful teardown")

	// After teardown, further calls on the stale handle forward directly
	// to the store with no decision being invoked.
	v, err := h.Getenv("A")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestMediator_BlockedRead(t *testing.T) {
	store := mediator.NewMapStore(map[string]string{"AWS_SECRET": "shh"})
	// Test code resolves to main, which bypasses policy by default; turning
	// that off makes main subject to the (empty) policy like any caller.
	model := freshModel(nil)
	model.Options.TreatMainAsUnrestricted = false
	h, err := mediator.Install(model, store)
	require.NoError(t, err)
	defer mustTeardown(t, h)

	_, err = h.Getenv("AWS_SECRET")
	assert.Error(t, err, "expected a denial when no policy entry grants the read")
}

func TestMediator_AllowedWrite(t *testing.T) {
	store := mediator.NewMapStore(nil)
	h, err := mediator.Install(freshModel(map[string]policy.PackagePolicy{
		"": {CanWrite: policy.NewVarSet([]string{"X"})},
	}), store)
	require.NoError(t, err)
	defer mustTeardown(t, h)

	// Test code itself resolves to "main" identity (it lives in the main
	// module's own tree), which bypasses policy entirely when
	// TreatMainAsUnrestricted is true (the default) — so writes succeed
	// regardless of the "" package entry above.
	require.NoError(t, h.Setenv("X", "1"))
	v, err := h.Getenv("X")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestMediator_EnumerationFromMain(t *testing.T) {
	store := mediator.NewMapStore(map[string]string{"A": "1", "B": "2"})
	h, err := mediator.Install(freshModel(nil), store)
	require.NoError(t, err)
	defer mustTeardown(t, h)

	keys, err := h.Environ()
	require.NoError(t, err)
	assert.Len(t, keys, 2, "expected main to see all keys")
}

func TestMediator_AccessStatsTrackAllowedAndDenied(t *testing.T) {
	store := mediator.NewMapStore(map[string]string{"A": "1"})
	h, err := mediator.Install(freshModel(nil), store)
	require.NoError(t, err)
	defer mustTeardown(t, h)

	h.Getenv("A") // allowed: main

	before := h.GetAccessStats()
	assert.Greater(t, before.AllowedReads, int64(0))

	restricted := freshModel(nil)
	restricted.Options.TreatMainAsUnrestricted = false
	h.Reconfigure(restricted)
	h.Getenv("A") // denied: main no longer unrestricted, no policy entry

	after := h.GetAccessStats()
	assert.Greater(t, after.DeniedReads, before.DeniedReads)
}

func TestHandle_GetSerializableConfigRoundTrips(t *testing.T) {
	model := freshModel(map[string]policy.PackagePolicy{
		"p": {Allowed: policy.NewVarSet([]string{"A"})},
	})
	h, err := mediator.Install(model, mediator.NewMapStore(nil))
	require.NoError(t, err)
	defer mustTeardown(t, h)

	data, err := h.GetSerializableConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestHandle_IsWorkerAllowedDefaultsFalse(t *testing.T) {
	h, err := mediator.Install(freshModel(nil), mediator.NewMapStore(nil))
	require.NoError(t, err)
	defer mustTeardown(t, h)

	assert.False(t, h.IsWorkerAllowed(), "worker mediators should be disallowed by default")
}

func TestHandle_EmitSecurityWarnings(t *testing.T) {
	h, err := mediator.Install(freshModel(nil), mediator.NewMapStore(nil))
	require.NoError(t, err)
	defer mustTeardown(t, h)

	assert.Empty(t, h.EmitSecurityWarnings())
	h.RecordIntegrityDowngrade("manifest absent")
	assert.Len(t, h.EmitSecurityWarnings(), 1)
}
