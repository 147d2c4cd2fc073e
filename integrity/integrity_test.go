package integrity_test

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spinualexandru/dotnope/integrity"
)

func writeNative(t *testing.T, dir string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, "dotnope-callerid.so")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing fake native file: %v", err)
	}
	return path
}

func writeManifest(t *testing.T, dir, nativePath string, hash string, size int64) string {
	t.Helper()
	m := integrity.Manifest{
		Version: "1",
		Addon: integrity.AddonRecord{
			Path:      nativePath,
			Hash:      hash,
			Algorithm: integrity.AlgorithmSHA256,
			Size:      size,
		},
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshaling manifest: %v", err)
	}
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return path
}

func TestVerify_MatchingHashAndSizeIsVerified(t *testing.T) {
	dir := t.TempDir()
	content := []byte("fake-shared-library-bytes")
	native := writeNative(t, dir, content)
	sum := sha256.Sum256(content)
	manifest := writeManifest(t, dir, native, hex.EncodeToString(sum[:]), int64(len(content)))

	res := integrity.VerifyAdjacent(manifest, native)
	if res.Outcome != integrity.Verified {
		t.Fatalf("expected Verified, got %v (%s)", res.Outcome, res.Reason)
	}
}

// Scenario 7 (spec §8): integrity refusal.
func TestVerify_HashMismatchIsRefused(t *testing.T) {
	dir := t.TempDir()
	content := []byte("fake-shared-library-bytes")
	native := writeNative(t, dir, content)
	wrongSum := sha256.Sum256([]byte("different-bytes-entirely"))
	manifest := writeManifest(t, dir, native, hex.EncodeToString(wrongSum[:]), int64(len(content)))

	res := integrity.VerifyAdjacent(manifest, native)
	if res.Outcome != integrity.Refused {
		t.Fatalf("expected Refused for hash mismatch, got %v", res.Outcome)
	}
}

func TestVerify_SizeMismatchIsRefused(t *testing.T) {
	dir := t.TempDir()
	content := []byte("fake-shared-library-bytes")
	native := writeNative(t, dir, content)
	sum := sha256.Sum256(content)
	manifest := writeManifest(t, dir, native, hex.EncodeToString(sum[:]), int64(len(content)+1))

	res := integrity.VerifyAdjacent(manifest, native)
	if res.Outcome != integrity.Refused {
		t.Fatalf("expected Refused for size mismatch, got %v", res.Outcome)
	}
}

func TestVerify_MissingManifestIsWarningOnly(t *testing.T) {
	dir := t.TempDir()
	native := writeNative(t, dir, []byte("anything"))

	res := integrity.VerifyAdjacent(filepath.Join(dir, "absent-manifest.json"), native)
	if res.Outcome != integrity.WarningOnly {
		t.Fatalf("expected WarningOnly for missing manifest, got %v", res.Outcome)
	}
}
