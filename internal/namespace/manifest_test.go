package namespace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Compiler-derived keys are the SHA-256 of the canonical field path. This
// test writes a manifest of keys computed that way and checks that
// LoadStorageKeyManifest reads every field/key pair back unchanged.
func TestStorageKeyManifestPinsDerivedKeys(t *testing.T) {
	fields := []string{"counter", "owner"}

	var manifest string
	for _, f := range fields {
		key := sha256.Sum256([]byte("storage." + f))
		manifest += fmt.Sprintf("- field: %s\n  key: %s\n", f, hex.EncodeToString(key[:]))
	}
	path := filepath.Join(t.TempDir(), "keys.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	fixtures, err := LoadStorageKeyManifest(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if len(fixtures) != len(fields) {
		t.Fatalf("loaded %d entries, want %d", len(fixtures), len(fields))
	}
	for i, fx := range fixtures {
		want := sha256.Sum256([]byte("storage." + fields[i]))
		if fx.Field != fields[i] || fx.Key != hex.EncodeToString(want[:]) {
			t.Fatalf("entry %d: got %q/%q", i, fx.Field, fx.Key)
		}
	}
}
