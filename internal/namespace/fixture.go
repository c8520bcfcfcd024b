package namespace

import (
	"os"

	"github.com/goccy/go-yaml"
)

// StorageKeyFixture is one entry of a storage-key manifest used by tests
// and by external dependency resolution tooling to pin expected storage
// keys across compiler versions.
type StorageKeyFixture struct {
	Field string `yaml:"field"`
	Key   string `yaml:"key"`
}

// LoadStorageKeyManifest reads a YAML manifest of field → expected key
// pairs. Used only by tests; production compilation derives keys directly
// rather than reading them from a file.
func LoadStorageKeyManifest(path string) ([]StorageKeyFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fixtures []StorageKeyFixture
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, err
	}
	return fixtures, nil
}
