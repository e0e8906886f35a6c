package secrets

import (
	"context"
	"os"
)

// LocalConfig supports loading verification keys from a local file rather
// than from secretmanager.
type LocalConfig struct{}

// NewLocalConfig creates a new instance for loading local verification keys.
func NewLocalConfig() *LocalConfig {
	return &LocalConfig{}
}

// LoadKeys reads the key material from the named file. A file may hold
// several PEM blocks or a JWKS.
func (c *LocalConfig) LoadKeys(ctx context.Context, name string) ([][]byte, error) {
	key, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return [][]byte{key}, nil
}
