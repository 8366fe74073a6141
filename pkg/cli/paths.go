package cli

import (
	"os"
	"path/filepath"
)

// Paths locates an app's files under ~/.giztoy/<app>.
type Paths struct {
	AppName string
	HomeDir string
}

// NewPaths creates Paths for appName under the user's home directory.
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, HomeDir: home}, nil
}

// AppDir returns ~/.giztoy/<app>.
func (p *Paths) AppDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir, p.AppName)
}

// ConfigFile returns ~/.giztoy/<app>/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// DataDir returns ~/.giztoy/<app>/data.
func (p *Paths) DataDir() string {
	return filepath.Join(p.AppDir(), "data")
}

// StoreDir returns the default badger directory, ~/.giztoy/<app>/data/store.
// Contexts without a store dir keep their speakers here.
func (p *Paths) StoreDir() string {
	return filepath.Join(p.DataDir(), "store")
}
