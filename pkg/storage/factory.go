package storage

import (
	"fmt"
)

// ProviderType represents the type of account store backend
type ProviderType string

const (
	// MemoryProviderType keeps the registry in memory only
	MemoryProviderType ProviderType = "memory"

	// FileProviderType persists the registry to a YAML file
	FileProviderType ProviderType = "file"
)

// ProviderConfig contains configuration for account store backends
type ProviderConfig struct {
	// Type is the backend to create
	Type ProviderType

	// File contains configuration for the file backend
	File *FileProviderConfig
}

// FileProviderConfig contains configuration for the file backend
type FileProviderConfig struct {
	// Path is the location of the accounts file
	Path string
}

// NewAccountStore creates an account store based on the configuration.
func NewAccountStore(config ProviderConfig) (AccountStore, error) {
	switch config.Type {
	case MemoryProviderType:
		return NewMemoryAccountStore(), nil

	case FileProviderType:
		if config.File == nil || config.File.Path == "" {
			return nil, fmt.Errorf("file configuration is required for file provider")
		}
		return NewFileAccountStore(config.File.Path)

	default:
		return nil, fmt.Errorf("unknown provider type: %s", config.Type)
	}
}
