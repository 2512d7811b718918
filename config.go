package shardset

import "github.com/hupe1980/shardset/version"

// BuilderConfig is an optional named variant of a dataset. Different
// configs get their own subdirectories and versions.
type BuilderConfig struct {
	Name        string
	Version     version.Version
	Description string
}

// validateConfigs checks a builder's declared config list: every
// config needs a name, version and description, and names must be
// unique.
func validateConfigs(configs []BuilderConfig) error {
	seen := make(map[string]struct{}, len(configs))
	for _, cfg := range configs {
		if cfg.Name == "" {
			return &ConfigError{Reason: "config must have a name"}
		}
		if _, dup := seen[cfg.Name]; dup {
			return &ConfigError{Name: cfg.Name, Reason: "duplicate config name"}
		}
		seen[cfg.Name] = struct{}{}
		if cfg.Version.IsZero() {
			return &ConfigError{Name: cfg.Name, Reason: "config must have a version"}
		}
		if cfg.Description == "" {
			return &ConfigError{Name: cfg.Name, Reason: "config must have a description"}
		}
	}
	return nil
}
