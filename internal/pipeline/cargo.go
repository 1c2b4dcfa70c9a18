package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/crankctl/internal/tools"
)

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

// crateName reads [package] name from the crate's Cargo.toml.
func crateName(path string) (string, error) {
	var raw cargoManifest
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &tools.ConfigError{Path: path, Reason: "no Cargo.toml found for lib target", Err: err}
		}
		return "", &tools.ConfigError{Path: path, Reason: "parse Cargo.toml", Err: err}
	}
	name := strings.TrimSpace(raw.Package.Name)
	if name == "" {
		return "", tools.ConfigErrorf(path, "no compatible build target: [package] name is missing")
	}
	return name, nil
}

func cargoManifestPath(cfg BuildConfig) string {
	if cfg.ManifestPath != "" {
		return cfg.ManifestPath
	}
	return filepath.Join(cfg.ProjectRoot, "Cargo.toml")
}

// artifactName is the file stem cargo uses for a target: hyphens become
// underscores.
func artifactName(identifier string) string {
	return strings.ReplaceAll(identifier, "-", "_")
}
