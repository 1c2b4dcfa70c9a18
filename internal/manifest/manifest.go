package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/crankctl/internal/tools"
)

// DefaultFilename is looked up in the project root when no path is given.
const DefaultFilename = "Crank.toml"

// Metadata is the optional display metadata for one target. A nil field is
// absent and is never defaulted.
type Metadata struct {
	Name            *string `toml:"name"`
	Author          *string `toml:"author"`
	Description     *string `toml:"description"`
	BundleID        *string `toml:"bundle_id"`
	Version         *string `toml:"version"`
	BuildNumber     *int64  `toml:"build_number"`
	ImagePath       *string `toml:"image_path"`
	LaunchSoundPath *string `toml:"launch_sound_path"`
}

// TargetSpec is one declared target.
type TargetSpec struct {
	Assets   []string
	Metadata *Metadata
}

// Manifest maps target names to their specs.
type Manifest struct {
	path    string
	targets map[string]TargetSpec
}

type fileManifest struct {
	Targets []fileTarget `toml:"target"`
}

type fileTarget struct {
	Name     string    `toml:"name"`
	Assets   []string  `toml:"assets"`
	Metadata *Metadata `toml:"metadata"`
}

// Empty returns a manifest with no targets.
func Empty() *Manifest {
	return &Manifest{targets: map[string]TargetSpec{}}
}

// Load reads the manifest at path. A missing file yields an empty manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		m := Empty()
		m.path = path
		return m, nil
	}
	if err != nil {
		return nil, &tools.ConfigError{Path: path, Reason: "read manifest", Err: err}
	}
	m, err := parse(path, string(data))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Parse decodes manifest text.
func Parse(raw string) (*Manifest, error) {
	return parse("", raw)
}

func parse(path string, raw string) (*Manifest, error) {
	var file fileManifest
	meta, err := toml.Decode(raw, &file)
	if err != nil {
		return nil, &tools.ConfigError{Path: path, Reason: "parse manifest", Err: err}
	}
	for _, key := range meta.Undecoded() {
		// [device] belongs to the runtime configuration overlay.
		if len(key) > 0 && key[0] == "device" {
			continue
		}
		return nil, tools.ConfigErrorf(path, "unknown key %q", key.String())
	}

	m := &Manifest{path: path, targets: make(map[string]TargetSpec, len(file.Targets))}
	for i, t := range file.Targets {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, tools.ConfigErrorf(path, "target[%d] missing name", i)
		}
		if _, dup := m.targets[name]; dup {
			return nil, tools.ConfigErrorf(path, "duplicate target %q", name)
		}
		for _, asset := range t.Assets {
			if err := ValidateAssetPath(asset); err != nil {
				return nil, tools.ConfigErrorf(path, "target %q: %v", name, err)
			}
		}
		m.targets[name] = TargetSpec{
			Assets:   append([]string(nil), t.Assets...),
			Metadata: t.Metadata.clone(),
		}
	}
	return m, nil
}

// ValidateAssetPath rejects empty, absolute, and root-escaping asset paths.
func ValidateAssetPath(asset string) error {
	if strings.TrimSpace(asset) == "" {
		return errors.New("empty asset path")
	}
	if filepath.IsAbs(asset) || strings.HasPrefix(asset, "/") {
		return errors.New("asset path must be relative: " + asset)
	}
	clean := filepath.Clean(filepath.FromSlash(asset))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return errors.New("asset path escapes project root: " + asset)
	}
	return nil
}

// Path is the file the manifest was loaded from, if any.
func (m *Manifest) Path() string { return m.path }

// Target returns a copy of the named target's spec.
func (m *Manifest) Target(name string) (TargetSpec, bool) {
	spec, ok := m.targets[name]
	if !ok {
		return TargetSpec{}, false
	}
	return TargetSpec{
		Assets:   append([]string(nil), spec.Assets...),
		Metadata: spec.Metadata.clone(),
	}, true
}

// Names returns the declared target names in lexical order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.targets))
	for name := range m.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of declared targets.
func (m *Manifest) Len() int { return len(m.targets) }

func (md *Metadata) clone() *Metadata {
	if md == nil {
		return nil
	}
	out := &Metadata{
		Name:            cloneString(md.Name),
		Author:          cloneString(md.Author),
		Description:     cloneString(md.Description),
		BundleID:        cloneString(md.BundleID),
		Version:         cloneString(md.Version),
		ImagePath:       cloneString(md.ImagePath),
		LaunchSoundPath: cloneString(md.LaunchSoundPath),
	}
	if md.BuildNumber != nil {
		n := *md.BuildNumber
		out.BuildNumber = &n
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
