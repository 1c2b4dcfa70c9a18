package pipeline

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/danmuck/crankctl/internal/deploy"
)

const (
	Device    = deploy.KindDevice
	Simulator = deploy.KindSimulator
)

// Profile is the cargo build profile.
type Profile int

const (
	Debug Profile = iota
	Release
)

func (p Profile) String() string {
	if p == Release {
		return "release"
	}
	return "debug"
}

// Target selects the crate library or one example.
type Target struct {
	example string
}

// Lib selects the crate's library target.
func Lib() Target { return Target{} }

// Example selects examples/<name>.rs.
func Example(name string) Target { return Target{example: strings.TrimSpace(name)} }

func (t Target) IsLib() bool         { return t.example == "" }
func (t Target) ExampleName() string { return t.example }

func (t Target) String() string {
	if t.IsLib() {
		return "lib"
	}
	return "example:" + t.example
}

// BuildConfig is one pipeline run's inputs. Build it with NewBuildConfig and
// pass it by value.
type BuildConfig struct {
	Kind         deploy.Kind
	Profile      Profile
	Target       Target
	ProjectRoot  string
	ManifestPath string
	features     []string
}

// NewBuildConfig copies, trims, dedupes, and sorts features.
func NewBuildConfig(kind deploy.Kind, profile Profile, target Target, projectRoot string, features ...string) BuildConfig {
	return BuildConfig{
		Kind:        kind,
		Profile:     profile,
		Target:      target,
		ProjectRoot: projectRoot,
		features:    normalizeFeatures(features),
	}
}

// Features returns a copy of the feature list.
func (c BuildConfig) Features() []string {
	return append([]string(nil), c.features...)
}

// With returns a copy of c with a different kind and profile.
func (c BuildConfig) With(kind deploy.Kind, profile Profile) BuildConfig {
	out := c
	out.Kind = kind
	out.Profile = profile
	out.features = c.Features()
	return out
}

// TargetDir is cargo's output root for the project.
func (c BuildConfig) TargetDir() string {
	return filepath.Join(c.ProjectRoot, "target")
}

func normalizeFeatures(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		for _, f := range strings.Split(raw, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
