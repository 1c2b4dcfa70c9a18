// Package sdk locates the Playdate SDK installation and the files inside it
// that the toolchain stages need.
package sdk

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvSDKRoot      = "CRANK_SDK_ROOT"
	EnvPlaydateSDK  = "PLAYDATE_SDK_PATH"
	ConfigDir       = ".Playdate"
	ConfigFilename  = "config"
	ConfigKeySDKDir = "SDKRoot"
)

var ErrNotFound = errors.New("sdk: playdate sdk not found")

// SDK is a resolved SDK installation root.
type SDK struct {
	Root string
}

func (s SDK) CAPI() string        { return filepath.Join(s.Root, "C_API") }
func (s SDK) SetupSource() string { return filepath.Join(s.CAPI(), "buildsupport", "setup.c") }
func (s SDK) LinkMap() string     { return filepath.Join(s.CAPI(), "buildsupport", "link_map.ld") }
func (s SDK) Bin(name string) string {
	return filepath.Join(s.Root, "bin", name)
}

// Config is the SDK's own tab-separated settings file (~/.Playdate/config).
type Config map[string]string

// ParseConfig reads "key<TAB>value" lines; lines without a tab are ignored.
func ParseConfig(raw string) Config {
	cfg := Config{}
	scanner := bufio.NewScanner(strings.NewReader(strings.TrimSpace(raw)))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "\t")
		if !ok {
			continue
		}
		cfg[key] = value
	}
	return cfg
}

// Root returns the SDKRoot entry if present.
func (c Config) Root() (string, bool) {
	v, ok := c[ConfigKeySDKDir]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Resolve finds the SDK root: CRANK_SDK_ROOT, PLAYDATE_SDK_PATH,
// ~/.Playdate/config, then ~/Developer/PlaydateSDK. getenv may be nil.
func Resolve(getenv func(string) string, home string) (SDK, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, key := range []string{EnvSDKRoot, EnvPlaydateSDK} {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return SDK{Root: v}, nil
		}
	}
	if home == "" {
		return SDK{}, fmt.Errorf("%w: home directory unknown and %s unset", ErrNotFound, EnvSDKRoot)
	}

	cfgPath := filepath.Join(home, ConfigDir, ConfigFilename)
	if data, err := os.ReadFile(cfgPath); err == nil {
		if root, ok := ParseConfig(string(data)).Root(); ok {
			return SDK{Root: root}, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return SDK{}, fmt.Errorf("sdk read config path=%q: %w", cfgPath, err)
	}

	return SDK{Root: filepath.Join(home, "Developer", "PlaydateSDK")}, nil
}
