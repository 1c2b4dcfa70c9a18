// Package bundle assembles the staging directory handed to the bundle
// compiler: the loadable binary, the declared assets, and pdxinfo.
package bundle

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"

	"github.com/danmuck/crankctl/internal/manifest"
	"github.com/danmuck/crankctl/internal/tools"
	"github.com/rs/zerolog/log"
)

const (
	MetadataFilename = "pdxinfo"
	BinaryName       = "pdex.bin"
	PackageExt       = ".pdx"
	ArchiveExt       = ".zip"
)

// LibraryName is the staged simulator library name for a dylib extension.
func LibraryName(ext string) string { return "pdex." + ext }

// Assembler writes one staging directory. It is owned by a single pipeline run.
type Assembler struct {
	ProjectRoot string
	Dir         string
}

// New returns an assembler staging into dir, reading assets from projectRoot.
func New(projectRoot string, dir string) *Assembler {
	return &Assembler{ProjectRoot: projectRoot, Dir: dir}
}

// Path joins name onto the staging directory.
func (a *Assembler) Path(name string) string { return filepath.Join(a.Dir, name) }

// Create makes the staging directory. An existing directory is not an error.
func (a *Assembler) Create() error {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return tools.FSErr("mkdir", a.Dir, err)
	}
	return nil
}

// CopyAssets mirrors each declared relative path from the project root into
// the staging directory. A missing source aborts with the asset's path.
func (a *Assembler) CopyAssets(assets []string) error {
	for _, asset := range assets {
		if err := manifest.ValidateAssetPath(asset); err != nil {
			return &tools.ConfigError{Reason: "asset " + strconv.Quote(asset), Err: err}
		}
		rel := filepath.FromSlash(asset)
		src := filepath.Join(a.ProjectRoot, rel)
		dst := filepath.Join(a.Dir, rel)

		info, err := os.Stat(src)
		if err != nil {
			return tools.FSErr("stat asset", src, err)
		}
		if info.IsDir() {
			if err := tools.CopyTree(src, dst, nil); err != nil {
				return err
			}
		} else if _, err := tools.CopyFile(src, dst, info.Mode().Perm()); err != nil {
			return err
		}
		log.Debug().Msgf("bundle.Assembler.CopyAssets asset=%q dst=%q", asset, dst)
	}
	return nil
}

// WriteMetadata writes pdxinfo. With no metadata nothing is written.
func (a *Assembler) WriteMetadata(md *manifest.Metadata) error {
	if md == nil {
		return nil
	}
	path := a.Path(MetadataFilename)
	if err := os.WriteFile(path, PDXInfo(md), 0o644); err != nil {
		return tools.FSErr("write", path, err)
	}
	return nil
}

// PDXInfo renders metadata as key=value lines in the fixed pdxinfo field
// order. Absent fields produce no line.
func PDXInfo(md *manifest.Metadata) []byte {
	var buf bytes.Buffer
	if md == nil {
		return nil
	}
	line := func(key string, value *string) {
		if value == nil {
			return
		}
		buf.WriteString(key)
		buf.WriteByte('=')
		buf.WriteString(*value)
		buf.WriteByte('\n')
	}
	line("name", md.Name)
	line("author", md.Author)
	line("description", md.Description)
	line("bundleID", md.BundleID)
	line("version", md.Version)
	if md.BuildNumber != nil {
		n := strconv.FormatInt(*md.BuildNumber, 10)
		line("buildNumber", &n)
	}
	line("imagePath", md.ImagePath)
	line("launchSoundPath", md.LaunchSoundPath)
	return buf.Bytes()
}
