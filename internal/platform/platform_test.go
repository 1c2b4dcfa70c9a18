package platform

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/crankctl/internal/sdk"
)

func TestForOSSelectsImplementation(t *testing.T) {
	for _, goos := range []string{"darwin", "linux", "windows"} {
		p, err := ForOS(goos, nil)
		if err != nil {
			t.Fatalf("ForOS(%q): %v", goos, err)
		}
		if p.Name() != goos {
			t.Fatalf("unexpected platform name: %q", p.Name())
		}
	}
	if _, err := ForOS("plan9", nil); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestDylibNames(t *testing.T) {
	cases := map[string]string{
		"darwin":  "libhello_world.dylib",
		"linux":   "libhello_world.so",
		"windows": "hello_world.dll",
	}
	for goos, want := range cases {
		p, _ := ForOS(goos, nil)
		if got := p.DylibName("hello_world"); got != want {
			t.Fatalf("%s DylibName = %q want %q", goos, got, want)
		}
		if !strings.HasSuffix(want, "."+p.DylibExt()) {
			t.Fatalf("%s ext %q does not match %q", goos, p.DylibExt(), want)
		}
	}
}

func TestDarwinCommands(t *testing.T) {
	p, _ := ForOS("darwin", nil)
	eject := p.EjectCommand("/Volumes/PLAYDATE")
	if eject.String() != "diskutil eject /Volumes/PLAYDATE" {
		t.Fatalf("unexpected eject command: %q", eject.String())
	}
	sim := p.SimulatorCommand(sdk.SDK{Root: "/sdk"}, "/proj/target/Hello.pdx")
	if len(sim.Args) != 1 || sim.Args[0] != "/proj/target/Hello.pdx" {
		t.Fatalf("simulator must receive the bundle as sole argument: %+v", sim.Args)
	}
	if !strings.HasPrefix(sim.Name, filepath.Join("/sdk", "bin")) {
		t.Fatalf("unexpected simulator path: %q", sim.Name)
	}
}

func TestLinuxMountPathUsesUser(t *testing.T) {
	p, err := ForOS("linux", func(key string) string {
		if key == "USER" {
			return "pd"
		}
		return ""
	})
	if err != nil {
		t.Fatalf("ForOS: %v", err)
	}
	if got := p.DefaultMountPath(); got != filepath.Join("/run/media", "pd", "PLAYDATE") {
		t.Fatalf("unexpected mount path: %q", got)
	}

	anon, _ := ForOS("linux", nil)
	if got := anon.DefaultMountPath(); got != filepath.Join("/media", "PLAYDATE") {
		t.Fatalf("unexpected mount path without user: %q", got)
	}
}

func TestWindowsHasNoSerialDefault(t *testing.T) {
	p, _ := ForOS("windows", nil)
	if p.DefaultSerialPath() != "" {
		t.Fatalf("expected empty serial default")
	}
	if p.ExeName("pdc") != "pdc.exe" {
		t.Fatalf("unexpected exe name: %q", p.ExeName("pdc"))
	}
}
