package xforge

import (
	"fmt"
	"strings"
)

const (
	defaultVersion = "25.0.0.9"
	upstreamBase   = "https://github.com/X11Libre/"
)

// Tier orders the package set: the foundation builds first, the meta
// package last, drivers in between in any order.
type Tier int

const (
	TierFoundation Tier = iota
	TierDriver
	TierMeta
)

func (t Tier) String() string {
	switch t {
	case TierFoundation:
		return "foundation"
	case TierDriver:
		return "driver"
	case TierMeta:
		return "meta"
	}
	return "unknown"
}

// PackageSpec describes one package of the set. Immutable for the run.
// URL is empty for metadata-only packages. A spec may yield several
// installable artifacts (the server splits into five). Depends is only set
// for metadata-only packages, whose entire recipe is their dependency list.
type PackageSpec struct {
	Name      string
	URL       string
	Tier      Tier
	Artifacts []string
	Depends   []string
}

// artifactFileName is the fixed naming scheme makepkg uses for archives.
func artifactFileName(artifact, version, release, arch string) string {
	return fmt.Sprintf("%s-%s-%s-%s.pkg.tar.zst", artifact, version, release, arch)
}

// serverArtifacts are the five installable units the xserver tree splits
// into. The gate only reports done when every one of them is present and
// installed.
var serverArtifacts = []string{
	"xlibre-server",
	"xlibre-server-common",
	"xlibre-server-devel",
	"xlibre-server-xephyr",
	"xlibre-server-xvfb",
}

var inputDrivers = []string{
	"xf86-input-elographics",
	"xf86-input-evdev",
	"xf86-input-joystick",
	"xf86-input-keyboard",
	"xf86-input-libinput",
	"xf86-input-mouse",
	"xf86-input-synaptics",
	"xf86-input-vmmouse",
	"xf86-input-void",
	"xf86-input-wacom",
}

var videoDrivers = []string{
	"xf86-video-amdgpu",
	"xf86-video-apm",
	"xf86-video-ark",
	"xf86-video-ast",
	"xf86-video-ati",
	"xf86-video-chips",
	"xf86-video-cirrus",
	"xf86-video-dummy",
	"xf86-video-fbdev",
	"xf86-video-geode",
	"xf86-video-i128",
	"xf86-video-i740",
	"xf86-video-intel",
	"xf86-video-mach64",
	"xf86-video-mga",
	"xf86-video-neomagic",
	"xf86-video-nested",
	"xf86-video-nouveau",
	"xf86-video-nv",
	"xf86-video-qxl",
	"xf86-video-r128",
	"xf86-video-rendition",
	"xf86-video-s3virge",
	"xf86-video-savage",
	"xf86-video-siliconmotion",
	"xf86-video-sis",
	"xf86-video-sisusb",
	"xf86-video-tdfx",
	"xf86-video-trident",
	"xf86-video-v4l",
	"xf86-video-vesa",
	"xf86-video-vmware",
	"xf86-video-voodoo",
	"xf86-video-wsfb",
	"xf86-video-xgi",
}

// DefaultPackageSet returns the full ordered set: one foundational xserver
// spec, the independent drivers and the trailing meta package.
func DefaultPackageSet() []PackageSpec {
	specs := make([]PackageSpec, 0, len(inputDrivers)+len(videoDrivers)+2)

	specs = append(specs, PackageSpec{
		Name:      "xlibre-xserver",
		URL:       upstreamBase + "xserver",
		Tier:      TierFoundation,
		Artifacts: serverArtifacts,
	})

	for _, name := range inputDrivers {
		specs = append(specs, PackageSpec{
			Name:      name,
			URL:       upstreamBase + name,
			Tier:      TierDriver,
			Artifacts: []string{name},
		})
	}
	for _, name := range videoDrivers {
		specs = append(specs, PackageSpec{
			Name:      name,
			URL:       upstreamBase + name,
			Tier:      TierDriver,
			Artifacts: []string{name},
		})
	}

	metaDepends := []string{"xlibre-server"}
	metaDepends = append(metaDepends, inputDrivers...)
	metaDepends = append(metaDepends, videoDrivers...)
	specs = append(specs, PackageSpec{
		Name:      "xlibre-drivers",
		Tier:      TierMeta,
		Artifacts: []string{"xlibre-drivers"},
		Depends:   metaDepends,
	})

	return specs
}

// Providers maps every name another recipe may depend on (spec identifier
// or produced artifact) to the spec that builds it. A dependency found here
// is satisfied from the local repository instead of the upstream feed.
func Providers(specs []PackageSpec) map[string]PackageSpec {
	providers := make(map[string]PackageSpec)
	for _, spec := range specs {
		providers[spec.Name] = spec
		for _, artifact := range spec.Artifacts {
			providers[artifact] = spec
		}
	}
	return providers
}

// editOp selects how a sourceEdit is rendered into the recipe's prepare()
// stage.
type editOp int

const (
	editReplace editOp = iota
	editInsertAfter
	editCommentOutRoutine
)

// sourceEdit is one textual fixup applied to a fetched source tree before
// building. Exceptions are data keyed by package identifier, never inline
// branches. For replace and insert edits Match and Text are literal source
// text, escaped at render time; comment-out edits take a line-anchor
// pattern.
type sourceEdit struct {
	File  string
	Op    editOp
	Match string
	Text  string
}

// driverPatches lists the per-identifier patch exceptions. Currently only
// xf86-video-intel needs fixups against the new server headers: a symbol
// collision, a macro redefinition, a missing include and two routines that
// call into removed server internals.
var driverPatches = map[string][]sourceEdit{
	"xf86-video-intel": {
		{File: "src/compat-api.h", Op: editReplace,
			Match: `BoxEmpty`, Text: `intel_box_empty`},
		{File: "src/compat-api.h", Op: editReplace,
			Match: `#define ARRAY_SIZE(a) (sizeof(a) / sizeof(a[0]))`,
			Text:  `/* ARRAY_SIZE comes from the server headers now */`},
		{File: "src/intel_device.c", Op: editInsertAfter,
			Match: `#include "intel_driver.h"`,
			Text:  `#include <xf86Priv.h>`},
		{File: "src/intel_module.c", Op: editCommentOutRoutine,
			Match: `^static void intel_check_chipset_option`},
		{File: "src/intel_module.c", Op: editCommentOutRoutine,
			Match: `^static Bool intel_pci_probe_compat`},
	},
}

// sedLiteral escapes s so sed treats it as literal text inside a
// |-delimited pattern instead of a regular expression.
func sedLiteral(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '.', '*', '[', ']', '^', '$', '|':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sedReplacement escapes s for the replacement side of a |-delimited
// substitution.
func sedReplacement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '&', '|':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// renderEdits turns the edit table into sed invocations for a PKGBUILD
// prepare() stage.
func renderEdits(edits []sourceEdit) []string {
	lines := make([]string, 0, len(edits))
	for _, e := range edits {
		switch e.Op {
		case editReplace:
			lines = append(lines, fmt.Sprintf(`sed -i 's|%s|%s|g' %s`, sedLiteral(e.Match), sedReplacement(e.Text), e.File))
		case editInsertAfter:
			lines = append(lines, fmt.Sprintf(`sed -i '0,\|%s|s||&\n%s|' %s`, sedLiteral(e.Match), sedReplacement(e.Text), e.File))
		case editCommentOutRoutine:
			// Comment out the whole routine body, match through the
			// closing brace in column zero.
			lines = append(lines, fmt.Sprintf(`sed -i '\|%s|,\|^}|s|^|// |' %s`, e.Match, e.File))
		}
	}
	return lines
}
