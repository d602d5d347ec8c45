package xforge

import (
	"fmt"
	"sort"
	"strings"
)

// Recipe is the synthesized build recipe for one spec. Dependency lists are
// first-class fields so the installer never has to re-parse the rendered
// PKGBUILD text.
type Recipe struct {
	Spec        PackageSpec
	Version     string
	Release     string
	Depends     []string
	MakeDepends []string
	Text        string
}

// AllDepends returns the union of runtime and build-time dependencies,
// de-duplicated and sorted.
func (r *Recipe) AllDepends() []string {
	seen := make(map[string]bool, len(r.Depends)+len(r.MakeDepends))
	var all []string
	for _, list := range [][]string{r.Depends, r.MakeDepends} {
		for _, name := range list {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			all = append(all, name)
		}
	}
	sort.Strings(all)
	return all
}

var serverDepends = []string{
	"libepoxy",
	"libtirpc",
	"libunwind",
	"libxcvt",
	"libxfont2",
	"nettle",
	"pixman",
	"xkeyboard-config",
}

var serverMakeDepends = []string{
	"autoconf",
	"automake",
	"git",
	"libdrm",
	"libtool",
	"libxkbfile",
	"libxshmfence",
	"mesa",
	"meson",
	"ninja",
	"pkgconf",
	"xorgproto",
	"xtrans",
}

var driverMakeDepends = []string{
	"autoconf",
	"automake",
	"git",
	"libtool",
	"meson",
	"ninja",
	"pkgconf",
	"xlibre-server-devel",
	"xorg-util-macros",
	"xorgproto",
}

// driverExtraDepends lists per-driver runtime libraries beyond the server
// itself.
var driverExtraDepends = map[string][]string{
	"xf86-input-libinput":  {"libinput"},
	"xf86-input-synaptics": {"libevdev"},
	"xf86-input-wacom":     {"libwacom"},
	"xf86-video-amdgpu":    {"libdrm"},
	"xf86-video-ati":       {"libdrm"},
	"xf86-video-intel":     {"libdrm", "libxcb"},
	"xf86-video-nouveau":   {"libdrm"},
	"xf86-video-qxl":       {"spice-protocol"},
}

// Synthesize produces the recipe for one spec. Pure and deterministic: the
// same spec, version and release always yield the same recipe. The caller
// persists Text to the package working directory.
func Synthesize(spec PackageSpec, version, release string) Recipe {
	switch spec.Tier {
	case TierFoundation:
		return synthesizeServer(spec, version, release)
	case TierMeta:
		return synthesizeMeta(spec, version, release)
	default:
		return synthesizeDriver(spec, version, release)
	}
}

// buildStage is the shared build() body: the fetched tree selects meson when
// a meson.build descriptor is present, autotools otherwise.
func buildStage(configureFlags, mesonFlags string) string {
	return fmt.Sprintf(`build() {
  cd "$startdir/src"
  if [ -f meson.build ]; then
    meson setup build --prefix=/usr --buildtype=release %s
    ninja -C build
  else
    ./autogen.sh --prefix=/usr %s
    make
  fi
}`, mesonFlags, configureFlags)
}

func synthesizeServer(spec PackageSpec, version, release string) Recipe {
	rec := Recipe{
		Spec:        spec,
		Version:     version,
		Release:     release,
		Depends:     serverDepends,
		MakeDepends: serverMakeDepends,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "pkgbase=%s\n", spec.Name)
	fmt.Fprintf(&b, "pkgname=(%s)\n", quoteList(spec.Artifacts))
	fmt.Fprintf(&b, "pkgver=%s\n", version)
	fmt.Fprintf(&b, "pkgrel=%s\n", release)
	b.WriteString("pkgdesc='XLibre X server fork'\n")
	b.WriteString("arch=('x86_64')\n")
	fmt.Fprintf(&b, "url='%s'\n", spec.URL)
	b.WriteString("license=('MIT')\n")
	fmt.Fprintf(&b, "depends=(%s)\n", quoteList(rec.Depends))
	fmt.Fprintf(&b, "makedepends=(%s)\n", quoteList(rec.MakeDepends))
	b.WriteString("\n")

	// Virtual framebuffer, nested and remote display servers all enabled.
	b.WriteString(buildStage(
		"--enable-xvfb --enable-xnest --enable-xephyr",
		"-Dxvfb=true -Dxnest=true -Dxephyr=true"))
	b.WriteString("\n\n")

	b.WriteString(`_install_all() {
  cd "$startdir/src"
  if [ -f meson.build ]; then
    DESTDIR="$1" ninja -C build install
  else
    make DESTDIR="$1" install
  fi
}

# Missing optional display servers only warn: a tree configured without
# Xnest or Xephyr must not fail the whole package step.
_take() {
  if [ -e "$srcdir/_stage/$1" ]; then
    install -Dm755 "$srcdir/_stage/$1" "$pkgdir/$1"
  else
    warning "optional binary $1 not produced, skipping"
  fi
}

package_xlibre-server() {
  _install_all "$srcdir/_stage"
  install -Dm755 "$srcdir/_stage/usr/bin/Xorg" "$pkgdir/usr/bin/Xorg"
  cp -a "$srcdir/_stage/usr/lib" "$pkgdir/usr/"
}

package_xlibre-server-common() {
  _install_all "$srcdir/_stage"
  cp -a "$srcdir/_stage/usr/share" "$pkgdir/usr/" 2>/dev/null || mkdir -p "$pkgdir/usr/share"
}

package_xlibre-server-devel() {
  _install_all "$srcdir/_stage"
  cp -a "$srcdir/_stage/usr/include" "$pkgdir/usr/" 2>/dev/null || mkdir -p "$pkgdir/usr/include"
  mkdir -p "$pkgdir/usr/lib"
  cp -a "$srcdir/_stage/usr/lib/pkgconfig" "$pkgdir/usr/lib/" 2>/dev/null || true
}

package_xlibre-server-xephyr() {
  _install_all "$srcdir/_stage"
  _take usr/bin/Xephyr
  _take usr/bin/Xnest
}

package_xlibre-server-xvfb() {
  _install_all "$srcdir/_stage"
  _take usr/bin/Xvfb
}
`)

	rec.Text = b.String()
	return rec
}

func synthesizeDriver(spec PackageSpec, version, release string) Recipe {
	depends := append([]string{"xlibre-server"}, driverExtraDepends[spec.Name]...)
	sort.Strings(depends)

	rec := Recipe{
		Spec:        spec,
		Version:     version,
		Release:     release,
		Depends:     depends,
		MakeDepends: driverMakeDepends,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "pkgname=%s\n", spec.Name)
	fmt.Fprintf(&b, "pkgver=%s\n", version)
	fmt.Fprintf(&b, "pkgrel=%s\n", release)
	fmt.Fprintf(&b, "pkgdesc='XLibre %s driver'\n", strings.TrimPrefix(spec.Name, "xf86-"))
	b.WriteString("arch=('x86_64')\n")
	fmt.Fprintf(&b, "url='%s'\n", spec.URL)
	b.WriteString("license=('MIT')\n")
	fmt.Fprintf(&b, "depends=(%s)\n", quoteList(rec.Depends))
	fmt.Fprintf(&b, "makedepends=(%s)\n", quoteList(rec.MakeDepends))
	b.WriteString("\n")

	if edits := driverPatches[spec.Name]; len(edits) > 0 {
		b.WriteString("prepare() {\n  cd \"$startdir/src\"\n")
		for _, line := range renderEdits(edits) {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("}\n\n")
	}

	b.WriteString(buildStage("", ""))
	b.WriteString("\n\n")
	b.WriteString(`package() {
  cd "$startdir/src"
  if [ -f meson.build ]; then
    DESTDIR="$pkgdir" ninja -C build install
  else
    make DESTDIR="$pkgdir" install
  fi
}
`)

	rec.Text = b.String()
	return rec
}

func synthesizeMeta(spec PackageSpec, version, release string) Recipe {
	// The meta package pulls in the server plus a default driver set. No
	// build or package steps beyond declaring the dependency list.
	depends := append([]string(nil), spec.Depends...)
	sort.Strings(depends)

	rec := Recipe{
		Spec:    spec,
		Version: version,
		Release: release,
		Depends: depends,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "pkgname=%s\n", spec.Name)
	fmt.Fprintf(&b, "pkgver=%s\n", version)
	fmt.Fprintf(&b, "pkgrel=%s\n", release)
	b.WriteString("pkgdesc='XLibre default driver set (meta package)'\n")
	b.WriteString("arch=('x86_64')\n")
	fmt.Fprintf(&b, "url='%sxserver'\n", upstreamBase)
	b.WriteString("license=('MIT')\n")
	fmt.Fprintf(&b, "depends=(%s)\n", quoteList(rec.Depends))
	b.WriteString("\n# marker artifact only, nothing to stage\npackage() {\n  :\n}\n")

	rec.Text = b.String()
	return rec
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "'" + name + "'"
	}
	return strings.Join(quoted, " ")
}
