package xforge

import (
	"regexp"
	"strings"
	"testing"
)

func TestSynthesizeDeterministic(t *testing.T) {
	specs := DefaultPackageSet()
	for _, spec := range specs {
		a := Synthesize(spec, "25.0.0.9", "1")
		b := Synthesize(spec, "25.0.0.9", "1")
		if a.Text != b.Text {
			t.Errorf("%s: recipe text differs between identical calls", spec.Name)
		}
	}
}

func TestSynthesizeServerSplitsArtifacts(t *testing.T) {
	spec := DefaultPackageSet()[0]
	if spec.Tier != TierFoundation {
		t.Fatalf("first spec should be the foundation, got %s", spec.Name)
	}

	rec := Synthesize(spec, "25.0.0.9", "1")
	for _, artifact := range spec.Artifacts {
		fn := "package_" + artifact + "()"
		if !strings.Contains(rec.Text, fn) {
			t.Errorf("server recipe missing split function %s", fn)
		}
	}
	// Both build-system families must be handled by the same recipe.
	if !strings.Contains(rec.Text, "meson.build") {
		t.Error("server recipe lacks meson detection")
	}
	if !strings.Contains(rec.Text, "autogen.sh") {
		t.Error("server recipe lacks autotools fallback")
	}
	// Virtual framebuffer, nested and remote display servers enabled.
	for _, flag := range []string{"-Dxvfb=true", "-Dxnest=true", "-Dxephyr=true"} {
		if !strings.Contains(rec.Text, flag) {
			t.Errorf("server recipe missing feature flag %s", flag)
		}
	}
}

func TestSynthesizePatchStageOnlyForException(t *testing.T) {
	version, release := "25.0.0.9", "1"
	for _, spec := range DefaultPackageSet() {
		if spec.Tier != TierDriver {
			continue
		}
		rec := Synthesize(spec, version, release)
		_, patched := driverPatches[spec.Name]
		hasPrepare := strings.Contains(rec.Text, "prepare()")
		if patched && !hasPrepare {
			t.Errorf("%s: expected prepare() stage from patch table", spec.Name)
		}
		if !patched && hasPrepare {
			t.Errorf("%s: unexpected prepare() stage", spec.Name)
		}
	}
}

func TestSynthesizeMetaDeclaresOnly(t *testing.T) {
	spec := PackageSpec{
		Name:      "xlibre-drivers",
		Tier:      TierMeta,
		Artifacts: []string{"xlibre-drivers"},
		Depends:   []string{"xlibre-server", "xf86-video-dummy"},
	}
	rec := Synthesize(spec, "25.0.0.9", "1")
	if strings.Contains(rec.Text, "build()") {
		t.Error("meta recipe must not contain a build stage")
	}
	if !strings.Contains(rec.Text, "'xf86-video-dummy'") {
		t.Error("meta recipe missing declared dependency")
	}
	if len(rec.MakeDepends) != 0 {
		t.Errorf("meta recipe should have no makedepends, got %v", rec.MakeDepends)
	}
}

func TestAllDependsDeduplicates(t *testing.T) {
	rec := Recipe{
		Depends:     []string{"pixman", "libdrm", "pixman"},
		MakeDepends: []string{"libdrm", "meson"},
	}
	got := rec.AllDepends()
	want := []string{"libdrm", "meson", "pixman"}
	if len(got) != len(want) {
		t.Fatalf("AllDepends = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AllDepends = %v, want %v", got, want)
		}
	}
}

func TestAllDependsOrderIndependent(t *testing.T) {
	a := Recipe{Depends: []string{"b", "a"}, MakeDepends: []string{"c"}}
	b := Recipe{Depends: []string{"c", "b"}, MakeDepends: []string{"a"}}
	ga, gb := a.AllDepends(), b.AllDepends()
	if len(ga) != len(gb) {
		t.Fatalf("union size differs: %v vs %v", ga, gb)
	}
	for i := range ga {
		if ga[i] != gb[i] {
			t.Fatalf("union differs: %v vs %v", ga, gb)
		}
	}
}

func TestRenderEdits(t *testing.T) {
	edits := driverPatches["xf86-video-intel"]
	if len(edits) == 0 {
		t.Fatal("patch table lost its only entry")
	}
	lines := renderEdits(edits)
	if len(lines) != len(edits) {
		t.Fatalf("rendered %d lines for %d edits", len(lines), len(edits))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "sed -i") {
			t.Errorf("unexpected edit rendering: %s", line)
		}
	}
}

// The source lines each intel fixup is aimed at, keyed by the edit's Match.
var intelSourceLines = map[string]string{
	`BoxEmpty`: `	if (BoxEmpty(&box))`,
	`#define ARRAY_SIZE(a) (sizeof(a) / sizeof(a[0]))`: `#define ARRAY_SIZE(a) (sizeof(a) / sizeof(a[0]))`,
	`#include "intel_driver.h"`:                        `#include "intel_driver.h"`,
	`^static void intel_check_chipset_option`:          `static void intel_check_chipset_option(ScrnInfoPtr scrn)`,
	`^static Bool intel_pci_probe_compat`:              `static Bool intel_pci_probe_compat(DriverPtr driver,`,
}

// renderedPattern cuts the match pattern out of a rendered sed command,
// honoring backslash escapes up to the closing delimiter.
func renderedPattern(t *testing.T, line string, op editOp) string {
	t.Helper()
	var marker string
	switch op {
	case editReplace:
		marker = `'s|`
	case editInsertAfter:
		marker = `'0,\|`
	case editCommentOutRoutine:
		marker = `'\|`
	}
	idx := strings.Index(line, marker)
	if idx < 0 {
		t.Fatalf("rendered command %q lacks marker %q", line, marker)
	}
	var b strings.Builder
	escaped := false
	for _, r := range line[idx+len(marker):] {
		if escaped {
			b.WriteRune('\\')
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if r == '|' {
			return b.String()
		}
		b.WriteRune(r)
	}
	t.Fatalf("unterminated pattern in %q", line)
	return ""
}

// literalPatternRegexp converts an escaped-literal sed pattern into a Go
// regexp. A metacharacter left unescaped means the pattern would be
// interpreted as a regular expression instead of the literal source text,
// which is exactly the failure mode this guards against.
func literalPatternRegexp(t *testing.T, pattern string) *regexp.Regexp {
	t.Helper()
	var literal strings.Builder
	escaped := false
	for _, r := range pattern {
		if escaped {
			literal.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if strings.ContainsRune(`.[]*^$|`, r) {
			t.Fatalf("unescaped metacharacter %q in pattern %q", r, pattern)
		}
		literal.WriteRune(r)
	}
	return regexp.MustCompile(regexp.QuoteMeta(literal.String()))
}

// Every rendered edit must match the source text it targets. In particular
// the ARRAY_SIZE replacement carries brackets that sed would otherwise read
// as a character class, silently leaving the file untouched.
func TestRenderedEditsMatchIntelSources(t *testing.T) {
	for _, e := range driverPatches["xf86-video-intel"] {
		line := renderEdits([]sourceEdit{e})[0]
		pattern := renderedPattern(t, line, e.Op)
		target, ok := intelSourceLines[e.Match]
		if !ok {
			t.Fatalf("no sample source line for edit %q", e.Match)
		}
		if e.Op == editCommentOutRoutine {
			re, err := regexp.Compile(pattern)
			if err != nil {
				t.Fatalf("routine address %q: %v", pattern, err)
			}
			if !re.MatchString(target) {
				t.Errorf("routine address %q does not match %q", pattern, target)
			}
			continue
		}
		if !literalPatternRegexp(t, pattern).MatchString(target) {
			t.Errorf("rendered pattern %q does not match %q", pattern, target)
		}
	}
}

func TestSedLiteralEscapesMetacharacters(t *testing.T) {
	cases := map[string]string{
		`sizeof(a[0])`: `sizeof(a\[0\])`,
		`a.b*c`:        `a\.b\*c`,
		`x|y`:          `x\|y`,
		`plain`:        `plain`,
	}
	for in, want := range cases {
		if got := sedLiteral(in); got != want {
			t.Errorf("sedLiteral(%q) = %q, want %q", in, got, want)
		}
	}
	if got := sedReplacement(`a & b|c`); got != `a \& b\|c` {
		t.Errorf("sedReplacement = %q", got)
	}
}
