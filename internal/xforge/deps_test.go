package xforge

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func newTestResolver(repoDir string, providers map[string]PackageSpec) (*Resolver, *[]string, *[][]string) {
	var feed []string
	var local [][]string
	r := &Resolver{
		Providers: providers,
		RepoDir:   repoDir,
		Version:   "25.0.0.9",
		Release:   "1",
		Arch:      "x86_64",
		FeedInstall: func(_ context.Context, name string) error {
			feed = append(feed, name)
			return nil
		},
		LocalInstall: func(_ context.Context, paths []string) error {
			local = append(local, paths)
			return nil
		},
	}
	return r, &feed, &local
}

func TestResolverDeduplicatesAcrossLists(t *testing.T) {
	r, feed, _ := newTestResolver(t.TempDir(), nil)
	rec := Recipe{
		Spec:        PackageSpec{Name: "xf86-video-vesa"},
		Depends:     []string{"pixman"},
		MakeDepends: []string{"pixman", "meson"},
	}
	if err := r.Install(context.Background(), &rec); err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, name := range *feed {
		if name == "pixman" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("pixman declared twice should install once, got %d attempts", count)
	}
}

func TestResolverLocalProviderInstallsAllArtifacts(t *testing.T) {
	repoDir := t.TempDir()
	server := PackageSpec{
		Name:      "xlibre-xserver",
		Tier:      TierFoundation,
		Artifacts: []string{"xlibre-server", "xlibre-server-common"},
	}
	providers := Providers([]PackageSpec{server})

	for _, artifact := range server.Artifacts {
		touchArtifact(t, repoDir, artifact)
	}

	r, feed, local := newTestResolver(repoDir, providers)
	rec := Recipe{
		Spec:    PackageSpec{Name: "xf86-video-vesa"},
		Depends: []string{"xlibre-server", "pixman"},
	}
	if err := r.Install(context.Background(), &rec); err != nil {
		t.Fatal(err)
	}

	if len(*local) != 1 {
		t.Fatalf("expected one local install call, got %d", len(*local))
	}
	if len((*local)[0]) != len(server.Artifacts) {
		t.Errorf("local install must cover every artifact of the provider, got %v", (*local)[0])
	}
	for _, name := range *feed {
		if name == "xlibre-server" {
			t.Error("locally provided dependency leaked to the upstream feed")
		}
	}
}

func TestResolverLocalProviderInstalledOnce(t *testing.T) {
	repoDir := t.TempDir()
	server := PackageSpec{
		Name:      "xlibre-xserver",
		Tier:      TierFoundation,
		Artifacts: []string{"xlibre-server", "xlibre-server-devel"},
	}
	providers := Providers([]PackageSpec{server})
	for _, artifact := range server.Artifacts {
		touchArtifact(t, repoDir, artifact)
	}

	r, _, local := newTestResolver(repoDir, providers)
	// Both names resolve to the same provider spec.
	rec := Recipe{
		Spec:        PackageSpec{Name: "xf86-video-vesa"},
		Depends:     []string{"xlibre-server"},
		MakeDepends: []string{"xlibre-server-devel"},
	}
	if err := r.Install(context.Background(), &rec); err != nil {
		t.Fatal(err)
	}
	if len(*local) != 1 {
		t.Errorf("same provider referenced twice should install once, got %d calls", len(*local))
	}
}

func TestResolverMissingLocalArtifact(t *testing.T) {
	repoDir := t.TempDir()
	server := PackageSpec{
		Name:      "xlibre-xserver",
		Tier:      TierFoundation,
		Artifacts: []string{"xlibre-server", "xlibre-server-common"},
	}
	providers := Providers([]PackageSpec{server})
	// Only one of the two artifacts exists.
	touchArtifact(t, repoDir, "xlibre-server")

	r, _, local := newTestResolver(repoDir, providers)
	rec := Recipe{
		Spec:    PackageSpec{Name: "xf86-video-vesa"},
		Depends: []string{"xlibre-server"},
	}
	err := r.Install(context.Background(), &rec)
	if !errors.Is(err, errMissingLocalArtifact) {
		t.Fatalf("expected errMissingLocalArtifact, got %v", err)
	}
	if len(*local) != 0 {
		t.Error("no local install may happen when an artifact is missing")
	}
}

func TestResolverFailsFast(t *testing.T) {
	var attempts []string
	r := &Resolver{
		RepoDir: t.TempDir(),
		Version: "25.0.0.9", Release: "1", Arch: "x86_64",
		FeedInstall: func(_ context.Context, name string) error {
			attempts = append(attempts, name)
			if name == "libdrm" {
				return fmt.Errorf("no mirror")
			}
			return nil
		},
		LocalInstall: func(_ context.Context, _ []string) error { return nil },
	}
	rec := Recipe{
		Spec:    PackageSpec{Name: "xf86-video-vesa"},
		Depends: []string{"libdrm", "pixman", "zlib"},
	}
	err := r.Install(context.Background(), &rec)
	if !errors.Is(err, errDepInstallFailed) {
		t.Fatalf("expected errDepInstallFailed, got %v", err)
	}
	// AllDepends is sorted, so libdrm is attempted first and nothing after.
	if len(attempts) != 1 {
		t.Errorf("expected fail-fast after first unsatisfiable name, attempts = %v", attempts)
	}
}
