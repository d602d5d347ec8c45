package xforge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Resolver ensures every dependency a recipe declares is present on the
// build host. Dependencies provided by another spec of this run are
// satisfied from the local repository; everything else comes from the
// standard package feed.
//
// Known limitation, inherited from pacman itself: a failed call is not
// rolled back, so a run that dies mid-install can leave dependencies of a
// never-built package behind.
type Resolver struct {
	Providers map[string]PackageSpec
	RepoDir   string
	Version   string
	Release   string
	Arch      string

	// Injectable installers; nil fields fall back to pacman.
	FeedInstall  func(ctx context.Context, name string) error
	LocalInstall func(ctx context.Context, paths []string) error
}

func NewResolver(providers map[string]PackageSpec, repoDir, version, release, arch string, root *Executor) *Resolver {
	r := &Resolver{
		Providers: providers,
		RepoDir:   repoDir,
		Version:   version,
		Release:   release,
		Arch:      arch,
	}
	r.FeedInstall = func(ctx context.Context, name string) error {
		// --needed turns "already satisfied" into a no-op success.
		cmd := exec.CommandContext(ctx, "pacman", "-S", "--needed", "--noconfirm", name)
		return root.Run(cmd)
	}
	r.LocalInstall = func(ctx context.Context, paths []string) error {
		args := append([]string{"-U", "--needed", "--noconfirm"}, paths...)
		cmd := exec.CommandContext(ctx, "pacman", args...)
		return root.Run(cmd)
	}
	return r
}

// Install satisfies the union of the recipe's runtime and build-time
// dependency lists, order-independent and de-duplicated. Fails fast on the
// first unsatisfiable name.
func (r *Resolver) Install(ctx context.Context, rec *Recipe) error {
	installedLocal := make(map[string]bool)

	for _, name := range rec.AllDepends() {
		spec, local := r.Providers[name]
		if !local {
			if err := r.FeedInstall(ctx, name); err != nil {
				return fmt.Errorf("%w: %s: %v", errDepInstallFailed, name, err)
			}
			continue
		}

		// Locally-produced dependency: install ALL artifacts of the
		// providing spec from the repository directory, never from the
		// upstream feed.
		if installedLocal[spec.Name] {
			continue
		}
		paths := make([]string, 0, len(spec.Artifacts))
		for _, artifact := range spec.Artifacts {
			path := filepath.Join(r.RepoDir, artifactFileName(artifact, r.Version, r.Release, r.Arch))
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("%w: %s (needed by %s via %s)",
					errMissingLocalArtifact, filepath.Base(path), rec.Spec.Name, name)
			}
			paths = append(paths, path)
		}
		if err := r.LocalInstall(ctx, paths); err != nil {
			return fmt.Errorf("%w: %s: %v", errDepInstallFailed, spec.Name, err)
		}
		installedLocal[spec.Name] = true
	}
	return nil
}
