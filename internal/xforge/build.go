package xforge

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// depInstaller is what the driver needs from the resolver.
type depInstaller interface {
	Install(ctx context.Context, rec *Recipe) error
}

// Driver runs the whole build-and-install sequence for one package: fetch
// or refresh the source tree, synthesize and persist the recipe, install
// its dependencies, run makepkg and relocate the produced archives into the
// repository directory. External tool invocations are function fields so
// tests can substitute fakes.
type Driver struct {
	PkgRoot string
	RepoDir string
	Version string
	Release string
	Arch    string
	Ledger  *Ledger
	Deps    depInstaller

	Fetch   func(ctx context.Context, spec PackageSpec, workDir string) error
	Makepkg func(ctx context.Context, workDir string) error
}

func NewDriver(pkgRoot, repoDir, version, release, arch string, led *Ledger, deps depInstaller, userExec *Executor) *Driver {
	d := &Driver{
		PkgRoot: pkgRoot,
		RepoDir: repoDir,
		Version: version,
		Release: release,
		Arch:    arch,
		Ledger:  led,
		Deps:    deps,
	}
	d.Fetch = func(ctx context.Context, spec PackageSpec, workDir string) error {
		return fetchSource(ctx, userExec, spec, workDir)
	}
	d.Makepkg = func(ctx context.Context, workDir string) error {
		// -i installs the freshly built archives into the host database;
		// the critical flag keeps the signal handler from cancelling
		// mid-transaction.
		isCriticalAtomic.Store(1)
		defer isCriticalAtomic.Store(0)
		cmd := exec.CommandContext(ctx, "makepkg", "-fi", "--noconfirm")
		cmd.Dir = workDir
		return userExec.Run(cmd)
	}
	return d
}

// Build takes spec to a terminal outcome and returns the underlying cause
// on failure so the orchestrator can decide whether it is fatal. Exactly
// one ledger outcome entry is written per call.
func (d *Driver) Build(ctx context.Context, spec PackageSpec) (Outcome, error) {
	workDir := filepath.Join(d.PkgRoot, spec.Name)

	fail := func(err error) (Outcome, error) {
		d.Ledger.Logf("%s: %v", spec.Name, err)
		d.cleanTransient(workDir)
		d.Ledger.Record(spec.Name, OutcomeFailed)
		return OutcomeFailed, err
	}

	// 1. Source acquisition.
	d.Ledger.Logf("%s: fetching source", spec.Name)
	if err := d.Fetch(ctx, spec, workDir); err != nil {
		return fail(err)
	}

	// 2. Recipe synthesis and persistence.
	rec := Synthesize(spec, d.Version, d.Release)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fail(fmt.Errorf("%w: %s: %v", errNativeBuildFailed, spec.Name, err))
	}
	if err := os.WriteFile(filepath.Join(workDir, "PKGBUILD"), []byte(rec.Text), 0o644); err != nil {
		return fail(fmt.Errorf("%w: %s: %v", errNativeBuildFailed, spec.Name, err))
	}

	// 3. Dependency installation.
	d.Ledger.Logf("%s: installing %d dependencies", spec.Name, len(rec.AllDepends()))
	if err := d.Deps.Install(ctx, &rec); err != nil {
		return fail(err)
	}

	// 4. Native build-and-install step.
	d.Ledger.Logf("%s: running makepkg", spec.Name)
	if err := d.Makepkg(ctx, workDir); err != nil {
		return fail(fmt.Errorf("%w: %s: %v", errNativeBuildFailed, spec.Name, err))
	}

	// 5. Relocate every produced archive. A build that reported success
	// but produced no matching archive is itself a failure.
	if err := os.MkdirAll(d.RepoDir, 0o755); err != nil {
		return fail(fmt.Errorf("%w: %s: %v", errArtifactMissing, spec.Name, err))
	}
	for _, artifact := range spec.Artifacts {
		name := artifactFileName(artifact, d.Version, d.Release, d.Arch)
		src := filepath.Join(workDir, name)
		if _, err := os.Stat(src); err != nil {
			return fail(fmt.Errorf("%w: %s", errArtifactMissing, name))
		}
		if err := moveFile(src, filepath.Join(d.RepoDir, name)); err != nil {
			return fail(fmt.Errorf("%w: %s: %v", errArtifactMissing, name, err))
		}
		d.Ledger.Logf("%s: archived %s", spec.Name, name)
	}

	d.Ledger.Record(spec.Name, OutcomeSucceeded)
	return OutcomeSucceeded, nil
}

// cleanTransient discards build state a failed attempt may have left behind
// so the next run retries from a clean tree. The clone itself is kept.
func (d *Driver) cleanTransient(workDir string) {
	os.RemoveAll(filepath.Join(workDir, "pkg"))
	os.RemoveAll(filepath.Join(workDir, "src", "build"))
	for _, pattern := range []string{"*.pkg.tar.*", "*.log"} {
		matches, _ := filepath.Glob(filepath.Join(workDir, pattern))
		for _, m := range matches {
			os.Remove(m)
		}
	}
}

// moveFile renames src to dst, falling back to copy-and-delete when the
// repository lives on another filesystem.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
