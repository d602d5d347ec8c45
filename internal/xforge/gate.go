package xforge

import (
	"os"
	"os/exec"
	"path/filepath"
)

// HostDB answers whether a package name is installed in the host package
// database. An interface so tests can substitute a fake.
type HostDB interface {
	Installed(name string) bool
}

// pacmanDB queries the real host database.
type pacmanDB struct{}

func (pacmanDB) Installed(name string) bool {
	return exec.Command("pacman", "-Qq", name).Run() == nil
}

// Gate is the already-done check that makes re-invocation safe. A spec is
// done only when every produced artifact exists in the repository directory
// AND is reported installed; partial artifact sets never satisfy it.
type Gate struct {
	RepoDir string
	Version string
	Release string
	Arch    string
	DB      HostDB
}

// Done reports whether spec needs no work this run. A missing repository
// directory just means "not done", never an error. No side effects.
func (g *Gate) Done(spec PackageSpec) bool {
	for _, artifact := range spec.Artifacts {
		path := filepath.Join(g.RepoDir, artifactFileName(artifact, g.Version, g.Release, g.Arch))
		if _, err := os.Stat(path); err != nil {
			return false
		}
		if !g.DB.Installed(artifact) {
			return false
		}
	}
	return len(spec.Artifacts) > 0
}
