package xforge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// fetchSource clones the spec's upstream repository into <workDir>/src on
// the first run and fast-forwards it in place afterwards. Metadata-only
// specs have no URL and nothing to fetch.
func fetchSource(ctx context.Context, userExec *Executor, spec PackageSpec, workDir string) error {
	if spec.URL == "" {
		return nil
	}

	srcDir := filepath.Join(workDir, "src")
	if _, err := os.Stat(filepath.Join(srcDir, ".git")); err == nil {
		debugf("refreshing %s in %s\n", spec.Name, srcDir)
		cmd := exec.CommandContext(ctx, "git", "-C", srcDir, "pull", "--ff-only")
		if err := userExec.Run(cmd); err != nil {
			return fmt.Errorf("%w: %s: %v", errSourceFetchFailed, spec.Name, err)
		}
		return nil
	}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", errSourceFetchFailed, spec.Name, err)
	}
	debugf("cloning %s -> %s\n", spec.URL, srcDir)
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", spec.URL, srcDir)
	if err := userExec.Run(cmd); err != nil {
		return fmt.Errorf("%w: %s: %v", errSourceFetchFailed, spec.Name, err)
	}
	return nil
}
