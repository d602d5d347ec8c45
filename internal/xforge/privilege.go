package xforge

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// requiredTools must all be on PATH before any package work starts.
var requiredTools = []string{"git", "makepkg", "pacman", "repo-add"}

// checkTools verifies every external tool the run will invoke exists.
func checkTools() error {
	for _, tool := range requiredTools {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%w: %s", errToolMissing, tool)
		}
	}
	return nil
}

// checkPrivilege verifies the invoking account can elevate without a
// password. makepkg refuses to run as root, so the run itself must stay
// unprivileged and rely on sudo for pacman install/remove operations.
func checkPrivilege() error {
	if os.Geteuid() == 0 {
		return fmt.Errorf("%w: must run as a non-privileged user (makepkg refuses root)", errPrivilegeMissing)
	}

	cmd := exec.Command("sudo", "-n", "true")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: configure a passwordless sudo rule for pacman", errPrivilegeMissing)
	}
	return nil
}
