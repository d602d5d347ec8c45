package xforge

import "errors"

// Error taxonomy. Pre-flight and catalog errors abort the whole run;
// everything else is caught at the package boundary.
var (
	errToolMissing          = errors.New("required tool not found")
	errPrivilegeMissing     = errors.New("passwordless sudo not available")
	errSourceFetchFailed    = errors.New("source fetch failed")
	errDepInstallFailed     = errors.New("dependency install failed")
	errNativeBuildFailed    = errors.New("makepkg failed")
	errArtifactMissing      = errors.New("artifact missing after build")
	errCatalogFailed        = errors.New("repository catalog failed")
	errMissingLocalArtifact = errors.New("local artifact not present in repository")
)
