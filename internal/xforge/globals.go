package xforge

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/gookit/color"
)

// isCriticalAtomic is 1 while a package is being installed into the host
// database. The signal handler refuses to cancel during that window.
var isCriticalAtomic atomic.Int32

// Global variables
var (
	BaseDir    string
	PkgRoot    string // per-package working trees (clone + PKGBUILD)
	RepoDir    string // local pacman repository (archives + db + index)
	LogDir     string
	RepoName   string
	Version    string // shared upstream version tag for the whole set
	Release    string
	Debug      bool
	ConfigFile = "/etc/xforge.conf"
	hostArch   = runtime.GOARCH
	version    = "dev"     // overridden at build time
	buildDate  = "unknown" // overridden at build time
	// Global executors (declared, to be assigned in Main)
	UserExec *Executor
	RootExec *Executor
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
)

// debugf prints debug messages when Debug is true
func debugf(format string, args ...any) {
	if Debug {
		fmt.Printf(format, args...)
	}
}
