package xforge

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"golang.org/x/sys/unix"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: xforge <command>")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Desc string
	}
	cmds := []cmdInfo{
		{"run, r", "Build the full XLibre package set (default)"},
		{"status, s", "Show succeeded/failed packages from previous runs"},
		{"index", "Re-catalog the local repository"},
		{"log", "TUI viewer for the run logs"},
		{"version, --version", "Version information"},
	}

	maxLen := 0
	for _, c := range cmds {
		if len(c.Cmd) > maxLen {
			maxLen = len(c.Cmd)
		}
	}
	for _, c := range cmds {
		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		fmt.Print(strings.Repeat(" ", maxLen-len(c.Cmd)+4))
		color.Info.Println(c.Desc)
	}
	fmt.Println()
}

// Main is the CLI entrypoint for cmd/xforge.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			select {
			case sig := <-sigs:
				if isCriticalAtomic.Load() == 1 {
					// A host-database transaction is running; a cancel
					// here would leave pacman's db half-written.
					colArrow.Print("\n-> ")
					colError.Println("Install transaction in progress. Press Ctrl+C AGAIN to force exit NOW.")
					select {
					case <-sigs:
						os.Exit(130)
					case <-time.After(5 * time.Second):
						continue
					case <-ctx.Done():
						return
					}
				}
				colArrow.Print("\n-> ")
				color.Danger.Printf("Received %v. Cancelling gracefully\n", sig)
				cancel()
				select {
				case <-sigs:
					os.Exit(130)
				case <-time.After(2 * time.Second):
					os.Exit(0)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	cfg, err := loadConfig(ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read %s: %v\n", ConfigFile, err)
	}
	initConfig(cfg)

	UserExec = NewExecutor(ctx)
	RootExec = &Executor{Context: ctx, ShouldRunAsRoot: true}

	cmd := "run"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "run", "r":
		if err := runAll(ctx); err != nil {
			colArrow.Print("-> ")
			colError.Printf("Fatal: %v\n", err)
			os.Exit(1)
		}
	case "status", "s":
		printStatus()
	case "index":
		if err := CatalogRepo(ctx, UserExec, RepoDir, RepoName); err != nil {
			colArrow.Print("-> ")
			colError.Printf("Fatal: %v\n", err)
			os.Exit(1)
		}
	case "log":
		os.Exit(runTUI())
	case "version", "--version":
		fmt.Printf("xforge %s (built %s)\n", version, buildDate)
	default:
		printHelp()
	}
}

// runAll wires the components together and drives the whole package set.
func runAll(ctx context.Context) error {
	if err := checkTools(); err != nil {
		return err
	}
	if err := checkPrivilege(); err != nil {
		return err
	}

	for _, dir := range []string{PkgRoot, RepoDir, LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	// Concurrent whole-orchestrator runs are not supported; hold an
	// exclusive lock for the duration.
	lock, err := acquireLock(filepath.Join(LogDir, "run.lock"))
	if err != nil {
		return err
	}
	defer lock.Close()

	led, err := OpenLedger(LogDir)
	if err != nil {
		return err
	}
	defer led.Close()

	arch := systemArch()
	specs := DefaultPackageSet()
	resolver := NewResolver(Providers(specs), RepoDir, Version, Release, arch, RootExec)
	driver := NewDriver(PkgRoot, RepoDir, Version, Release, arch, led, resolver, UserExec)

	orch := &Orchestrator{
		Specs:    specs,
		Gate:     &Gate{RepoDir: RepoDir, Version: Version, Release: Release, Arch: arch, DB: pacmanDB{}},
		Ledger:   led,
		Build:    driver.Build,
		Progress: true,
		Catalog: func(ctx context.Context) error {
			return CatalogRepo(ctx, UserExec, RepoDir, RepoName)
		},
	}

	led.Logf("run started (version %s, release %s, arch %s)", Version, Release, arch)
	err = orch.Run(ctx)
	if err != nil {
		led.Logf("run aborted: %v", err)
		return err
	}
	led.Logf("run finished")
	return nil
}

// acquireLock takes a non-blocking exclusive flock; a second concurrent run
// fails fast instead of interleaving pacman transactions.
func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("another xforge run is in progress (lock %s held)", path)
	}
	return f, nil
}

// printStatus dumps the two outcome ledgers.
func printStatus() {
	for _, entry := range []struct {
		file  string
		label string
	}{
		{"succeeded.log", "Succeeded"},
		{"failed.log", "Failed"},
	} {
		colArrow.Print("-> ")
		colSuccess.Printf("%s:\n", entry.label)
		data, err := os.ReadFile(filepath.Join(LogDir, entry.file))
		if err != nil || len(data) == 0 {
			colInfo.Println("  (none)")
			continue
		}
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			fmt.Println("  " + line)
		}
	}
}
