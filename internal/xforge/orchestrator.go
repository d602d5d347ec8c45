package xforge

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// doneChecker is what the orchestrator needs from the idempotency gate.
type doneChecker interface {
	Done(spec PackageSpec) bool
}

// Orchestrator walks the package set in tier order: the foundational
// package first (its failure is fatal, everything depends on it), the
// drivers in declaration order, the meta package strictly last. One catalog
// pass runs at the end regardless of how many individual packages failed.
type Orchestrator struct {
	Specs   []PackageSpec
	Gate    doneChecker
	Ledger  *Ledger
	Build   func(ctx context.Context, spec PackageSpec) (Outcome, error)
	Catalog func(ctx context.Context) error

	// Progress enables the driver-loop progress bar (off in tests and
	// when stdout is not a terminal).
	Progress bool

	outcomes map[string]Outcome
}

// Run processes the whole set. It returns an error only for fatal
// conditions: a foundational-package failure or a catalog failure.
// Per-package failures are recorded and skipped over.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.outcomes = make(map[string]Outcome, len(o.Specs))

	var foundation []PackageSpec
	var drivers []PackageSpec
	var metas []PackageSpec
	for _, spec := range o.Specs {
		switch spec.Tier {
		case TierFoundation:
			foundation = append(foundation, spec)
		case TierMeta:
			metas = append(metas, spec)
		default:
			drivers = append(drivers, spec)
		}
	}

	// Foundation first: every other package builds against it.
	for _, spec := range foundation {
		outcome, err := o.process(ctx, spec)
		o.outcomes[spec.Name] = outcome
		if outcome == OutcomeFailed {
			return fmt.Errorf("foundational package %s failed: %w", spec.Name, err)
		}
	}

	var bar *progressbar.ProgressBar
	if o.Progress && term.IsTerminal(int(os.Stdout.Fd())) {
		bar = progressbar.NewOptions(len(drivers),
			progressbar.OptionSetDescription("drivers"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionShowCount(),
		)
	}

	for _, spec := range drivers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome, _ := o.process(ctx, spec)
		o.outcomes[spec.Name] = outcome
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	// Meta last: it must not run until every other package has reached a
	// terminal outcome for this run.
	for _, spec := range metas {
		outcome, _ := o.process(ctx, spec)
		o.outcomes[spec.Name] = outcome
	}

	// Exactly one catalog pass; its failure is fatal even though
	// individual package failures are not.
	o.Ledger.Logf("cataloging repository")
	if err := o.Catalog(ctx); err != nil {
		return fmt.Errorf("%w: %v", errCatalogFailed, err)
	}

	o.printSummary()
	return nil
}

// process takes one spec through the gate and, when needed, the driver.
func (o *Orchestrator) process(ctx context.Context, spec PackageSpec) (Outcome, error) {
	if o.Gate.Done(spec) {
		colArrow.Print("-> ")
		colInfo.Printf("%s already built and installed, skipping\n", spec.Name)
		o.Ledger.Record(spec.Name, OutcomeSkipped)
		return OutcomeSkipped, nil
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Building %s (%s)\n", spec.Name, spec.Tier)
	return o.Build(ctx, spec)
}

// Outcomes returns the per-package terminal states of the last Run.
func (o *Orchestrator) Outcomes() map[string]Outcome {
	return o.outcomes
}

func (o *Orchestrator) printSummary() {
	var skipped, succeeded, failed int
	for _, outcome := range o.outcomes {
		switch outcome {
		case OutcomeSkipped:
			skipped++
		case OutcomeSucceeded:
			succeeded++
		case OutcomeFailed:
			failed++
		}
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Run complete: %d built, %d skipped, %d failed\n", succeeded, skipped, failed)
	if failed > 0 {
		colArrow.Print("-> ")
		colWarn.Println("Inspect failed.log and re-run; finished packages will be skipped.")
	}
}
