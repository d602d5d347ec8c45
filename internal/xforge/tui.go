package xforge

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// The log viewer tabs through the activity log and the two outcome ledgers.
var tuiLogNames = []string{"activity.log", "succeeded.log", "failed.log"}

type tuiState struct {
	app       *tview.Application
	header    *tview.TextView
	body      *tview.TextView
	footer    *tview.TextView
	activeIdx int
}

// runTUI shows the run logs in a scrollable viewer. Returns the process
// exit code.
func runTUI() int {
	state := &tuiState{app: tview.NewApplication()}

	state.header = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetTextAlign(tview.AlignLeft)
	state.header.SetBorder(true)
	state.header.SetTitle("xforge Log Viewer")

	state.body = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetScrollable(true).
		SetChangedFunc(func() {
			state.app.Draw()
		})
	state.body.SetBorder(true)

	state.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetTextAlign(tview.AlignLeft)
	state.footer.SetBorder(true)
	state.footer.SetText("[yellow]←/→[-] switch log   [yellow]↑/↓[-] scroll   [yellow]Home/End[-] jump   [yellow]r[-] reload   [yellow]q/Esc[-] quit")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(state.header, 3, 0, false).
		AddItem(state.body, 0, 1, true).
		AddItem(state.footer, 3, 0, false)

	flex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc, tcell.KeyCtrlQ:
			state.app.Stop()
			return nil
		case tcell.KeyLeft:
			state.activeIdx--
			if state.activeIdx < 0 {
				state.activeIdx = len(tuiLogNames) - 1
			}
			state.reload()
			return nil
		case tcell.KeyRight:
			state.activeIdx++
			if state.activeIdx >= len(tuiLogNames) {
				state.activeIdx = 0
			}
			state.reload()
			return nil
		case tcell.KeyHome:
			state.body.ScrollToBeginning()
			return nil
		case tcell.KeyEnd:
			state.body.ScrollToEnd()
			return nil
		}
		switch event.Rune() {
		case 'q':
			state.app.Stop()
			return nil
		case 'r':
			state.reload()
			return nil
		}
		return event
	})

	state.reload()

	if err := state.app.SetRoot(flex, true).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "log viewer error: %v\n", err)
		return 1
	}
	return 0
}

func (s *tuiState) reload() {
	name := tuiLogNames[s.activeIdx]
	path := filepath.Join(LogDir, name)

	var tabs string
	for i, n := range tuiLogNames {
		if i == s.activeIdx {
			tabs += fmt.Sprintf("[black:yellow] %s [-:-] ", n)
		} else {
			tabs += fmt.Sprintf(" %s  ", n)
		}
	}
	s.header.SetText(tabs)

	data, err := os.ReadFile(path)
	switch {
	case err != nil:
		s.body.SetText(fmt.Sprintf("[red]no %s yet (%v)[-]", name, err))
	case len(data) == 0:
		s.body.SetText(fmt.Sprintf("[gray]%s is empty as of %s[-]", name, time.Now().Format(time.Kitchen)))
	default:
		s.body.SetText(tview.Escape(string(data)))
		s.body.ScrollToEnd()
	}
}
