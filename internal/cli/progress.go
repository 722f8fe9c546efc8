package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// runStep runs fn behind a spinner on stderr and reports the outcome with
// a check mark. fn receives the writer for Docker progress output: stderr
// in verbose mode, nil otherwise. JSON output and non-terminal stderr get
// neither spinner nor check marks.
func runStep(title string, fn func(progress io.Writer) error) error {
	if verbose {
		logger.Info(title + "...")
		return fn(os.Stderr)
	}
	if jsonOutput || !term.IsTerminal(int(os.Stderr.Fd())) {
		return fn(nil)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + title + "..."
	s.Start()
	err := fn(nil)
	s.Stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.New(color.FgRed).Sprint("✗"), title)
		return err
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", color.New(color.FgGreen).Sprint("✓"), title)
	return nil
}
