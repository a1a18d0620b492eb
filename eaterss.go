package eaterss

import (
	"flag"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

const Version = "0.1.0"

// Run parses args, then hands the terminal to the TUI. The optional single
// positional argument is a feed URL to load on startup.
func Run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("eaterss", flag.ContinueOnError)
	fs.SetOutput(stdout)
	version := fs.Bool("version", false, "print version and exit")
	fs.BoolVar(version, "v", false, "print version and exit (shorthand)")
	fs.Usage = func() {
		fmt.Fprintln(stdout, "Usage: eaterss [flags] [feed-url]")
		fmt.Fprintln(stdout, "A TUI RSS feed reader. Browse and read RSS feeds in your terminal.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version {
		fmt.Fprintln(stdout, "eaterss "+Version)
		return nil
	}
	if fs.NArg() > 1 {
		return fmt.Errorf("expected at most one feed URL, got %d arguments", fs.NArg())
	}
	app := NewApp(NewFetcher(), fs.Arg(0))
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
