package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"cardfetch/pkg/api"
	"cardfetch/pkg/controller"
	"cardfetch/pkg/render"
)

// consoleView renders controller updates for the terminal: messages and
// progress go to stderr, and the card list is written as an HTML page
// whenever a target file is configured.
type consoleView struct {
	stdout   io.Writer
	stderr   io.Writer
	htmlPath string
	renderer *render.Renderer

	lastPercent int
}

func newConsoleView(htmlPath string) *consoleView {
	return &consoleView{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		htmlPath:    htmlPath,
		renderer:    render.New(),
		lastPercent: -1,
	}
}

func (v *consoleView) ReplaceList(listHTML string) {
	if v.htmlPath == "" {
		return
	}
	page, err := v.renderer.Page("Card Results", listHTML)
	if err != nil {
		fmt.Fprintf(v.stderr, "render page: %v\n", err)
		return
	}
	if err := os.WriteFile(v.htmlPath, []byte(page), 0o644); err != nil {
		fmt.Fprintf(v.stderr, "write %s: %v\n", v.htmlPath, err)
	}
}

func (v *consoleView) UpdateProgress(p controller.Progress) {
	if !p.Active || p.Total == 0 {
		return
	}
	percent := int(p.Percent())
	if percent == v.lastPercent {
		return
	}
	v.lastPercent = percent
	fmt.Fprintf(v.stderr, "fetched %d/%d (%d%%)\n", p.Fetched, p.Total, percent)
}

func (v *consoleView) Notice(msg string) { fmt.Fprintln(v.stderr, msg) }
func (v *consoleView) Warn(msg string)   { fmt.Fprintln(v.stderr, "warning: "+msg) }
func (v *consoleView) Error(msg string)  { fmt.Fprintln(v.stderr, "error: "+msg) }

// printRecords writes a plain-text summary of the card list.
func printRecords(w io.Writer, records []api.CardRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no cards")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tTYPE\tSET")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Status, r.TypeLine, r.SetName)
	}
	tw.Flush()
}
