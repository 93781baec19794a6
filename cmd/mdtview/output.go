// ABOUTME: Report and diagram output for the CLI: stdout printing, --*-out files and the fetch/diagram commands.
// ABOUTME: Markdown comes from report.ToMarkdown, HTML from report.ToHTML and JSON from the report's pretty form.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389-research/mdtview/config"
	"github.com/2389-research/mdtview/diagram"
	"github.com/2389-research/mdtview/dot/validator"
	"github.com/2389-research/mdtview/report"
	"github.com/2389-research/mdtview/tui"
	"github.com/2389-research/mdtview/workflow"
)

// outputs are the files a report is written to.
type outputs struct {
	markdown string
	html     string
	json     string
}

func (o outputs) any() bool {
	return o.markdown != "" || o.html != "" || o.json != ""
}

// write saves r to every configured file and returns the paths written.
func (o outputs) write(r *report.Report) ([]string, error) {
	md := report.ToMarkdown(r)
	var written []string

	if o.markdown != "" {
		if err := writeFile(o.markdown, md); err != nil {
			return written, err
		}
		written = append(written, o.markdown)
	}
	if o.html != "" {
		page, err := report.ToHTML(reportTitle(r), md)
		if err != nil {
			return written, fmt.Errorf("render html: %w", err)
		}
		if err := writeFile(o.html, page); err != nil {
			return written, err
		}
		written = append(written, o.html)
	}
	if o.json != "" {
		if err := writeFile(o.json, r.PrettyJSON()+"\n"); err != nil {
			return written, err
		}
		written = append(written, o.json)
	}
	return written, nil
}

// saveFunc is what the TUI's save key calls. Without configured files the
// report goes to a Markdown file named after the patient in the working directory.
func (o outputs) saveFunc() tui.SaveFunc {
	return func(r *report.Report) ([]string, error) {
		if o.any() {
			return o.write(r)
		}
		return outputs{markdown: defaultReportName(r)}.write(r)
	}
}

func defaultReportName(r *report.Report) string {
	id := r.PatientID()
	if id == "" {
		id = "unknown"
	}
	id = strings.Map(func(c rune) rune {
		if c == '/' || c == '\\' || c == ' ' {
			return '_'
		}
		return c
	}, id)
	return "mdt-report-" + id + ".md"
}

func reportTitle(r *report.Report) string {
	if id := r.PatientID(); id != "" {
		return "MDT Report for Patient " + id
	}
	return "MDT Report"
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// printReport writes r to w as Markdown, JSON or both.
func printReport(w io.Writer, r *report.Report, format string) {
	switch format {
	case config.FormatJSON:
		fmt.Fprintln(w, r.PrettyJSON())
	case config.FormatBoth:
		fmt.Fprint(w, report.ToMarkdown(r))
		fmt.Fprintln(w)
		fmt.Fprintln(w, r.PrettyJSON())
	default:
		fmt.Fprint(w, report.ToMarkdown(r))
	}
}

// fetch retrieves a report directly, falling back to the latest-report endpoint.
func fetch(ctx context.Context, w io.Writer, o *options, cfg config.Config, runID string) error {
	closer, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	r, err := newClient(cfg).FetchReport(ctx, runID, fetchPolicy(cfg))
	if err != nil {
		return fmt.Errorf("fetch report for %s: %w", runID, err)
	}
	printReport(w, r, cfg.Format)
	out := outputs{markdown: o.markdownOut, html: o.htmlOut, json: o.jsonOut}
	if !out.any() {
		return nil
	}
	paths, err := out.write(r)
	for _, p := range paths {
		fmt.Fprintf(os.Stderr, "wrote %s\n", p)
	}
	return err
}

// printDiagram prints (or writes) the idle workflow diagram.
func printDiagram(ctx context.Context, w io.Writer, o *options, cfg config.Config) error {
	snap := workflow.NewTracker().Snapshot()
	diags := validator.Lint(diagram.Build(snap))
	for _, d := range diags {
		log.Printf("diagram event=lint severity=%s rule=%s message=%q", d.Severity, d.Rule, d.Message)
	}
	for _, d := range diags {
		if d.Severity == "error" {
			return fmt.Errorf("workflow diagram failed lint: %s", d)
		}
	}
	if o.diagramOut != "" {
		return writeDiagram(ctx, cfg.DiagramFormat, snap, o.diagramOut)
	}
	res := <-diagram.NewRenderer(nil, cfg.DiagramFormat).Render(ctx, snap)
	if res.Err != nil {
		fmt.Fprint(w, res.Fallback())
		return res.Err
	}
	_, err := w.Write(res.Output)
	return err
}

// writeDiagram renders snap to path. When rendering fails the DOT source is
// written instead and the render error returned.
func writeDiagram(ctx context.Context, format string, snap workflow.Snapshot, path string) error {
	res := <-diagram.NewRenderer(nil, format).Render(ctx, snap)
	if res.Err != nil {
		if err := writeFile(path, res.Fallback()); err != nil {
			return err
		}
		return fmt.Errorf("render %s diagram: %w", format, res.Err)
	}
	return writeFile(path, string(res.Output))
}
