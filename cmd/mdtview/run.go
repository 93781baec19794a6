// ABOUTME: Runs one watched session in full-screen TUI, inline or plain line mode.
// ABOUTME: The UI, the controller and the optional metrics endpoint share an errgroup and one cancellation.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/2389-research/mdtview/client"
	"github.com/2389-research/mdtview/config"
	"github.com/2389-research/mdtview/diagram"
	"github.com/2389-research/mdtview/report"
	"github.com/2389-research/mdtview/session"
	"github.com/2389-research/mdtview/tui"
	"github.com/2389-research/mdtview/workflow"
)

// start says how a session begins: upload a case or attach to a run.
type start struct {
	caseFile *client.CaseFile
	runID    string
}

// readCaseFile loads and validates a case before anything is sent.
func readCaseFile(path string) (client.CaseFile, error) {
	cf, err := client.CaseFileFromPath(path)
	if err != nil {
		return cf, err
	}
	if err := client.ValidateCaseFile(cf.Name, cf.ContentType); err != nil {
		return cf, err
	}
	return cf, nil
}

// watch runs a session to completion in the selected output mode.
func watch(ctx context.Context, o *options, cfg config.Config, s start) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fullScreen := !o.plain && !o.inline
	closer, err := setupLogging(cfg, fullScreen)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	reg := prometheus.NewRegistry()
	metrics := session.NewMetrics(reg)
	backend := session.ClientBackend{Client: newClient(cfg)}
	out := outputs{markdown: o.markdownOut, html: o.htmlOut, json: o.jsonOut}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if o.metricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, o.metricsAddr, reg) })
	}

	g.Go(func() error {
		defer cancel()
		switch {
		case o.plain:
			return runPlain(gctx, os.Stdout, backend, cfg, metrics, s, out, o.diagramOut)
		case o.inline:
			return runInline(gctx, os.Stdout, backend, cfg, metrics, s, out, o.verbose)
		default:
			return runTUI(gctx, backend, cfg, metrics, s, out, o.diagramOut)
		}
	})

	return g.Wait()
}

// runTUI drives the full-screen application.
func runTUI(ctx context.Context, backend session.Backend, cfg config.Config, metrics *session.Metrics, s start, out outputs, diagramOut string) error {
	var program *tea.Program
	bridge := tui.NewEventBridge(func(msg tea.Msg) { program.Send(msg) })
	ctrl := session.New(backend, sessionConfig(cfg, metrics), bridge.HandleEvent)
	defer ctrl.Close()

	opts := tui.Options{
		Renderer: report.NewTerminalRenderer(cfg.Style),
		Save:     out.saveFunc(),
		Case:     s.caseFile,
		RunID:    s.runID,
	}
	if diagramOut != "" {
		opts.Diagrams = diagram.NewRenderer(nil, cfg.DiagramFormat)
		opts.DiagramOut = diagramOut
	}

	program = tea.NewProgram(tui.NewAppModel(ctx, ctrl, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}

	if r := ctrl.Report(); r != nil && out.any() {
		paths, err := out.write(r)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(os.Stderr, "wrote %s\n", p)
		}
	}
	return ctx.Err()
}

// runInline shows compact progress in the scrollback and prints the report at the end.
func runInline(ctx context.Context, w io.Writer, backend session.Backend, cfg config.Config, metrics *session.Metrics, s start, out outputs, verbose bool) error {
	var program *tea.Program
	bridge := tui.NewEventBridge(func(msg tea.Msg) { program.Send(msg) })
	ctrl := session.New(backend, sessionConfig(cfg, metrics), bridge.HandleEvent)
	defer ctrl.Close()

	model := tui.NewStreamModel(ctx, ctrl, tui.Options{Case: s.caseFile, RunID: s.runID}, verbose)
	results := model.ResultCh()
	program = tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}

	var res tui.StreamResult
	select {
	case res = <-results:
	default:
		return ctx.Err()
	}
	if res.Err != nil {
		return res.Err
	}
	return finishReport(w, res.Report, cfg.Format, out)
}

// runPlain prints one line per session event and the report at the end.
func runPlain(ctx context.Context, w io.Writer, backend session.Backend, cfg config.Config, metrics *session.Metrics, s start, out outputs, diagramOut string) error {
	finished := make(chan session.Finished, 1)
	printer := newLinePrinter(w)
	ctrl := session.New(backend, sessionConfig(cfg, metrics), func(e session.Event) {
		printer.handle(e)
		if f, ok := e.(session.Finished); ok {
			select {
			case finished <- f:
			default:
			}
		}
	})
	defer ctrl.Close()

	if s.caseFile != nil {
		if _, err := ctrl.Submit(ctx, *s.caseFile); err != nil {
			return err
		}
	} else {
		ctrl.Connect(s.runID)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-finished:
	}

	if diagramOut != "" {
		if err := writeDiagram(ctx, cfg.DiagramFormat, ctrl.Snapshot(), diagramOut); err != nil {
			return err
		}
	}
	return finishReport(w, ctrl.Report(), cfg.Format, out)
}

// finishReport prints r in format and writes any configured output files.
func finishReport(w io.Writer, r *report.Report, format string, out outputs) error {
	if r == nil {
		return errors.New("run finished without a report")
	}
	fmt.Fprintln(w)
	printReport(w, r, format)
	if !out.any() {
		return nil
	}
	paths, err := out.write(r)
	for _, p := range paths {
		fmt.Fprintf(os.Stderr, "wrote %s\n", p)
	}
	return err
}

// linePrinter renders session events as timestamped lines.
type linePrinter struct {
	w    io.Writer
	prev workflow.Snapshot
	now  func() time.Time
}

func newLinePrinter(w io.Writer) *linePrinter {
	return &linePrinter{w: w, prev: workflow.NewTracker().Snapshot(), now: time.Now}
}

// handle is called serially by the controller.
func (p *linePrinter) handle(e session.Event) {
	ts := p.now().Format("15:04:05")
	if ev, ok := e.(session.AgentsChanged); ok {
		for _, t := range tui.Diff(p.prev, ev.Snapshot) {
			fmt.Fprintf(p.w, "%s %s\n", ts, t.Text())
		}
		p.prev = ev.Snapshot
		return
	}
	if entry, ok := tui.DescribeEvent(e); ok {
		fmt.Fprintf(p.w, "%s %s\n", ts, entry.Text)
	}
}

// serveMetrics exposes reg until ctx ends.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("mdtview event=metrics_listen addr=%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
