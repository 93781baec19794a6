// ABOUTME: Controller owns one viewing session: submit, stream connection, reconnect backoff and report fallback.
// ABOUTME: All mutable state sits behind one mutex; goroutines and timers act only if their generation is current.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/mdtview/client"
	"github.com/2389-research/mdtview/report"
	"github.com/2389-research/mdtview/workflow"
)

// ErrBusy is returned by Submit while a run is being processed.
var ErrBusy = errors.New("a simulation is already processing")

// Config tunes a Controller. Zero fields take defaults.
type Config struct {
	Backoff       Backoff
	AutoFetch     AutoFetch
	FallbackDelay time.Duration
	FetchPolicy   client.FetchPolicy
	Clock         Clock
	Metrics       *Metrics
	SessionID     string
}

func (c Config) withDefaults() Config {
	if c.Backoff.MaxAttempts <= 0 || c.Backoff.BaseDelay <= 0 {
		c.Backoff = DefaultBackoff()
	}
	if c.AutoFetch.Attempts <= 0 || c.AutoFetch.Step <= 0 {
		c.AutoFetch = DefaultAutoFetch()
	}
	if c.FallbackDelay <= 0 {
		c.FallbackDelay = time.Second
	}
	if c.FetchPolicy.Attempts <= 0 {
		c.FetchPolicy = client.DefaultFetchPolicy()
	}
	if c.Clock == nil {
		c.Clock = RealClock{}
	}
	if c.SessionID == "" {
		c.SessionID = ulid.Make().String()
	}
	return c
}

// Controller drives one run at a time.
type Controller struct {
	backend  Backend
	cfg      Config
	observer Observer

	// emitMu serializes observer delivery so events arrive in queue order.
	emitMu sync.Mutex

	mu sync.Mutex
	// gen changes on Connect and Close; fetch timers and goroutines check it.
	gen uint64
	// connGen changes whenever a connection is opened or abandoned.
	connGen uint64

	runID       string
	state       State
	attempt     int
	lastEventID string
	cancel      context.CancelFunc

	backoffTimer Timer
	fetchTimer   Timer
	fetchCtx     context.Context
	fetchCancel  context.CancelFunc

	fetchInFlight   bool
	autoFetching    bool
	busy            bool
	reportReceived  bool
	coordinatorDone bool
	finished        bool

	tracker    *workflow.Tracker
	assembler  *report.Assembler
	lastReport *report.Report
	controls   Controls
	pending    []Event
}

// New creates an idle controller. observer may be nil.
func New(backend Backend, cfg Config, observer Observer) *Controller {
	c := &Controller{
		backend:   backend,
		cfg:       cfg.withDefaults(),
		observer:  observer,
		tracker:   workflow.NewTracker(),
		assembler: report.NewAssembler(),
		controls:  idleControls(),
	}
	// The tracker only calls back from Apply and ForceComplete, both run with c.mu held.
	c.tracker.OnChange(func(snap workflow.Snapshot) {
		c.emitLocked(AgentsChanged{Snapshot: snap})
	})
	return c
}

// SessionID identifies this controller in logs.
func (c *Controller) SessionID() string {
	return c.cfg.SessionID
}

// Backoff returns the reconnect schedule in use.
func (c *Controller) Backoff() Backoff {
	return c.cfg.Backoff
}

// State returns the connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RunID returns the current run id, "" before the first Connect.
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Attempt returns the current reconnect attempt, 0 while healthy.
func (c *Controller) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Controls returns the current affordance state.
func (c *Controller) Controls() Controls {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controls
}

// Snapshot returns the current agent states.
func (c *Controller) Snapshot() workflow.Snapshot {
	return c.tracker.Snapshot()
}

// Report returns the last delivered report, or nil.
func (c *Controller) Report() *report.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReport
}

// Submit validates and uploads f, then connects to the new run. Controls stay
// disabled until the run reaches a terminal state or submission fails.
func (c *Controller) Submit(ctx context.Context, f client.CaseFile) (string, error) {
	if err := client.ValidateCaseFile(f.Name, f.ContentType); err != nil {
		c.mu.Lock()
		c.noticeLocked(NoticeError, "Error: "+err.Error())
		c.mu.Unlock()
		c.flush()
		return "", err
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.busy = true
	c.updateControlsLocked()
	c.mu.Unlock()
	c.flush()

	runID, err := c.backend.Submit(ctx, f)
	if err != nil {
		c.mu.Lock()
		c.busy = false
		c.updateControlsLocked()
		c.noticeLocked(NoticeError, "Error: "+submitErrorText(err))
		c.mu.Unlock()
		c.flush()
		return "", err
	}

	c.mu.Lock()
	log.Printf("session event=submitted session=%s run_id=%s", c.cfg.SessionID, runID)
	c.emitLocked(Submitted{RunID: runID})
	c.connectLocked(runID)
	c.mu.Unlock()
	c.flush()
	return runID, nil
}

func submitErrorText(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return err.Error()
}

// Connect tears down any previous connection and pending timers, then opens
// the stream for runID.
func (c *Controller) Connect(runID string) {
	c.mu.Lock()
	c.connectLocked(runID)
	c.mu.Unlock()
	c.flush()
}

// Reconnect reopens the current run, resuming from the last event id.
func (c *Controller) Reconnect() {
	c.mu.Lock()
	if c.runID == "" {
		c.noticeLocked(NoticeWarn, "No run to reconnect to.")
	} else {
		c.connectLocked(c.runID)
	}
	c.mu.Unlock()
	c.flush()
}

// Close stops the connection and every pending timer.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopLocked()
	c.busy = false
	if c.state != StateIdle && c.state != StateClosed {
		c.setStateLocked(StateClosed, "Disconnected", nil)
	}
	c.updateControlsLocked()
	c.mu.Unlock()
	c.flush()
}

// FetchReport starts a direct fetch with the full fallback chain and returns
// at once. If both endpoints fail and no report was received, a synthetic
// report built from the agent states is delivered.
func (c *Controller) FetchReport() {
	c.mu.Lock()
	switch {
	case c.runID == "":
		c.noticeLocked(NoticeWarn, "No run to fetch a report for.")
	case c.fetchInFlight:
	default:
		c.startFallbackLocked()
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) connectLocked(runID string) {
	c.stopLocked()
	if runID != c.runID {
		dirty := c.tracker.Snapshot().Count(workflow.StateInactive) != len(workflow.Catalog())
		c.runID = runID
		c.lastEventID = ""
		c.reportReceived = false
		c.coordinatorDone = false
		c.lastReport = nil
		c.tracker.Reset()
		if dirty {
			c.emitLocked(AgentsChanged{Snapshot: c.tracker.Snapshot()})
		}
	}
	c.finished = false
	c.busy = true
	c.attempt = 0
	c.assembler.Reset()
	c.openLocked()
}

// stopLocked invalidates every goroutine and timer of the current run.
func (c *Controller) stopLocked() {
	c.gen++
	c.connGen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.backoffTimer != nil {
		c.backoffTimer.Stop()
		c.backoffTimer = nil
	}
	if c.fetchTimer != nil {
		c.fetchTimer.Stop()
		c.fetchTimer = nil
	}
	if c.fetchCancel != nil {
		c.fetchCancel()
		c.fetchCtx, c.fetchCancel = nil, nil
	}
	c.fetchInFlight = false
	c.autoFetching = false
}

func (c *Controller) openLocked() {
	c.connGen++
	gen := c.connGen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.cfg.Metrics.connect()
	c.setStateLocked(StateConnecting, "Connecting...", nil)
	log.Printf("session event=connect session=%s run_id=%s last_event_id=%q attempt=%d", c.cfg.SessionID, c.runID, c.lastEventID, c.attempt)
	go c.run(ctx, gen, c.runID, c.lastEventID)
}

func (c *Controller) run(ctx context.Context, gen uint64, runID, lastEventID string) {
	s, err := c.backend.OpenStream(ctx, runID, lastEventID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.streamEnded(gen, "", err)
		return
	}
	defer s.Close()

	if !c.opened(gen) {
		return
	}
	for {
		msg, err := s.Next()
		if err != nil {
			var de *client.DecodeError
			if errors.As(err, &de) {
				c.decodeFailed(gen, de)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			c.streamEnded(gen, s.LastEventID(), err)
			return
		}
		if !c.handle(gen, msg, s.LastEventID()) {
			return
		}
	}
}

func (c *Controller) opened(gen uint64) bool {
	c.mu.Lock()
	if gen != c.connGen {
		c.mu.Unlock()
		return false
	}
	c.attempt = 0
	c.setStateLocked(StateConnected, "Connected", nil)
	c.mu.Unlock()
	c.flush()
	return true
}

func (c *Controller) decodeFailed(gen uint64, de *client.DecodeError) {
	c.mu.Lock()
	if gen == c.connGen {
		log.Printf("session event=decode_failed session=%s type=%s err=%q raw=%q", c.cfg.SessionID, de.EventType, de.Err, de.Raw)
		c.cfg.Metrics.event("decode_error")
	}
	c.mu.Unlock()
}

// handle applies one message. It returns false when the connection should stop reading.
func (c *Controller) handle(gen uint64, msg client.StreamMessage, lastEventID string) bool {
	c.mu.Lock()
	if gen != c.connGen {
		c.mu.Unlock()
		return false
	}
	if lastEventID != "" {
		c.lastEventID = lastEventID
	}
	c.cfg.Metrics.event(msg.Kind.String())
	if msg.Legacy && msg.Kind != client.KindUnknown {
		log.Printf("session event=legacy_message session=%s type=%s kind=%s", c.cfg.SessionID, msg.EventType, msg.Kind)
	}

	keep := true
	switch msg.Kind {
	case client.KindStatusUpdate:
		c.applyStatusLocked(msg.Status)
	case client.KindReport:
		c.acceptReportLocked(msg.Report, "stream")
	case client.KindReportMetadata:
		if err := c.assembler.Begin(msg.Metadata.Chunks); err != nil {
			c.reportFailedLocked("chunks", err, "")
		} else {
			c.emitLocked(ChunkProgress{Received: 0, Total: msg.Metadata.Chunks})
		}
	case client.KindReportChunk:
		c.addChunkLocked(msg.Chunk)
	case client.KindComplete:
		c.completeLocked()
		keep = false
	case client.KindServerError:
		c.transportFailureLocked(fmt.Errorf("server error: %s", msg.Error))
		keep = false
	case client.KindPing:
	default:
		log.Printf("session event=unknown_message session=%s type=%s raw=%q", c.cfg.SessionID, msg.EventType, msg.Raw)
	}
	c.mu.Unlock()
	c.flush()
	return keep
}

func (c *Controller) streamEnded(gen uint64, lastEventID string, err error) {
	c.mu.Lock()
	if gen != c.connGen {
		c.mu.Unlock()
		return
	}
	if lastEventID != "" {
		c.lastEventID = lastEventID
	}
	switch {
	case errors.Is(err, io.EOF) && c.coordinatorDone:
		c.completeLocked()
	case errors.Is(err, io.EOF):
		c.transportFailureLocked(fmt.Errorf("stream closed before completion: %w", io.ErrUnexpectedEOF))
	default:
		c.transportFailureLocked(err)
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) transportFailureLocked(err error) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.connGen++
	c.attempt++
	maxAttempts := c.cfg.Backoff.MaxAttempts

	if c.cfg.Backoff.Exhausted(c.attempt) {
		log.Printf("session event=reconnect_exhausted session=%s run_id=%s attempts=%d err=%q", c.cfg.SessionID, c.runID, maxAttempts, err)
		c.busy = false
		c.setStateLocked(StateFailed, fmt.Sprintf("Connection failed after %d attempts", maxAttempts), err)
		c.noticeLocked(NoticeError, "Lost connection to the simulation stream.")
		if !c.reportReceived {
			c.scheduleFallbackLocked()
		}
		c.maybeFinishLocked()
		return
	}

	delay := c.cfg.Backoff.Delay(c.attempt)
	gen := c.connGen
	log.Printf("session event=reconnect session=%s run_id=%s attempt=%d delay=%s err=%q", c.cfg.SessionID, c.runID, c.attempt, delay, err)
	c.cfg.Metrics.reconnect()
	c.state = StateReconnecting
	c.cfg.Metrics.state(StateReconnecting)
	c.emitLocked(ConnectionChanged{
		RunID:   c.runID,
		State:   StateReconnecting,
		Text:    fmt.Sprintf("Reconnecting in %s... (%d/%d)", delay, c.attempt, maxAttempts),
		Attempt: c.attempt,
		Max:     maxAttempts,
		Delay:   delay,
		Err:     err,
	})
	c.updateControlsLocked()
	c.backoffTimer = c.cfg.Clock.AfterFunc(delay, func() { c.reconnect(gen) })
}

func (c *Controller) reconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.connGen || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.backoffTimer = nil
	c.openLocked()
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) applyStatusLocked(st *client.StatusUpdate) {
	c.tracker.Apply(st.AgentID, st.Status, st.Message)
	key, ok := workflow.NormalizeAgentID(st.AgentID)
	if ok && key == workflow.Coordinator && workflow.ParseStatusToken(st.Status) == workflow.StateComplete && !c.coordinatorDone {
		c.coordinatorDone = true
		c.noticeLocked(NoticeInfo, "Simulation finished.")
		c.startAutoFetchLocked()
	}
}

func (c *Controller) acceptReportLocked(raw []byte, source string) {
	r, err := report.Decode(raw)
	if err != nil {
		c.reportFailedLocked(source, err, string(raw))
		return
	}
	c.deliverLocked(r, source)
}

func (c *Controller) addChunkLocked(ch *client.ReportChunk) {
	r, err := c.assembler.Add(ch.Index, ch.Total, ch.Data)
	if err != nil {
		raw := ""
		var pe *report.ParseError
		if errors.As(err, &pe) {
			raw = pe.Raw
		}
		c.reportFailedLocked("chunks", err, raw)
		return
	}
	received, total := c.assembler.Progress()
	c.emitLocked(ChunkProgress{Received: received, Total: total})
	if r != nil {
		c.deliverLocked(r, "chunks")
	}
}

func (c *Controller) reportFailedLocked(source string, err error, raw string) {
	log.Printf("session event=report_failed session=%s run_id=%s source=%s err=%q", c.cfg.SessionID, c.runID, source, err)
	c.cfg.Metrics.report(source, "error")
	c.emitLocked(ReportFailed{Err: err, Raw: raw})
	if errors.Is(err, report.ErrMissingChunk) || errors.Is(err, report.ErrChunkTotalMismatch) {
		c.noticeLocked(NoticeError, "Report reassembly failed. Press f to fetch the report again.")
	}
}

func (c *Controller) deliverLocked(r *report.Report, source string) {
	if !r.Synthetic {
		c.reportReceived = true
		c.autoFetching = false
		if c.fetchTimer != nil {
			c.fetchTimer.Stop()
			c.fetchTimer = nil
		}
	}
	c.lastReport = r
	c.cfg.Metrics.report(source, "ok")
	log.Printf("session event=report_ready session=%s run_id=%s source=%s synthetic=%t", c.cfg.SessionID, c.runID, source, r.Synthetic)
	c.emitLocked(ReportReady{RunID: c.runID, Report: r, Source: source})
	c.maybeFinishLocked()
}

func (c *Controller) completeLocked() {
	c.tracker.ForceComplete()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.backoffTimer != nil {
		c.backoffTimer.Stop()
		c.backoffTimer = nil
	}
	c.connGen++
	c.busy = false
	log.Printf("session event=complete session=%s run_id=%s report=%t", c.cfg.SessionID, c.runID, c.reportReceived)
	c.setStateLocked(StateClosed, "Simulation complete", nil)
	if !c.reportReceived {
		c.startAutoFetchLocked()
	}
	c.maybeFinishLocked()
}

func (c *Controller) startAutoFetchLocked() {
	if c.reportReceived || c.autoFetching || c.fetchInFlight {
		return
	}
	c.autoFetching = true
	c.scheduleAutoFetchLocked(1)
}

func (c *Controller) scheduleAutoFetchLocked(n int) {
	gen := c.gen
	c.fetchTimer = c.cfg.Clock.AfterFunc(c.cfg.AutoFetch.Delay(n), func() { c.autoFetch(gen, n) })
}

func (c *Controller) autoFetch(gen uint64, n int) {
	c.mu.Lock()
	if gen != c.gen || c.reportReceived || !c.autoFetching {
		c.mu.Unlock()
		return
	}
	c.fetchTimer = nil
	c.fetchInFlight = true
	ctx := c.fetchContextLocked()
	runID := c.runID
	c.updateControlsLocked()
	c.mu.Unlock()
	c.flush()

	r, err := c.backend.FetchReport(ctx, runID, client.FetchPolicy{Attempts: 1})

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.fetchInFlight = false
	switch {
	case err == nil:
		c.deliverLocked(r, "fetch")
	case c.reportReceived:
		c.autoFetching = false
	case n < c.cfg.AutoFetch.Attempts:
		log.Printf("session event=auto_fetch_retry session=%s run_id=%s attempt=%d err=%q", c.cfg.SessionID, runID, n, err)
		c.scheduleAutoFetchLocked(n + 1)
	default:
		c.autoFetching = false
		c.cfg.Metrics.report("fetch", "unavailable")
		c.noticeLocked(NoticeWarn, fmt.Sprintf("Report not available yet. Press f or run `mdtview fetch %s` to fetch it manually.", runID))
	}
	c.updateControlsLocked()
	c.maybeFinishLocked()
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) scheduleFallbackLocked() {
	gen := c.gen
	c.fetchTimer = c.cfg.Clock.AfterFunc(c.cfg.FallbackDelay, func() {
		c.mu.Lock()
		if gen != c.gen || c.reportReceived || c.fetchInFlight {
			c.mu.Unlock()
			return
		}
		c.fetchTimer = nil
		c.startFallbackLocked()
		c.mu.Unlock()
		c.flush()
	})
}

func (c *Controller) startFallbackLocked() {
	if c.fetchTimer != nil {
		c.fetchTimer.Stop()
		c.fetchTimer = nil
	}
	c.autoFetching = false
	c.fetchInFlight = true
	c.finished = false
	c.updateControlsLocked()
	c.noticeLocked(NoticeInfo, "Fetching report...")
	go c.fallback(c.fetchContextLocked(), c.gen, c.runID, c.cfg.FetchPolicy)
}

func (c *Controller) fallback(ctx context.Context, gen uint64, runID string, p client.FetchPolicy) {
	r, err := c.backend.FetchReport(ctx, runID, p)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.fetchInFlight = false
	switch {
	case err == nil:
		c.deliverLocked(r, "fetch")
	case c.reportReceived:
		c.noticeLocked(NoticeWarn, "Could not refresh the report: "+err.Error())
		c.maybeFinishLocked()
	default:
		log.Printf("session event=fallback_failed session=%s run_id=%s err=%q", c.cfg.SessionID, runID, err)
		c.noticeLocked(NoticeWarn, "Could not retrieve the report; showing a synthetic summary.")
		c.deliverLocked(report.Synthesize(runID, c.tracker.Snapshot()), "synthetic")
	}
	c.updateControlsLocked()
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) fetchContextLocked() context.Context {
	if c.fetchCtx == nil {
		c.fetchCtx, c.fetchCancel = context.WithCancel(context.Background())
	}
	return c.fetchCtx
}

// maybeFinishLocked emits Finished once nothing is pending for the run.
func (c *Controller) maybeFinishLocked() {
	if c.finished || c.runID == "" {
		return
	}
	if c.state != StateClosed && c.state != StateFailed {
		return
	}
	if c.fetchInFlight || c.autoFetching || c.fetchTimer != nil {
		return
	}
	c.finished = true
	c.emitLocked(Finished{RunID: c.runID, ReportReceived: c.lastReport != nil})
}

func (c *Controller) setStateLocked(s State, text string, err error) {
	c.state = s
	c.cfg.Metrics.state(s)
	c.emitLocked(ConnectionChanged{
		RunID:   c.runID,
		State:   s,
		Text:    text,
		Attempt: c.attempt,
		Max:     c.cfg.Backoff.MaxAttempts,
		Err:     err,
	})
	c.updateControlsLocked()
}

func (c *Controller) updateControlsLocked() {
	next := Controls{
		SubmitEnabled:    !c.busy,
		SubmitLabel:      LabelSubmit,
		FetchEnabled:     c.runID != "" && !c.fetchInFlight,
		ReconnectEnabled: c.runID != "" && (c.state == StateFailed || c.state == StateClosed),
	}
	if c.busy {
		next.SubmitLabel = LabelProcessing
	}
	if next == c.controls {
		return
	}
	c.controls = next
	c.emitLocked(ControlsChanged{Controls: next})
}

func (c *Controller) noticeLocked(level NoticeLevel, text string) {
	log.Printf("session event=notice session=%s level=%d text=%q", c.cfg.SessionID, level, text)
	c.emitLocked(Notice{Level: level, Text: text})
}

func (c *Controller) emitLocked(e Event) {
	c.pending = append(c.pending, e)
}

// flush delivers queued events without holding c.mu.
func (c *Controller) flush() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	events := c.pending
	c.pending = nil
	c.mu.Unlock()

	if c.observer == nil {
		return
	}
	for _, e := range events {
		c.observer(e)
	}
}
