// ABOUTME: Tests for the session controller state machine using a scripted backend and a fake clock.
// ABOUTME: Covers backoff schedule, single live connection, completion auto-fetch, chunked reports and fallback.
package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/mdtview/client"
	"github.com/2389-research/mdtview/report"
	"github.com/2389-research/mdtview/workflow"
)

type streamItem struct {
	msg client.StreamMessage
	err error
}

type fakeStream struct {
	ctx     context.Context
	items   chan streamItem
	backend *fakeBackend
	lastID  string
	closed  atomic.Bool
}

func (s *fakeStream) Next() (client.StreamMessage, error) {
	select {
	case it, ok := <-s.items:
		if !ok {
			return client.StreamMessage{}, io.EOF
		}
		if it.msg.ID != "" {
			s.lastID = it.msg.ID
		}
		return it.msg, it.err
	case <-s.ctx.Done():
		return client.StreamMessage{}, s.ctx.Err()
	}
}

func (s *fakeStream) LastEventID() string { return s.lastID }

func (s *fakeStream) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.backend.live.Add(-1)
	}
	return nil
}

func (s *fakeStream) send(msg client.StreamMessage) {
	s.items <- streamItem{msg: msg}
}

type openCall struct {
	runID       string
	lastEventID string
}

type fakeBackend struct {
	mu         sync.Mutex
	opens      []openCall
	streams    []*fakeStream
	openErr    error
	overlapped int

	live   atomic.Int32
	opened chan *fakeStream

	submitErr error
	submits   atomic.Int32
	fetch     func(runID string, p client.FetchPolicy) (*report.Report, error)
	fetches   atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{opened: make(chan *fakeStream, 32)}
}

func (b *fakeBackend) Submit(ctx context.Context, f client.CaseFile) (string, error) {
	b.submits.Add(1)
	if b.submitErr != nil {
		return "", b.submitErr
	}
	return "run-submitted", nil
}

func (b *fakeBackend) OpenStream(ctx context.Context, runID, lastEventID string) (Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens = append(b.opens, openCall{runID: runID, lastEventID: lastEventID})
	for _, prev := range b.streams {
		if prev.ctx.Err() == nil {
			b.overlapped++
		}
	}
	if b.openErr != nil {
		return nil, b.openErr
	}
	s := &fakeStream{ctx: ctx, items: make(chan streamItem, 32), backend: b}
	b.streams = append(b.streams, s)
	b.live.Add(1)
	b.opened <- s
	return s, nil
}

func (b *fakeBackend) FetchReport(ctx context.Context, runID string, p client.FetchPolicy) (*report.Report, error) {
	b.fetches.Add(1)
	if b.fetch == nil {
		return nil, client.ErrReportUnavailable
	}
	return b.fetch(runID, p)
}

func (b *fakeBackend) openCalls() []openCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]openCall(nil), b.opens...)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Event, 4096)}
}

func (r *recorder) observe(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.ch <- e
}

func (r *recorder) waitFor(t *testing.T, what string, pred func(Event) bool) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e := <-r.ch:
			if pred(e) {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", what)
			return nil
		}
	}
}

func (r *recorder) count(pred func(Event) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if pred(e) {
			n++
		}
	}
	return n
}

func inState(s State) func(Event) bool {
	return func(e Event) bool {
		cc, ok := e.(ConnectionChanged)
		return ok && cc.State == s
	}
}

func isAgentsChanged(e Event) bool {
	_, ok := e.(AgentsChanged)
	return ok
}

func isFinished(e Event) bool {
	_, ok := e.(Finished)
	return ok
}

func waitStream(t *testing.T, b *fakeBackend) *fakeStream {
	t.Helper()
	select {
	case s := <-b.opened:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for stream open")
		return nil
	}
}

func newTestController(b *fakeBackend) (*Controller, *FakeClock, *recorder) {
	clock := NewFakeClock()
	rec := newRecorder()
	c := New(b, Config{Clock: clock, FetchPolicy: client.FetchPolicy{Attempts: 1}}, rec.observe)
	return c, clock, rec
}

func status(agent, st string) client.StreamMessage {
	return client.StreamMessage{Kind: client.KindStatusUpdate, EventType: client.EventStatusUpdate,
		Status: &client.StatusUpdate{AgentID: agent, Status: st}}
}

func TestBackoffDelays(t *testing.T) {
	b := DefaultBackoff()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, d := range want {
		assert.Equal(t, d, b.Delay(i+1), "attempt %d", i+1)
		assert.False(t, b.Exhausted(i+1))
	}
	assert.True(t, b.Exhausted(6))

	// Large attempt counts must not shift into zero or negative waits.
	assert.Equal(t, MaxBackoffDelay, b.Delay(10))
	assert.Equal(t, MaxBackoffDelay, b.Delay(40))
	assert.Equal(t, MaxBackoffDelay, b.Delay(100))
	assert.Equal(t, MaxBackoffDelay, Backoff{BaseDelay: time.Hour}.Delay(1))

	a := DefaultAutoFetch()
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second},
		[]time.Duration{a.Delay(1), a.Delay(2), a.Delay(3)})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestReconnectBackoffSequenceAndCap(t *testing.T) {
	b := newFakeBackend()
	b.openErr = errors.New("connection refused")
	c, clock, rec := newTestController(b)

	c.Connect("run-1")
	for attempt := 1; attempt <= 5; attempt++ {
		e := rec.waitFor(t, "reconnecting", inState(StateReconnecting)).(ConnectionChanged)
		want := time.Second << (attempt - 1)
		assert.Equal(t, attempt, e.Attempt)
		assert.Equal(t, want, e.Delay)
		assert.Equal(t, []time.Duration{want}, clock.Pending())
		clock.Advance(want)
	}

	failed := rec.waitFor(t, "failed", inState(StateFailed)).(ConnectionChanged)
	assert.Equal(t, "Connection failed after 5 attempts", failed.Text)
	assert.Len(t, b.openCalls(), 6)
	assert.True(t, c.Controls().SubmitEnabled)

	// Fallback fetch fails too: a synthetic report is delivered.
	clock.Advance(time.Hour)
	rr := rec.waitFor(t, "synthetic report", func(e Event) bool {
		r, ok := e.(ReportReady)
		return ok && r.Source == "synthetic"
	}).(ReportReady)
	assert.True(t, rr.Report.Synthetic)
	rec.waitFor(t, "finished", isFinished)

	clock.Advance(time.Hour)
	assert.Len(t, b.openCalls(), 6, "no connect after the cap")
}

func TestReconnectingText(t *testing.T) {
	b := newFakeBackend()
	b.openErr = errors.New("refused")
	c, clock, rec := newTestController(b)

	c.Connect("run-1")
	rec.waitFor(t, "first", inState(StateReconnecting))
	clock.Advance(time.Second)
	e := rec.waitFor(t, "second", inState(StateReconnecting)).(ConnectionChanged)
	assert.Equal(t, "Reconnecting in 2s... (2/5)", e.Text)
	c.Close()
}

func TestOneLiveConnection(t *testing.T) {
	b := newFakeBackend()
	c, _, rec := newTestController(b)

	c.Connect("run-1")
	first := waitStream(t, b)
	rec.waitFor(t, "connected", inState(StateConnected))

	c.Connect("run-2")
	second := waitStream(t, b)
	rec.waitFor(t, "connected", inState(StateConnected))

	assert.Error(t, first.ctx.Err(), "prior connection cancelled before the new one opened")
	assert.NoError(t, second.ctx.Err())
	assert.Equal(t, 0, b.overlapped)
	assert.Eventually(t, func() bool { return b.live.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "run-2", c.RunID())
	c.Close()
}

func TestUnchangedStateDoesNotRerender(t *testing.T) {
	b := newFakeBackend()
	c, _, rec := newTestController(b)

	c.Connect("run-1")
	s := waitStream(t, b)
	s.send(status("ehr_agent", "ACTIVE"))
	s.send(status("EHR", "running"))
	s.send(status("ehr-agent", "processing"))
	s.send(status("ehr_agent", "DONE"))
	s.send(status("ehr_agent", "completed"))
	s.send(status("mystery_agent", "ACTIVE"))
	s.send(client.StreamMessage{Kind: client.KindReportMetadata, Metadata: &client.ReportMetadata{Chunks: 2}})
	rec.waitFor(t, "chunk progress", func(e Event) bool { _, ok := e.(ChunkProgress); return ok })

	assert.Equal(t, 2, rec.count(isAgentsChanged))
	assert.Equal(t, workflow.StateComplete, c.Snapshot().State(workflow.EHR))
	c.Close()
}

func TestAgentsChangedCarriesEachTransition(t *testing.T) {
	b := newFakeBackend()
	c, _, rec := newTestController(b)

	c.Connect("run-1")
	s := waitStream(t, b)
	s.send(status("ehr_agent", "ACTIVE"))
	s.send(status("ehr_agent", "DONE"))
	s.send(client.StreamMessage{Kind: client.KindComplete})
	rec.waitFor(t, "closed", inState(StateClosed))

	var got []workflow.AgentState
	var coordinator workflow.AgentState
	rec.mu.Lock()
	for _, e := range rec.events {
		if ac, ok := e.(AgentsChanged); ok {
			got = append(got, ac.Snapshot.State(workflow.EHR))
			coordinator = ac.Snapshot.State(workflow.Coordinator)
		}
	}
	rec.mu.Unlock()

	// Running, complete, then the completion sweep that finishes the coordinator.
	assert.Equal(t, []workflow.AgentState{workflow.StateRunning, workflow.StateComplete, workflow.StateComplete}, got)
	assert.Equal(t, workflow.StateComplete, coordinator)
	c.Close()
}

func TestCompletionAutoFetch(t *testing.T) {
	b := newFakeBackend()
	var calls atomic.Int32
	b.fetch = func(runID string, p client.FetchPolicy) (*report.Report, error) {
		assert.Equal(t, 1, p.Attempts)
		if calls.Add(1) < 3 {
			return nil, client.ErrReportUnavailable
		}
		return report.Decode([]byte(`{"patient_id":"P1","summary":"ok"}`))
	}
	c, clock, rec := newTestController(b)

	c.Connect("run-1")
	s := waitStream(t, b)
	s.send(status("imaging_agent", "ACTIVE"))
	s.send(client.StreamMessage{Kind: client.KindComplete})
	rec.waitFor(t, "closed", inState(StateClosed))

	snap := c.Snapshot()
	assert.Equal(t, workflow.StateComplete, snap.State(workflow.Imaging))
	assert.Equal(t, workflow.StateComplete, snap.State(workflow.Coordinator))
	assert.Equal(t, workflow.StateInactive, snap.State(workflow.Pathology))
	assert.True(t, c.Controls().SubmitEnabled)

	assert.Equal(t, []time.Duration{2 * time.Second}, clock.Pending())
	clock.Advance(2 * time.Second)
	assert.Equal(t, []time.Duration{4 * time.Second}, clock.Pending())
	clock.Advance(4 * time.Second)
	assert.Equal(t, []time.Duration{6 * time.Second}, clock.Pending())
	clock.Advance(6 * time.Second)

	rr := rec.waitFor(t, "report", func(e Event) bool { _, ok := e.(ReportReady); return ok }).(ReportReady)
	assert.Equal(t, "fetch", rr.Source)
	assert.Equal(t, "P1", rr.Report.PatientID())
	fin := rec.waitFor(t, "finished", isFinished).(Finished)
	assert.True(t, fin.ReportReceived)
	assert.Empty(t, clock.Pending())
}

func TestCompletionAutoFetchExhausted(t *testing.T) {
	b := newFakeBackend()
	c, clock, rec := newTestController(b)

	c.Connect("run-9")
	s := waitStream(t, b)
	s.send(client.StreamMessage{Kind: client.KindComplete})
	rec.waitFor(t, "closed", inState(StateClosed))

	clock.Advance(time.Minute)
	n := rec.waitFor(t, "manual fetch notice", func(e Event) bool {
		n, ok := e.(Notice)
		return ok && strings.Contains(n.Text, "mdtview fetch run-9")
	}).(Notice)
	assert.Equal(t, NoticeWarn, n.Level)
	fin := rec.waitFor(t, "finished", isFinished).(Finished)
	assert.False(t, fin.ReportReceived)
	assert.Equal(t, int32(3), b.fetches.Load())
	assert.Nil(t, c.Report())
}

func TestChunkedReportOverStream(t *testing.T) {
	b := newFakeBackend()
	c, clock, rec := newTestController(b)

	c.Connect("run-1")
	s := waitStream(t, b)
	parts := []string{`{"patient_id":`, `"P1","summary"`, `:"ok"}`}
	s.send(client.StreamMessage{Kind: client.KindReportMetadata, Metadata: &client.ReportMetadata{Chunks: 3}})
	for _, i := range []int{1, 0, 2} {
		s.send(client.StreamMessage{Kind: client.KindReportChunk, Chunk: &client.ReportChunk{Index: i, Total: 3, Data: parts[i]}})
	}

	rr := rec.waitFor(t, "report", func(e Event) bool { _, ok := e.(ReportReady); return ok }).(ReportReady)
	assert.Equal(t, "chunks", rr.Source)
	assert.JSONEq(t, `{"patient_id":"P1","summary":"ok"}`, string(rr.Report.Raw))

	var progress []string
	rec.mu.Lock()
	for _, e := range rec.events {
		if p, ok := e.(ChunkProgress); ok {
			progress = append(progress, p.Text())
		}
	}
	rec.mu.Unlock()
	assert.Equal(t, []string{
		"Receiving report data (0/3 chunks)...",
		"Receiving report data (1/3 chunks)...",
		"Receiving report data (2/3 chunks)...",
		"Receiving report data (3/3 chunks)...",
	}, progress)

	s.send(client.StreamMessage{Kind: client.KindComplete})
	rec.waitFor(t, "finished", isFinished)
	assert.Empty(t, clock.Pending(), "no auto-fetch once a report arrived")
}

func TestChunkGapIsReported(t *testing.T) {
	b := newFakeBackend()
	c, _, rec := newTestController(b)

	c.Connect("run-1")
	s := waitStream(t, b)
	s.send(client.StreamMessage{Kind: client.KindReportMetadata, Metadata: &client.ReportMetadata{Chunks: 2}})
	s.send(client.StreamMessage{Kind: client.KindReportChunk, Chunk: &client.ReportChunk{Index: 0, Total: 2, Data: `{}`}})
	s.send(client.StreamMessage{Kind: client.KindReportChunk, Chunk: &client.ReportChunk{Index: 3, Total: 2, Data: `x`}})

	rf := rec.waitFor(t, "report failed", func(e Event) bool { _, ok := e.(ReportFailed); return ok }).(ReportFailed)
	assert.ErrorIs(t, rf.Err, report.ErrMissingChunk)
	rec.waitFor(t, "notice", func(e Event) bool {
		n, ok := e.(Notice)
		return ok && strings.Contains(n.Text, "reassembly failed")
	})
	c.Close()
}

func TestMalformedWholeReportSurfacesRaw(t *testing.T) {
	b := newFakeBackend()
	c, _, rec := newTestController(b)

	c.Connect("run-1")
	s := waitStream(t, b)
	s.send(client.StreamMessage{Kind: client.KindReport, Report: []byte(`{"patient_id":`)})

	rf := rec.waitFor(t, "report failed", func(e Event) bool { _, ok := e.(ReportFailed); return ok }).(ReportFailed)
	assert.Equal(t, `{"patient_id":`, rf.Raw)
	var pe *report.ParseError
	assert.True(t, errors.As(rf.Err, &pe))
	assert.Equal(t, StateConnected, c.State())
	c.Close()
}

func TestEOFAfterCoordinatorDoneCompletes(t *testing.T) {
	b := newFakeBackend()
	b.fetch = func(string, client.FetchPolicy) (*report.Report, error) {
		return report.Decode([]byte(`{"patient_id":"P2"}`))
	}
	c, clock, rec := newTestController(b)

	c.Connect("run-1")
	s := waitStream(t, b)
	s.send(status("coordinator", "DONE"))
	close(s.items)

	rec.waitFor(t, "closed", inState(StateClosed))
	assert.Len(t, b.openCalls(), 1)
	clock.Advance(2 * time.Second)
	rec.waitFor(t, "finished", isFinished)
	assert.Equal(t, "P2", c.Report().PatientID())
}

func TestEOFBeforeCompletionResumesFromLastEventID(t *testing.T) {
	b := newFakeBackend()
	c, clock, rec := newTestController(b)

	c.Connect("run-1")
	s := waitStream(t, b)
	msg := status("ehr", "ACTIVE")
	msg.ID = "5"
	s.send(msg)
	close(s.items)

	e := rec.waitFor(t, "reconnecting", inState(StateReconnecting)).(ConnectionChanged)
	assert.ErrorIs(t, e.Err, io.ErrUnexpectedEOF)
	clock.Advance(time.Second)
	waitStream(t, b)
	rec.waitFor(t, "connected again", inState(StateConnected))

	calls := b.openCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "", calls[0].lastEventID)
	assert.Equal(t, "5", calls[1].lastEventID)
	assert.Equal(t, 0, c.Attempt(), "successful open resets the attempt counter")
	assert.Equal(t, workflow.StateRunning, c.Snapshot().State(workflow.EHR), "same run keeps agent states")
	c.Close()
}

func TestServerErrorEventReconnects(t *testing.T) {
	b := newFakeBackend()
	c, _, rec := newTestController(b)

	c.Connect("run-1")
	s := waitStream(t, b)
	s.send(client.StreamMessage{Kind: client.KindServerError, Error: "Internal server error during stream."})

	e := rec.waitFor(t, "reconnecting", inState(StateReconnecting)).(ConnectionChanged)
	assert.Contains(t, e.Err.Error(), "Internal server error")
	c.Close()
}

func TestCloseCancelsPendingReconnect(t *testing.T) {
	b := newFakeBackend()
	b.openErr = errors.New("refused")
	c, clock, rec := newTestController(b)

	c.Connect("run-1")
	rec.waitFor(t, "reconnecting", inState(StateReconnecting))
	c.Close()

	assert.Empty(t, clock.Pending())
	clock.Advance(time.Hour)
	assert.Len(t, b.openCalls(), 1)
	assert.Equal(t, StateClosed, c.State())
}

func TestConnectSupersedesPendingReconnect(t *testing.T) {
	b := newFakeBackend()
	b.openErr = errors.New("refused")
	c, clock, rec := newTestController(b)

	c.Connect("run-1")
	rec.waitFor(t, "reconnecting", inState(StateReconnecting))

	b.mu.Lock()
	b.openErr = nil
	b.mu.Unlock()
	c.Connect("run-2")
	waitStream(t, b)
	rec.waitFor(t, "connected", inState(StateConnected))

	clock.Advance(time.Hour)
	calls := b.openCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "run-2", calls[1].runID)
	c.Close()
}

func TestSubmitRejectsNonJSONLocally(t *testing.T) {
	b := newFakeBackend()
	c, _, rec := newTestController(b)

	_, err := c.Submit(context.Background(), client.CaseFile{Name: "case.txt", ContentType: "text/plain"})
	var ve *client.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, int32(0), b.submits.Load())
	assert.Empty(t, b.openCalls())

	n := rec.waitFor(t, "notice", func(e Event) bool { _, ok := e.(Notice); return ok }).(Notice)
	assert.Equal(t, "Error: please select a JSON file", n.Text)
	assert.True(t, c.Controls().SubmitEnabled)
}

func TestSubmitConnectsAndDisablesControls(t *testing.T) {
	b := newFakeBackend()
	c, _, rec := newTestController(b)

	runID, err := c.Submit(context.Background(), client.CaseFile{Name: "case.json", ContentType: "application/json", Data: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "run-submitted", runID)

	cc := rec.waitFor(t, "controls", func(e Event) bool { _, ok := e.(ControlsChanged); return ok }).(ControlsChanged)
	assert.False(t, cc.Controls.SubmitEnabled)
	assert.Equal(t, LabelProcessing, cc.Controls.SubmitLabel)

	waitStream(t, b)
	_, err = c.Submit(context.Background(), client.CaseFile{Name: "case.json", Data: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrBusy)
	c.Close()
	assert.True(t, c.Controls().SubmitEnabled)
}

func TestSubmitErrorReleasesControls(t *testing.T) {
	b := newFakeBackend()
	b.submitErr = &client.APIError{Status: 400, Detail: "Invalid JSON file."}
	c, _, rec := newTestController(b)

	_, err := c.Submit(context.Background(), client.CaseFile{Name: "case.json", Data: []byte(`{`)})
	require.Error(t, err)
	n := rec.waitFor(t, "notice", func(e Event) bool { _, ok := e.(Notice); return ok }).(Notice)
	assert.Equal(t, "Error: Invalid JSON file.", n.Text)
	assert.True(t, c.Controls().SubmitEnabled)
	assert.Equal(t, LabelSubmit, c.Controls().SubmitLabel)
}

func TestManualFetchWithoutRun(t *testing.T) {
	b := newFakeBackend()
	c, _, rec := newTestController(b)

	c.FetchReport()
	n := rec.waitFor(t, "notice", func(e Event) bool { _, ok := e.(Notice); return ok }).(Notice)
	assert.Equal(t, NoticeWarn, n.Level)
	assert.Equal(t, int32(0), b.fetches.Load())
}

func TestMetricsCount(t *testing.T) {
	b := newFakeBackend()
	clock := NewFakeClock()
	rec := newRecorder()
	m := NewMetrics(prometheus.NewRegistry())
	c := New(b, Config{Clock: clock, Metrics: m}, rec.observe)

	c.Connect("run-1")
	s := waitStream(t, b)
	s.send(status("ehr", "ACTIVE"))
	s.send(client.StreamMessage{Kind: client.KindPing})
	s.send(client.StreamMessage{Kind: client.KindReportMetadata, Metadata: &client.ReportMetadata{Chunks: 1}})
	rec.waitFor(t, "progress", func(e Event) bool { _, ok := e.(ChunkProgress); return ok })

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connects))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("status_update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("ping")))
	assert.Equal(t, float64(StateConnected), testutil.ToFloat64(m.State))
	c.Close()

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.connect(); nilMetrics.state(StateIdle) })
}

func TestFakeClockOrdering(t *testing.T) {
	clock := NewFakeClock()
	var order []string
	clock.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	clock.AfterFunc(time.Second, func() {
		order = append(order, "a")
		clock.AfterFunc(500*time.Millisecond, func() { order = append(order, "a2") })
	})
	stopped := clock.AfterFunc(1500*time.Millisecond, func() { order = append(order, "never") })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "a2", "b"}, order)
}
