// ABOUTME: Runs a real session controller against the mock backend inside a real tea.Program.
// ABOUTME: Checks that fetch, reconnect and quit keys leave the event loop responsive while events flow back in.
package tui

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/mdtview/client"
	"github.com/2389-research/mdtview/mock"
	"github.com/2389-research/mdtview/report"
	"github.com/2389-research/mdtview/session"
)

const liveTimeout = 3 * time.Second

type pingMsg struct{ n int }

// observedModel forwards to inner and copies every message it handles to seen.
type observedModel struct {
	inner tea.Model
	seen  chan tea.Msg
}

func (m observedModel) Init() tea.Cmd { return m.inner.Init() }

func (m observedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	select {
	case m.seen <- msg:
	default:
	}
	if _, ok := msg.(pingMsg); ok {
		return m, nil
	}
	inner, cmd := m.inner.Update(msg)
	m.inner = inner
	return m, cmd
}

func (m observedModel) View() string { return m.inner.View() }

type liveRun struct {
	p     *tea.Program
	ctrl  *session.Controller
	seen  chan tea.Msg
	done  chan error
	pings int
}

// startLiveRun wires controller events into the program through an
// EventBridge, exactly as the CLI does, with run-1 streaming slowly.
func startLiveRun(t *testing.T, build func(ctrl Controller) tea.Model) *liveRun {
	t.Helper()
	srv := mock.NewServer(mock.Options{EventDelay: 200 * time.Millisecond})
	srv.AddRun("run-1", "P-1")
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var p *tea.Program
	bridge := NewEventBridge(func(msg tea.Msg) { p.Send(msg) })
	ctrl := session.New(session.ClientBackend{Client: client.New(ts.URL)}, session.Config{}, bridge.HandleEvent)
	t.Cleanup(ctrl.Close)

	run := &liveRun{ctrl: ctrl, seen: make(chan tea.Msg, 1024), done: make(chan error, 1)}
	p = tea.NewProgram(observedModel{inner: build(ctrl), seen: run.seen},
		tea.WithContext(ctx),
		tea.WithoutRenderer(),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)
	run.p = p
	go func() {
		_, err := p.Run()
		run.done <- err
	}()
	return run
}

// waitFor reads handled messages until pred matches.
func (r *liveRun) waitFor(t *testing.T, what string, pred func(tea.Msg) bool) tea.Msg {
	t.Helper()
	deadline := time.After(liveTimeout)
	for {
		select {
		case msg := <-r.seen:
			if pred(msg) {
				return msg
			}
		case <-deadline:
			require.FailNowf(t, "timed out", "waiting for %s", what)
			return nil
		}
	}
}

// send delivers msg, failing if the event loop does not accept it.
func (r *liveRun) send(t *testing.T, msg tea.Msg) {
	t.Helper()
	accepted := make(chan struct{})
	go func() {
		r.p.Send(msg)
		close(accepted)
	}()
	select {
	case <-accepted:
	case <-time.After(liveTimeout):
		require.FailNowf(t, "send blocked", "event loop did not accept %v", msg)
	}
}

// press sends a key and checks a following message is still handled.
func (r *liveRun) press(t *testing.T, key tea.KeyMsg) {
	t.Helper()
	r.send(t, key)
	r.pings++
	n := r.pings
	r.send(t, pingMsg{n: n})
	r.waitFor(t, "event loop after "+key.String(), func(msg tea.Msg) bool {
		p, ok := msg.(pingMsg)
		return ok && p.n == n
	})
}

func (r *liveRun) waitExit(t *testing.T) {
	t.Helper()
	select {
	case err := <-r.done:
		assert.NoError(t, err, "program exit")
	case <-time.After(liveTimeout):
		require.FailNow(t, "program did not exit")
	}
}

func isSessionEvent(pred func(session.Event) bool) func(tea.Msg) bool {
	return func(msg tea.Msg) bool {
		ev, ok := msg.(SessionEventMsg)
		return ok && pred(ev.Event)
	}
}

var connected = isSessionEvent(func(e session.Event) bool {
	cc, ok := e.(session.ConnectionChanged)
	return ok && cc.State == session.StateConnected
})

func TestAppModelControlKeysWithLiveSession(t *testing.T) {
	run := startLiveRun(t, func(ctrl Controller) tea.Model {
		return NewAppModel(context.Background(), ctrl, Options{
			Renderer: report.NewTerminalRenderer("notty"),
			RunID:    "run-1",
		})
	})
	run.waitFor(t, "connection", connected)

	run.press(t, keyRunes("f"))
	run.waitFor(t, "fetched report", isSessionEvent(func(e session.Event) bool {
		rr, ok := e.(session.ReportReady)
		return ok && rr.Source == "fetch"
	}))

	run.press(t, keyRunes("r"))
	run.waitFor(t, "reconnection", connected)

	run.send(t, keyRunes("q"))
	run.waitExit(t)
	assert.Equal(t, session.StateClosed, run.ctrl.State(), "state after quit")
}

func TestStreamModelCtrlCWithLiveSession(t *testing.T) {
	run := startLiveRun(t, func(ctrl Controller) tea.Model {
		return NewStreamModel(context.Background(), ctrl, Options{RunID: "run-1"}, false)
	})
	run.waitFor(t, "connection", connected)

	run.send(t, tea.KeyMsg{Type: tea.KeyCtrlC})
	run.waitExit(t)
	assert.Equal(t, session.StateClosed, run.ctrl.State(), "state after ctrl+c")
}
