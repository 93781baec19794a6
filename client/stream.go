// ABOUTME: Opens the run's event stream and yields decoded StreamMessages.
// ABOUTME: Resumes with Last-Event-ID so the backend can replay missed status updates.
package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/2389-research/mdtview/sse"
)

// Stream is one open event-stream response.
type Stream struct {
	RunID     string
	RequestID string

	body   io.ReadCloser
	parser *sse.Parser
}

// OpenStream connects to the run's event stream. lastEventID may be empty.
// The stream ends when ctx is cancelled or Close is called.
func (c *Client) OpenStream(ctx context.Context, runID, lastEventID string) (*Stream, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.runURL(pathStream, runID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := c.StreamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp, http.StatusText(resp.StatusCode))
	}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mt != "text/event-stream" {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %q", ErrNotEventStream, resp.Header.Get("Content-Type"))
	}

	return &Stream{
		RunID:     runID,
		RequestID: req.Header.Get("X-Request-ID"),
		body:      resp.Body,
		parser:    sse.NewParser(resp.Body),
	}, nil
}

// Next returns the next message. Payload errors come back as *DecodeError and
// the stream stays usable; any other error ends the stream (io.EOF on a clean
// close by the server).
func (s *Stream) Next() (StreamMessage, error) {
	ev, err := s.parser.Next()
	if err != nil {
		return StreamMessage{}, err
	}
	return DecodeEvent(ev)
}

// LastEventID returns the most recent id seen on the stream.
func (s *Stream) LastEventID() string {
	return s.parser.LastEventID()
}

// Close releases the connection.
func (s *Stream) Close() error {
	return s.body.Close()
}
