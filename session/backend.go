// ABOUTME: Backend is the controller's view of the MDT server; ClientBackend adapts client.Client.
// ABOUTME: Tests substitute scripted backends without a network.
package session

import (
	"context"

	"github.com/2389-research/mdtview/client"
	"github.com/2389-research/mdtview/report"
)

// Stream yields decoded messages from one connection.
type Stream interface {
	Next() (client.StreamMessage, error)
	LastEventID() string
	Close() error
}

// Backend is everything the controller needs from the server.
type Backend interface {
	Submit(ctx context.Context, f client.CaseFile) (string, error)
	OpenStream(ctx context.Context, runID, lastEventID string) (Stream, error)
	FetchReport(ctx context.Context, runID string, p client.FetchPolicy) (*report.Report, error)
}

// ClientBackend adapts *client.Client to Backend.
type ClientBackend struct {
	Client *client.Client
}

// Submit uploads a case file.
func (b ClientBackend) Submit(ctx context.Context, f client.CaseFile) (string, error) {
	return b.Client.Submit(ctx, f)
}

// OpenStream opens the run's event stream.
func (b ClientBackend) OpenStream(ctx context.Context, runID, lastEventID string) (Stream, error) {
	s, err := b.Client.OpenStream(ctx, runID, lastEventID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FetchReport fetches the run's report.
func (b ClientBackend) FetchReport(ctx context.Context, runID string, p client.FetchPolicy) (*report.Report, error) {
	return b.Client.FetchReport(ctx, runID, p)
}
