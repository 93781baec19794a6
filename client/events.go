// ABOUTME: Decodes SSE events from the run stream into a tagged StreamMessage.
// ABOUTME: Named events use the canonical wire shape; decodeLegacy handles untyped generic messages.
package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389-research/mdtview/sse"
)

// Event type names on the wire.
const (
	EventStatusUpdate   = "status_update"
	EventReport         = "report"
	EventReportMetadata = "report_metadata"
	EventReportChunk    = "report_chunk"
	EventComplete       = "complete"
	EventError          = "error"
	EventPing           = "ping"
)

// Kind tags a StreamMessage.
type Kind int

const (
	KindUnknown Kind = iota
	KindStatusUpdate
	KindReport
	KindReportMetadata
	KindReportChunk
	KindComplete
	KindServerError
	KindPing
)

func (k Kind) String() string {
	switch k {
	case KindStatusUpdate:
		return "status_update"
	case KindReport:
		return "report"
	case KindReportMetadata:
		return "report_metadata"
	case KindReportChunk:
		return "report_chunk"
	case KindComplete:
		return "complete"
	case KindServerError:
		return "server_error"
	case KindPing:
		return "ping"
	default:
		return "unknown"
	}
}

// StatusUpdate is one agent status change.
type StatusUpdate struct {
	AgentID   string         `json:"agent_id"`
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	RunID     string         `json:"run_id,omitempty"`
	EventID   int64          `json:"event_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ReportMetadata announces a chunked report.
type ReportMetadata struct {
	Chunks int `json:"chunks"`
}

// ReportChunk is one fragment of a chunked report.
type ReportChunk struct {
	Index int    `json:"chunk_index"`
	Total int    `json:"total_chunks"`
	Data  string `json:"data"`
}

// StreamMessage is a decoded stream event. Exactly one payload field is set
// according to Kind.
type StreamMessage struct {
	Kind      Kind
	EventType string
	ID        string

	Status   *StatusUpdate
	Report   []byte // KindReport: raw report JSON, parsed later so bad JSON can be shown
	Metadata *ReportMetadata
	Chunk    *ReportChunk
	Error    string // KindServerError

	// Legacy is set when the message came through the generic-message shim.
	Legacy bool
	Raw    string
}

// DecodeError means a named event carried a payload that does not match its type.
type DecodeError struct {
	EventType string
	Raw       string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s event: %v", e.EventType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeEvent converts an SSE event into a StreamMessage.
func DecodeEvent(ev sse.Event) (StreamMessage, error) {
	msg := StreamMessage{EventType: ev.Type, ID: ev.ID, Raw: ev.Data}
	fail := func(err error) (StreamMessage, error) {
		return msg, &DecodeError{EventType: ev.Type, Raw: ev.Data, Err: err}
	}

	switch ev.Type {
	case EventStatusUpdate:
		var st StatusUpdate
		if err := json.Unmarshal([]byte(ev.Data), &st); err != nil {
			return fail(err)
		}
		if st.AgentID == "" {
			return fail(fmt.Errorf("missing agent_id"))
		}
		msg.Kind = KindStatusUpdate
		msg.Status = &st

	case EventReport:
		msg.Kind = KindReport
		msg.Report = []byte(ev.Data)

	case EventReportMetadata:
		var md ReportMetadata
		if err := json.Unmarshal([]byte(ev.Data), &md); err != nil {
			return fail(err)
		}
		msg.Kind = KindReportMetadata
		msg.Metadata = &md

	case EventReportChunk:
		chunk, err := decodeChunk(ev.Data)
		if err != nil {
			return fail(err)
		}
		msg.Kind = KindReportChunk
		msg.Chunk = chunk

	case EventComplete:
		msg.Kind = KindComplete

	case EventError:
		msg.Kind = KindServerError
		msg.Error = errorText(ev.Data)

	case EventPing:
		msg.Kind = KindPing

	default:
		return decodeLegacy(msg), nil
	}
	return msg, nil
}

// decodeChunk accepts data as a JSON string (canonical) or any other JSON
// value, whose text is used as the fragment.
func decodeChunk(data string) (*ReportChunk, error) {
	var wire struct {
		Index *int            `json:"chunk_index"`
		Total int             `json:"total_chunks"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(data), &wire); err != nil {
		return nil, err
	}
	if wire.Index == nil {
		return nil, fmt.Errorf("missing chunk_index")
	}
	chunk := &ReportChunk{Index: *wire.Index, Total: wire.Total}
	if len(wire.Data) > 0 {
		var s string
		if err := json.Unmarshal(wire.Data, &s); err == nil {
			chunk.Data = s
		} else {
			chunk.Data = string(wire.Data)
		}
	}
	return chunk, nil
}

// errorText pulls a message out of an error event payload.
func errorText(data string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err == nil {
		for _, k := range []string{"error", "detail", "message"} {
			if s, ok := obj[k].(string); ok && s != "" {
				return s
			}
		}
	}
	if strings.TrimSpace(data) == "" {
		return "stream error"
	}
	return data
}

var (
	legacyAgentKeys   = []string{"agent_id", "agentId", "agent"}
	legacyStatusKeys  = []string{"status", "state"}
	legacyMessageKeys = []string{"message", "msg"}
	legacyReportKeys  = []string{"patient_id", "summary", "markdown_summary"}
)

// decodeLegacy inspects an untyped message for a status or report shape. It
// exists for older backends that sent everything as generic messages.
func decodeLegacy(msg StreamMessage) StreamMessage {
	msg.Legacy = true

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(msg.Raw), &obj); err != nil {
		return msg
	}

	if agent := firstString(obj, legacyAgentKeys); agent != "" {
		msg.Kind = KindStatusUpdate
		msg.Status = &StatusUpdate{
			AgentID: agent,
			Status:  firstString(obj, legacyStatusKeys),
			Message: firstString(obj, legacyMessageKeys),
		}
		return msg
	}

	if inner, ok := obj["report"]; ok && len(inner) > 0 && inner[0] == '{' {
		msg.Kind = KindReport
		msg.Report = []byte(inner)
		return msg
	}
	for _, k := range legacyReportKeys {
		if _, ok := obj[k]; ok {
			msg.Kind = KindReport
			msg.Report = []byte(msg.Raw)
			return msg
		}
	}
	return msg
}

func firstString(obj map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}
