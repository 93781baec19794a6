// ABOUTME: Server-Sent Events parser for the MDT run stream (GET /api/stream/{run_id}).
// ABOUTME: Yields named events per the W3C EventSource rules and remembers the last event id for resume.

package sse

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// DefaultEventType is the type assigned to events without an "event:" field.
const DefaultEventType = "message"

// maxLineBytes bounds a single line so a misbehaving server cannot grow the
// buffer without limit. Report chunks are well below this.
const maxLineBytes = 4 << 20

// ErrLineTooLong is returned when a single line exceeds maxLineBytes.
var ErrLineTooLong = errors.New("sse: line too long")

// Event is one dispatched Server-Sent Event.
type Event struct {
	Type  string // "event:" field, DefaultEventType when absent
	Data  string // "data:" lines joined with "\n"
	ID    string // last event id in effect when this event was dispatched
	Retry int    // "retry:" milliseconds, -1 if not set on this event
}

// Parser reads events from a stream body.
type Parser struct {
	reader *bufio.Reader
	done   bool

	eventType   string
	dataLines   []string
	hasData     bool
	retry       int
	lastEventID string
}

// NewParser creates a parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{
		reader: bufio.NewReaderSize(r, 16*1024),
		retry:  -1,
	}
}

// LastEventID returns the most recent "id:" value seen, which persists across
// events the way EventSource.lastEventId does.
func (p *Parser) LastEventID() string {
	return p.lastEventID
}

// Next returns the next event. It returns io.EOF when the stream ends; a
// trailing event without a terminating blank line is discarded, matching
// browser behaviour for truncated streams.
func (p *Parser) Next() (Event, error) {
	if p.done {
		return Event{}, io.EOF
	}

	for {
		line, err := p.readLine()
		if err != nil {
			p.done = true
			return Event{}, err
		}

		if line == "" {
			if !p.hasData {
				p.resetEvent()
				continue
			}
			evt := p.buildEvent()
			p.resetEvent()
			return evt, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		p.processField(field, value)
	}
}

// parseLine splits "field: value" stripping one leading space from value.
func parseLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx == -1 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}

func (p *Parser) processField(field, value string) {
	switch field {
	case "event":
		p.eventType = value
	case "data":
		p.dataLines = append(p.dataLines, value)
		p.hasData = true
	case "id":
		// Ids containing NUL are ignored.
		if !strings.ContainsRune(value, 0) {
			p.lastEventID = value
		}
	case "retry":
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			p.retry = n
		}
	}
}

func (p *Parser) buildEvent() Event {
	t := p.eventType
	if t == "" {
		t = DefaultEventType
	}
	return Event{
		Type:  t,
		Data:  strings.Join(p.dataLines, "\n"),
		ID:    p.lastEventID,
		Retry: p.retry,
	}
}

func (p *Parser) resetEvent() {
	p.eventType = ""
	p.dataLines = nil
	p.hasData = false
	p.retry = -1
}

// readLine reads one line terminated by CR, LF or CRLF.
func (p *Parser) readLine() (string, error) {
	var line strings.Builder
	for {
		b, err := p.reader.ReadByte()
		if err != nil {
			if err == io.EOF && line.Len() > 0 {
				return line.String(), nil
			}
			return "", err
		}
		switch b {
		case '\n':
			return line.String(), nil
		case '\r':
			if next, err := p.reader.ReadByte(); err == nil && next != '\n' {
				_ = p.reader.UnreadByte()
			}
			return line.String(), nil
		}
		if line.Len() >= maxLineBytes {
			return "", ErrLineTooLong
		}
		line.WriteByte(b)
	}
}
