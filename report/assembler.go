// ABOUTME: Assembler reassembles reports delivered as indexed report_chunk events.
// ABOUTME: Success requires every index in [0,total); a gap is a terminal ErrMissingChunk.
package report

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingChunk is returned when the expected number of chunks arrived but
// the indices are not exactly [0,total). The report must be fetched again.
var ErrMissingChunk = errors.New("report: missing chunk")

// ErrChunkTotalMismatch is returned when a chunk announces a different total
// than the metadata event did.
var ErrChunkTotalMismatch = errors.New("report: chunk total does not match metadata")

// Assembler buffers chunks for one report. It is not safe for concurrent use;
// the session serializes access.
type Assembler struct {
	total  int
	chunks map[int]string
	done   bool
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{chunks: make(map[int]string)}
}

// Begin resets the buffer for a report of total chunks (report_metadata).
func (a *Assembler) Begin(total int) error {
	a.Reset()
	if total <= 0 {
		return fmt.Errorf("report: invalid chunk count %d", total)
	}
	a.total = total
	return nil
}

// Reset drops all buffered chunks and the expected total.
func (a *Assembler) Reset() {
	a.total = 0
	a.chunks = make(map[int]string)
	a.done = false
}

// Progress returns how many distinct chunks are stored and how many are expected.
func (a *Assembler) Progress() (received, total int) {
	return len(a.chunks), a.total
}

// Add stores one chunk. It returns a non-nil report once reassembly succeeds,
// (nil, nil) while chunks are still outstanding, and an error on a terminal
// reassembly failure. Chunks arriving after the report finished are ignored.
func (a *Assembler) Add(index, total int, data string) (*Report, error) {
	if a.done {
		return nil, nil
	}
	if index < 0 {
		return nil, fmt.Errorf("report: negative chunk index %d", index)
	}
	switch {
	case a.total == 0 && total > 0:
		a.total = total
	case total > 0 && total != a.total:
		a.done = true
		return nil, fmt.Errorf("%w: got %d, want %d", ErrChunkTotalMismatch, total, a.total)
	case a.total == 0:
		return nil, fmt.Errorf("report: chunk %d without a known total", index)
	}

	a.chunks[index] = data
	if len(a.chunks) < a.total {
		return nil, nil
	}

	a.done = true
	var joined strings.Builder
	for i := 0; i < a.total; i++ {
		part, ok := a.chunks[i]
		if !ok {
			return nil, fmt.Errorf("%w %d of %d", ErrMissingChunk, i, a.total)
		}
		joined.WriteString(part)
	}
	return Decode([]byte(joined.String()))
}
