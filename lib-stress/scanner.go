package stress

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/dgellow/mcp-stress/internal/stresserr"
)

// Kind identifies the three kinds of lines in a run file.
type Kind int

const (
	KindRequest Kind = iota
	KindMeta
	KindSummary
)

// RunScanner reads a run file line by line.
type RunScanner struct {
	file    io.ReadCloser
	scanner *bufio.Scanner

	kind    Kind
	meta    Meta
	event   RequestEvent
	summary SummaryEvent
	err     error
}

// NewRunScanner creates a RunScanner from an io.ReadCloser.
func NewRunScanner(f io.ReadCloser) *RunScanner {
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &RunScanner{
		file:    f,
		scanner: s,
	}
}

// Close closes the underlying reader.
func (r *RunScanner) Close() error {
	return r.file.Close()
}

// typeProbe peeks the "type" discriminator of a line.
type typeProbe struct {
	Type string `json:"type"`
}

// Scan reads the next line. It returns false at the end of the file or on the
// first malformed line; check Err afterwards.
func (r *RunScanner) Scan() bool {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var probe typeProbe
		if err := json.Unmarshal(line, &probe); err != nil {
			r.err = stresserr.New(ErrInvalidRecord, err, "")
			return false
		}

		switch probe.Type {
		case "meta":
			r.meta = Meta{}
			if err := json.Unmarshal(line, &r.meta); err != nil {
				r.err = stresserr.New(ErrInvalidRecord, err, "")
				return false
			}
			r.kind = KindMeta
		case "summary":
			r.summary = SummaryEvent{}
			if err := json.Unmarshal(line, &r.summary); err != nil {
				r.err = stresserr.New(ErrInvalidRecord, err, "")
				return false
			}
			r.kind = KindSummary
		default:
			r.event = RequestEvent{}
			if err := json.Unmarshal(line, &r.event); err != nil {
				r.err = stresserr.New(ErrInvalidRecord, err, "")
				return false
			}
			r.kind = KindRequest
		}
		return true
	}
	r.err = r.scanner.Err()
	return false
}

// Kind reports the kind of the current line.
func (r *RunScanner) Kind() Kind { return r.kind }

// Meta returns the current line as a meta event.
func (r *RunScanner) Meta() Meta { return r.meta }

// Event returns the current line as a request event.
func (r *RunScanner) Event() RequestEvent { return r.event }

// Summary returns the current line as a summary event.
func (r *RunScanner) Summary() SummaryEvent { return r.summary }

// Err returns the first error the scanner hit, if any.
func (r *RunScanner) Err() error { return r.err }

// Run is a fully loaded run file.
type Run struct {
	Meta    *Meta
	Events  []RequestEvent
	Summary *SummaryEvent
}

// ReadRun loads a whole run file into memory.
func ReadRun(f io.ReadCloser) (*Run, error) {
	s := NewRunScanner(f)
	defer s.Close()

	var run Run
	for s.Scan() {
		switch s.Kind() {
		case KindMeta:
			m := s.Meta()
			run.Meta = &m
		case KindSummary:
			sm := s.Summary()
			run.Summary = &sm
		case KindRequest:
			run.Events = append(run.Events, s.Event())
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

// LoadRun opens and loads a run file from disk.
func LoadRun(path string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, stresserr.New(ErrIO, err, "failed to open run file")
	}
	return ReadRun(f)
}
