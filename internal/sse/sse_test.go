package sse_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dgellow/mcp-stress/internal/sse"
)

func collect(t *testing.T, input string) ([]sse.Event, error) {
	t.Helper()

	s := sse.NewScanner(strings.NewReader(input))
	var events []sse.Event
	for s.Scan() {
		events = append(events, s.Event())
	}
	return events, s.Err()
}

func TestScanner(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []sse.Event
		wantErr string
	}{
		{
			name:  "simple event",
			input: "event: message\nid: 1\ndata: hello\n\n",
			want: []sse.Event{
				{Name: "message", ID: "1", Data: []byte("hello")},
			},
		},
		{
			name:  "multiple data lines",
			input: "data: line 1\ndata: line 2\n\n",
			want: []sse.Event{
				{Data: []byte("line 1\nline 2")},
			},
		},
		{
			name:  "multiple events",
			input: "data: first\n\nevent: second\ndata: second\n\n",
			want: []sse.Event{
				{Data: []byte("first")},
				{Name: "second", Data: []byte("second")},
			},
		},
		{
			name:  "no trailing newline",
			input: "data: hello",
			want: []sse.Event{
				{Data: []byte("hello")},
			},
		},
		{
			name:  "crlf line endings",
			input: "event: message\r\ndata: hello\r\n\r\ndata: next\r\n\r\n",
			want: []sse.Event{
				{Name: "message", Data: []byte("hello")},
				{Data: []byte("next")},
			},
		},
		{
			name:  "comments are skipped",
			input: ": ping\n\ndata: real\n\n",
			want: []sse.Event{
				{Data: []byte("real")},
			},
		},
		{
			name:  "value without space",
			input: "data:compact\n\n",
			want: []sse.Event{
				{Data: []byte("compact")},
			},
		},
		{
			name:  "retry and unknown fields are ignored",
			input: "retry: 100\nfoo: bar\ndata: x\n\n",
			want: []sse.Event{
				{Data: []byte("x")},
			},
		},
		{
			name:    "malformed line",
			input:   "invalid line\n\n",
			wantErr: "malformed line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collect(t, tt.input)

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Scan() got nil error, want error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Scan() error = %q, want containing %q", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Scan() returned unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer
	err := sse.WriteEvent(&buf, sse.Event{
		Name: "message",
		ID:   "3",
		Data: []byte("line 1\nline 2"),
	})
	if err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}

	want := "event: message\nid: 3\ndata: line 1\ndata: line 2\n\n"
	if buf.String() != want {
		t.Errorf("wrote %q, want %q", buf.String(), want)
	}
}

func TestWriteEventRoundTrip(t *testing.T) {
	events := []sse.Event{
		{Name: "endpoint", Data: []byte("/messages?sessionId=abc")},
		{Name: "message", Data: []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)},
	}

	var buf bytes.Buffer
	for _, evt := range events {
		if err := sse.WriteEvent(&buf, evt); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
	}

	s := sse.NewScanner(&buf)
	var got []sse.Event
	for s.Scan() {
		got = append(got, s.Event())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if diff := cmp.Diff(events, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
