// Package runconv converts run files to other formats.
package runconv

import (
	"encoding/csv"
	"io"
	"strconv"

	api "github.com/dgellow/mcp-stress/lib-stress"
)

// ToCSV writes every request event of the run as a CSV row.
func ToCSV(w io.Writer, s *api.RunScanner) error {
	c := csv.NewWriter(w)

	err := c.Write([]string{"t", "method", "latency", "ok", "error_category", "error_code", "error", "concurrency", "phase"})
	if err != nil {
		return err
	}

	for s.Scan() {
		if s.Kind() != api.KindRequest {
			continue
		}
		e := s.Event()

		code := ""
		if !e.OK {
			code = strconv.Itoa(e.ErrorCode)
		}
		phase := ""
		if e.Phase >= 0 {
			phase = strconv.Itoa(e.Phase)
		}

		err := c.Write([]string{
			strconv.FormatInt(e.T, 10),
			e.Method,
			strconv.FormatFloat(e.LatencyMs, 'f', 2, 64),
			strconv.FormatBool(e.OK),
			e.ErrorCategory,
			code,
			e.Error,
			strconv.Itoa(e.Concurrency),
			phase,
		})
		if err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		return err
	}

	c.Flush()

	return c.Error()
}
