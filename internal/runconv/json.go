package runconv

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	api "github.com/dgellow/mcp-stress/lib-stress"
)

// ToJSON writes the request events of the run as one JSON array.
func ToJSON(w io.Writer, s *api.RunScanner) error {
	if _, err := w.Write([]byte("[\n  ")); err != nil {
		return fmt.Errorf("failed to write output: %s", err)
	}

	first := true

	for s.Scan() {
		if s.Kind() != api.KindRequest {
			continue
		}

		if first {
			first = false
		} else {
			if _, err := w.Write([]byte(",\n  ")); err != nil {
				return fmt.Errorf("failed to write output: %s", err)
			}
		}

		if j, err := json.Marshal(s.Event()); err != nil {
			return fmt.Errorf("failed to encode event: %s", err)
		} else if _, err := w.Write(j); err != nil {
			return fmt.Errorf("failed to write output: %s", err)
		}
	}
	if err := s.Err(); err != nil {
		return err
	}

	if _, err := w.Write([]byte("\n]\n")); err != nil {
		return fmt.Errorf("failed to write output: %s", err)
	}

	return nil
}
