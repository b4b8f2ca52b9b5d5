package client

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"token-companion/internal/stream"
)

const maxFrameBytes = 1 << 20

// sseReader decodes "data:" frames into events.
type sseReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newSSEReader(body io.ReadCloser) *sseReader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 4096), maxFrameBytes)
	return &sseReader{body: body, scanner: sc}
}

// Next returns the next well-formed event. Frames that do not decode are
// skipped. Returns io.EOF when the stream ends cleanly.
func (r *sseReader) Next() (stream.Event, error) {
	var data []string

	for r.scanner.Scan() {
		line := r.scanner.Text()

		switch {
		case line == "":
			if len(data) == 0 {
				continue
			}
			var ev stream.Event
			err := json.Unmarshal([]byte(strings.Join(data, "\n")), &ev)
			data = data[:0]
			if err != nil || ev.Type == "" {
				continue
			}
			return ev, nil
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := r.scanner.Err(); err != nil {
		return stream.Event{}, err
	}
	return stream.Event{}, io.EOF
}

func (r *sseReader) Close() error {
	return r.body.Close()
}
