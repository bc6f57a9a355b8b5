package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEWriter writes Server-Sent Events. Every event carries an increasing id.
type SSEWriter struct {
	w   http.ResponseWriter
	rc  *http.ResponseController
	seq int
}

// NewSSEWriter sends the stream headers. It fails before writing anything
// when the connection cannot be flushed.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		w.Header().Del("Content-Type")
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	return &SSEWriter{w: w, rc: rc}, nil
}

// WriteEvent sends data as JSON under the event name.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

// WriteError sends an error event carrying the failure kind and message
func (s *SSEWriter) WriteError(kind, message string) error {
	return s.WriteEvent("error", map[string]string{"errorKind": kind, "errorMessage": message})
}

// KeepAlive writes a comment line so idle proxies do not close the stream.
func (s *SSEWriter) KeepAlive() error {
	if _, err := fmt.Fprint(s.w, ": keep-alive\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}
