package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noFlushWriter struct{ header http.Header }

func (w *noFlushWriter) Header() http.Header         { return w.header }
func (w *noFlushWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *noFlushWriter) WriteHeader(int)             {}

func TestSSEWriter_Events(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, sse.WriteEvent("progress", map[string]int{"progress": 20}))
	require.NoError(t, sse.KeepAlive())
	require.NoError(t, sse.WriteError("GenerationError", "backend down"))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t,
		"id: 1\nevent: progress\ndata: {\"progress\":20}\n\n"+
			": keep-alive\n\n"+
			"id: 2\nevent: error\ndata: {\"errorKind\":\"GenerationError\",\"errorMessage\":\"backend down\"}\n\n",
		rec.Body.String())
}

func TestSSEWriter_RequiresFlusher(t *testing.T) {
	w := &noFlushWriter{header: http.Header{}}
	_, err := NewSSEWriter(w)
	require.Error(t, err)
	assert.Empty(t, w.header.Get("Content-Type"))
}
