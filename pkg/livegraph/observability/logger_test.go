package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCaptureLogger returns a JSON logger writing to a buffer.
func newCaptureLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// records decodes each JSON log line.
func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestEnrichLogger(t *testing.T) {
	logger, buf := newCaptureLogger()

	EnrichLogger(logger, "apply-1", 3).Info("work")

	recs := records(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "apply-1", recs[0]["apply_id"])
	assert.EqualValues(t, 3, recs[0]["from_version"])
	assert.Nil(t, EnrichLogger(nil, "x", 0))
}

func TestLogHelpers(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		log   func(*slog.Logger)
		level string
		msg   string
		key   string
		value any
	}{
		{"apply start", func(l *slog.Logger) { LogApplyStart(l, 2, 1) }, "INFO", "graph apply starting", "nodes", float64(2)},
		{"apply complete", func(l *slog.Logger) { LogApplyComplete(l, 5, 1.5) }, "INFO", "graph apply completed", "version", float64(5)},
		{"apply error", func(l *slog.Logger) { LogApplyError(l, boom, 1, "edges.add") }, "ERROR", "graph apply failed", "step", "edges.add"},
		{"node warning", func(l *slog.Logger) { LogNodeWarning(l, "n1", "configure", boom) }, "WARN", "node operation failed", "node_id", "n1"},
		{"edge reversal", func(l *slog.Logger) { LogEdgeReversalError(l, "a:x->b:y", boom) }, "WARN", "edge reversal failed", "edge", "a:x->b:y"},
		{"upsert", func(l *slog.Logger) { LogUpsert(l, "main", 2, "abc") }, "INFO", "graph document committed", "commit", "abc"},
		{"journal", func(l *slog.Logger) { LogJournalError(l, boom) }, "WARN", "journal write failed", "error", "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newCaptureLogger()
			tt.log(logger)

			recs := records(t, buf)
			require.Len(t, recs, 1)
			assert.Equal(t, tt.level, recs[0]["level"])
			assert.Equal(t, tt.msg, recs[0]["msg"])
			assert.Equal(t, tt.value, recs[0][tt.key])
		})
	}
}

// TestApplyLines_NoRepeatedKeys verifies the apply helpers on an enriched
// logger emit each key once.
func TestApplyLines_NoRepeatedKeys(t *testing.T) {
	logger, buf := newCaptureLogger()
	enriched := EnrichLogger(logger, "apply-7", 3)
	LogApplyStart(enriched, 2, 1)
	LogApplyComplete(enriched, 4, 1)
	LogApplyError(enriched, errors.New("boom"), 1, "edges.add")
	LogJournalError(enriched, errors.New("disk"))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.Equal(t, 1, strings.Count(line, `"apply_id"`), line)
		assert.LessOrEqual(t, strings.Count(line, `"version"`), 1, line)
	}
	recs := records(t, buf)
	require.Len(t, recs, 4)
	assert.EqualValues(t, 3, recs[1]["from_version"])
	assert.EqualValues(t, 4, recs[1]["version"])
}

// TestLogHelpers_NilLogger verifies nil loggers are ignored.
func TestLogHelpers_NilLogger(t *testing.T) {
	boom := errors.New("boom")
	assert.NotPanics(t, func() {
		LogApplyStart(nil, 0, 0)
		LogApplyComplete(nil, 0, 0)
		LogApplyError(nil, boom, 0, "")
		LogNodeWarning(nil, "n", "op", boom)
		LogEdgeReversalError(nil, "k", boom)
		LogUpsert(nil, "g", 1, "c")
		LogJournalError(nil, boom)
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	assert.GreaterOrEqual(t, done(), float64(0))
}
