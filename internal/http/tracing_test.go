package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cicadacove/storefront/internal/logger"
	"github.com/cicadacove/storefront/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func logEntries(t *testing.T, buf *bytes.Buffer, msg string) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var e map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		if e["msg"] == msg {
			out = append(out, e)
		}
	}
	return out
}

func TestRequestLogsCarryTraceIDs(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), "storefront-test", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	var buf bytes.Buffer
	log, err := logger.NewWithWriter(&buf, "debug", "json")
	require.NoError(t, err)
	s := newStorefrontWithLogger(t, log)

	payload := `{"id":"evt_1","object":"event","type":"charge.refunded"}`

	rec := s.do(t, http.MethodPost, "/api/stripe/webhook", json.RawMessage(payload), map[string]string{
		SignatureHeader: "t=1,v1=deadbeef",
		"traceparent":   traceparent,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	entries := logEntries(t, &buf, "rejected webhook delivery")
	require.Len(t, entries, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entries[0]["trace_id"], "upstream trace is continued")
	assert.NotEmpty(t, entries[0]["span_id"])
	assert.NotEqual(t, "00f067aa0ba902b7", entries[0]["span_id"], "the server span is a child of the caller's")

	buf.Reset()
	rec = s.do(t, http.MethodPost, "/api/stripe/webhook", json.RawMessage(payload), map[string]string{
		SignatureHeader: "t=1,v1=deadbeef",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	entries = logEntries(t, &buf, "rejected webhook delivery")
	require.Len(t, entries, 1)
	assert.Regexp(t, `^[0-9a-f]{32}$`, entries[0]["trace_id"], "a root span is started without a caller trace")
}
