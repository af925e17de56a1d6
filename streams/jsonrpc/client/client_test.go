package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequencerEnvelope(seq uint64, l2msgB64 string) []byte {
	return []byte(fmt.Sprintf(
		`{"version":1,"messages":[{"sequenceNumber":%d,"message":{"message":{"header":{"kind":4},"l2Msg":"%s"},"delayedMessagesRead":0}}]}`,
		seq, l2msgB64,
	))
}

type capturingLogger struct {
	warned bool
}

func (c *capturingLogger) Debug(msg string, args ...any) {}
func (c *capturingLogger) Info(msg string, args ...any)  {}
func (c *capturingLogger) Warn(msg string, args ...any)  { c.warned = true }
func (c *capturingLogger) Error(msg string, args ...any) {}

func TestFeedProcessorDecodesEnvelope(t *testing.T) {
	fp := NewFeedProcessor(testLogger(), 4)

	payload := base64.StdEncoding.EncodeToString([]byte{0x06})
	buf := sequencerEnvelope(1, payload)

	require.NoError(t, fp.ProcessFrame(buf))

	select {
	case msg := <-fp.Messages():
		assert.Equal(t, uint64(1), msg.SequenceNumber)
		assert.Empty(t, msg.Transactions)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decoded message")
	}
}

func TestFeedProcessorWarnsOnSequenceGap(t *testing.T) {
	logger := &capturingLogger{}
	fp := NewFeedProcessor(logger, 4)

	payload := base64.StdEncoding.EncodeToString([]byte{0x06})
	require.NoError(t, fp.ProcessFrame(sequencerEnvelope(1, payload)))
	<-fp.Messages()
	require.NoError(t, fp.ProcessFrame(sequencerEnvelope(5, payload)))
	<-fp.Messages()

	assert.True(t, logger.warned)
}

func TestFeedProcessorRejectsUnparseableFrame(t *testing.T) {
	fp := NewFeedProcessor(testLogger(), 4)
	err := fp.ProcessFrame([]byte(`{"too":"short"}`))
	require.Error(t, err)
}

var upgrader = websocket.Upgrader{}

// newFeedServer serves frames over a websocket connection exactly once per
// client, mimicking the real feed's one-big-dump-then-envelopes shape.
func newFeedServer(t *testing.T, frames [][]byte) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		}
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClientReportsFatalErrorAfterReconnectExhaustion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Port 0 listeners are never dialable once bound then closed; use a URL
	// a real server will never answer on to force every dial attempt to fail.
	client, err := NewClient(ctx, Config{
		URL:                  "ws://127.0.0.1:1",
		Logger:               testLogger(),
		BufferSize:           4,
		MaxReconnectAttempts: 2,
	})
	require.NoError(t, err)

	select {
	case err := <-client.Err():
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reconnect exhaustion error")
	}
}

func TestClientDecodesFeedAfterDroppingFirstFrame(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0x06})
	server := newFeedServer(t, [][]byte{
		[]byte(`{"huge":"dump"}`),
		sequencerEnvelope(7, payload),
	})
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := NewClient(ctx, Config{URL: url, Logger: testLogger(), BufferSize: 4})
	require.NoError(t, err)

	select {
	case msg := <-client.Messages():
		assert.Equal(t, uint64(7), msg.SequenceNumber)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed message")
	}
}
