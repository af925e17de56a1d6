package txdecoder

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildEnvelope(seq uint64, l2msgB64 string) []byte {
	return []byte(fmt.Sprintf(
		`{"version":1,"messages":[{"sequenceNumber":%d,"message":{"message":{"header":{"kind":4},"l2Msg":"%s"},"delayedMessagesRead":0}}]}`,
		seq, l2msgB64,
	))
}

func TestParseEnvelopeExtractsSequenceAndL2Msg(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0xde, 0xad, 0xbe, 0xef})
	buf := buildEnvelope(123456, payload)

	seq, l2msg, ok := ParseEnvelope(buf)
	require.True(t, ok)
	require.Equal(t, uint64(123456), seq)
	require.Equal(t, payload, string(l2msg))
}

func TestParseEnvelopeTooShort(t *testing.T) {
	_, _, ok := ParseEnvelope([]byte(`{"short":true}`))
	require.False(t, ok)
}

func TestParseEnvelopeShortHeartbeatRejected(t *testing.T) {
	// The heartbeat-only envelope shape is much shorter than a real feed
	// message and never reaches the scanning logic.
	buf := []byte(`{"version":1,"confirmedSequenceNumberMessage":{"sequenceNumber":99999999}}`)
	seq, l2msg, ok := ParseEnvelope(buf)
	require.False(t, ok)
	require.Zero(t, seq)
	require.Nil(t, l2msg)
}
