// Package txdecoder turns one raw sequencer feed JSON message into the
// transactions it carries, without using a general-purpose JSON decoder: the
// `l2msg` field is a multi-kilobyte base64 blob, and serde-style decoding of
// it dominates latency at this volume. Instead the envelope is scanned at
// fixed/bounded offsets for the handful of fields the engine actually needs.
package txdecoder

import "errors"

// ErrShortMessage is returned by the sequence-number parser when the field it
// is given is empty or contains a non-digit byte.
var ErrShortMessage = errors.New("txdecoder: message too short to scan")

// ParseEnvelope extracts the sequence number and, if present, the raw
// base64-encoded l2msg payload from one sequencer feed JSON message, e.g.:
//
//	{"version":1,"messages":[{"sequenceNumber":123,"message":{"message":
//	  {"header":{"kind":4,...},"l2Msg":"<base64>"},"delayedMessagesRead":0}}]}
//
// The heartbeat-only shape, which carries no l2Msg, is not parsed: ok is
// false for it.
//
//	{"version":1,"confirmedSequenceNumberMessage":{"sequenceNumber":123}}
//
// Scanning walks forward from a fixed offset to the sequence number (whose
// digit count varies over time, hence the scan rather than a fixed slice),
// then forward again to find the l2Msg value's opening quote, and finally
// from the buffer's tail backward past the message's closing braces - for a
// payload this large, finding the end from the back is cheaper than from
// the front.
func ParseEnvelope(buf []byte) (sequenceNumber uint64, l2msg []byte, ok bool) {
	const sequenceNumberStart = 42

	if len(buf) <= 75 {
		return 0, nil, false
	}

	index := sequenceNumberStart + 2
	for index < len(buf) && buf[index] != ',' {
		index++
	}
	if index == len(buf) {
		return 0, nil, false
	}
	seq, err := parseUint(buf[sequenceNumberStart+1 : index])
	if err != nil {
		return 0, nil, false
	}
	if len(buf) < 80 {
		return seq, nil, false
	}

	for buf[index] != '"' {
		index++
	}
	index += 39
	// index now sits on the header's `kind` digit; the header object may
	// carry additional variable-length fields (sender, blockNumber, ...)
	// before it closes, so its end is found by scanning rather than a fixed
	// skip.
	for buf[index] != '}' {
		index++
	}
	index += 11 // skip `,"l2Msg":"`

	tail := len(buf) - 1
	remaining := 4
	for remaining > 0 {
		if buf[tail] == '}' {
			remaining--
		}
		tail--
	}
	if index >= tail {
		return seq, nil, false
	}
	return seq, buf[index:tail], true
}

func parseUint(b []byte) (uint64, error) {
	var v uint64
	if len(b) == 0 {
		return 0, ErrShortMessage
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, ErrShortMessage
		}
		v = v*10 + uint64(c-'0')
	}
	return v, nil
}
