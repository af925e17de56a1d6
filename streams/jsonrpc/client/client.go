// Package client connects to the Arbitrum sequencer feed websocket and turns
// each frame into decoded transactions via txdecoder, reconnecting with
// exponential backoff on drop.
package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fulcrumlabs/sequencer-arb/txdecoder"
)

// Constants for reconnection logic.
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second

	// defaultMaxReconnectAttempts bounds consecutive dial/read failures
	// before the client gives up and reports a fatal error; a successful
	// connection resets the counter.
	defaultMaxReconnectAttempts = 5

	// ArbitrumOneFeedURL is the public Arbitrum One sequencer feed endpoint.
	ArbitrumOneFeedURL = "wss://arb1.arbitrum.io/feed"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for the client.
type Config struct {
	URL        string
	Logger     Logger
	BufferSize uint
	// MaxReconnectAttempts bounds consecutive connect/read failures before
	// the client reports a fatal error on Err(). Defaults to 5.
	MaxReconnectAttempts int
}

func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// -----------------------------------------------------------------------------
// FeedProcessor
// -----------------------------------------------------------------------------

// FeedProcessor turns raw websocket frames into FeedMessages. It is decoupled
// from the networking layer so envelope parsing can be tested without a
// socket.
type FeedProcessor struct {
	lastSequence uint64
	haveSequence bool
	messageCh    chan FeedMessage
	logger       Logger
}

// NewFeedProcessor creates a pure logic processor without networking.
func NewFeedProcessor(logger Logger, bufferSize uint) *FeedProcessor {
	return &FeedProcessor{
		logger:    logger,
		messageCh: make(chan FeedMessage, bufferSize),
	}
}

// Messages returns a read-only channel of decoded feed messages.
func (fp *FeedProcessor) Messages() <-chan FeedMessage {
	return fp.messageCh
}

// ProcessFrame parses one raw feed envelope and, if it carries an l2Msg,
// decodes its transactions and pushes a FeedMessage.
func (fp *FeedProcessor) ProcessFrame(raw []byte) error {
	seq, l2msgB64, ok := txdecoder.ParseEnvelope(raw)
	if !ok {
		return fmt.Errorf("failed to parse envelope")
	}

	if fp.haveSequence && seq != fp.lastSequence+1 {
		fp.logger.Warn("sequencer feed gap detected",
			"last_sequence", fp.lastSequence, "next_sequence", seq)
	}
	fp.lastSequence = seq
	fp.haveSequence = true

	if l2msgB64 == nil {
		return nil
	}

	l2msg := make([]byte, base64.StdEncoding.DecodedLen(len(l2msgB64)))
	n, err := base64.StdEncoding.Decode(l2msg, l2msgB64)
	if err != nil {
		return fmt.Errorf("failed to decode l2msg base64: %w", err)
	}

	var txs []txdecoder.TransactionInfo
	txs = txdecoder.DecodeL2Message(l2msg[:n], txs)

	fp.messageCh <- FeedMessage{SequenceNumber: seq, Transactions: txs}
	return nil
}

// -----------------------------------------------------------------------------
// Client (Networking Wrapper)
// -----------------------------------------------------------------------------

// Client manages the websocket connection and uses FeedProcessor for logic.
type Client struct {
	processor     *FeedProcessor
	errCh         chan error
	logger        Logger
	maxReconnects int
}

// NewClient creates a new client with networking enabled.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxReconnects := cfg.MaxReconnectAttempts
	if maxReconnects <= 0 {
		maxReconnects = defaultMaxReconnectAttempts
	}

	client := &Client{
		processor:     NewFeedProcessor(cfg.Logger, cfg.BufferSize),
		errCh:         make(chan error, 1),
		logger:        cfg.Logger,
		maxReconnects: maxReconnects,
	}

	go client.run(ctx, cfg.URL)
	return client, nil
}

// Messages delegates to the processor's message channel.
func (c *Client) Messages() <-chan FeedMessage {
	return c.processor.Messages()
}

// Err returns a read-only channel for receiving fatal (unrecoverable) errors.
func (c *Client) Err() <-chan error {
	return c.errCh
}

// run handles the networking lifecycle and feeds data to the processor. A
// successful connection resets the failure count; exhausting maxReconnects
// consecutive failures is fatal, per the reconnect-exhaustion policy.
func (c *Client) run(ctx context.Context, url string) {
	defer close(c.errCh)
	reconnectDelay := initialReconnectDelay
	failures := 0

	for {
		if ctx.Err() != nil {
			c.logger.Info("client context canceled, shutting down")
			return
		}

		c.logger.Info("connecting to sequencer feed", "url", url)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			failures++
			if failures >= c.maxReconnects {
				c.errCh <- fmt.Errorf("sequencer feed: exhausted %d reconnect attempts: %w", c.maxReconnects, err)
				return
			}
			c.logger.Error("failed to connect to sequencer feed, will retry", "error", err, "delay", reconnectDelay, "attempt", failures)
			time.Sleep(reconnectDelay)
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
			continue
		}

		c.logger.Info("connected to sequencer feed")
		reconnectDelay = initialReconnectDelay
		failures = 0

		err = c.readLoop(ctx, conn)
		conn.Close()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("context canceled, shutting down")
				return
			}
			failures++
			if failures >= c.maxReconnects {
				c.errCh <- fmt.Errorf("sequencer feed: exhausted %d reconnect attempts: %w", c.maxReconnects, err)
				return
			}
			c.logger.Error("feed read failed, will reconnect", "error", err, "delay", reconnectDelay, "attempt", failures)
			time.Sleep(reconnectDelay)
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
		}
	}
}

// readLoop consumes frames until the connection drops or ctx is canceled.
// The first frame is a large full-state dump unrelated to any single
// transaction and is dropped unread.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	_, _, err := conn.ReadMessage()
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if err := c.processor.ProcessFrame(raw); err != nil {
			c.logger.Error("error processing feed frame", "error", err)
		}
	}
}

func min(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
