package httpclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/txlog"
)

// StreamClient follows the receipt stream over Server-Sent Events
type StreamClient struct {
	client   *Client
	receipts chan *txlog.Receipt
	errors   chan error
	done     chan struct{}
	cancel   context.CancelFunc
	next     int64
}

// StreamConfig configures the streaming client
type StreamConfig struct {
	// From is the first receipt height to deliver
	From int64

	// To only delivers receipts of transactions sent to this address (optional)
	To *proxy.Address

	// BufferSize for the receipt channel
	BufferSize int

	// ReconnectDelay for automatic reconnection
	ReconnectDelay time.Duration

	// MaxReconnectAttempts (0 = infinite)
	MaxReconnectAttempts int
}

// SetDefaults sets reasonable default values for StreamConfig
func (sc *StreamConfig) SetDefaults() {
	if sc.BufferSize == 0 {
		sc.BufferSize = 100
	}
	if sc.ReconnectDelay == 0 {
		sc.ReconnectDelay = 2 * time.Second
	}
}

// StreamReceipts follows receipts from config.From. After a dropped
// connection it reconnects and resumes after the last delivered height.
func (c *Client) StreamReceipts(ctx context.Context, config StreamConfig) (*StreamClient, error) {
	if config.From < 0 {
		return nil, fmt.Errorf("From must be non-negative, got %d", config.From)
	}
	config.SetDefaults()

	streamCtx, cancel := context.WithCancel(ctx)
	sc := &StreamClient{
		client:   c,
		receipts: make(chan *txlog.Receipt, config.BufferSize),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
		cancel:   cancel,
		next:     config.From,
	}

	go sc.startStreaming(streamCtx, config)

	return sc, nil
}

// Receipts returns the channel for receiving receipts
func (sc *StreamClient) Receipts() <-chan *txlog.Receipt {
	return sc.receipts
}

// Errors returns the channel for receiving errors
func (sc *StreamClient) Errors() <-chan error {
	return sc.errors
}

// Done returns a channel that's closed when streaming ends
func (sc *StreamClient) Done() <-chan struct{} {
	return sc.done
}

// Close stops the streaming client and waits for it to finish
func (sc *StreamClient) Close() error {
	sc.cancel()
	<-sc.done
	return nil
}

// startStreaming handles the SSE streaming loop with reconnection
func (sc *StreamClient) startStreaming(ctx context.Context, config StreamConfig) {
	defer close(sc.done)
	defer close(sc.receipts)
	defer close(sc.errors)

	attempts := 0
	for {
		err := sc.connectAndStream(ctx, config)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			select {
			case sc.errors <- fmt.Errorf("streaming error: %w", err):
			default:
			}
		}

		if config.MaxReconnectAttempts > 0 && attempts >= config.MaxReconnectAttempts {
			select {
			case sc.errors <- fmt.Errorf("max reconnect attempts (%d) exceeded", config.MaxReconnectAttempts):
			default:
			}
			return
		}
		attempts++

		select {
		case <-time.After(config.ReconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// connectAndStream establishes the SSE connection and processes receipts
func (sc *StreamClient) connectAndStream(ctx context.Context, config StreamConfig) error {
	query := url.Values{}
	query.Set("from", strconv.FormatInt(sc.next, 10))
	if config.To != nil {
		query.Set("to", config.To.String())
	}
	streamURL := sc.client.baseURL.ResolveReference(&url.URL{Path: "/api/v1/tx/stream", RawQuery: query.Encode()})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create streaming request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	sc.client.setHeaders(req)

	// The stream outlives the client's request timeout.
	httpClient := *sc.client.httpClient
	httpClient.Timeout = 0
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("streaming failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return sc.processSSEStream(ctx, resp.Body)
}

// processSSEStream reads and parses Server-Sent Events
func (sc *StreamClient) processSSEStream(ctx context.Context, reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		jsonData, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			// keepalive comments, id: lines and event separators
			continue
		}

		var receipt txlog.Receipt
		if err := json.Unmarshal([]byte(jsonData), &receipt); err != nil {
			select {
			case sc.errors <- fmt.Errorf("failed to parse receipt: %w", err):
			default:
			}
			continue
		}

		select {
		case sc.receipts <- &receipt:
			sc.next = receipt.Height + 1
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
