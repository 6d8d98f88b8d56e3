package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/txlog"
)

func TestStreamConfig_SetDefaults(t *testing.T) {
	t.Run("sets_default_values", func(t *testing.T) {
		config := StreamConfig{}
		config.SetDefaults()

		assert.Equal(t, 100, config.BufferSize)
		assert.Equal(t, 2*time.Second, config.ReconnectDelay)
		assert.Equal(t, 0, config.MaxReconnectAttempts) // 0 = infinite
	})

	t.Run("preserves_custom_values", func(t *testing.T) {
		config := StreamConfig{
			BufferSize:           200,
			ReconnectDelay:       5 * time.Second,
			MaxReconnectAttempts: 3,
		}
		config.SetDefaults()

		assert.Equal(t, 200, config.BufferSize)
		assert.Equal(t, 5*time.Second, config.ReconnectDelay)
		assert.Equal(t, 3, config.MaxReconnectAttempts)
	})
}

func TestStreamReceipts_ResumesAfterReconnect(t *testing.T) {
	var (
		mu    sync.Mutex
		froms []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tx/stream", r.URL.Path)
		from := r.URL.Query().Get("from")
		mu.Lock()
		froms = append(froms, from)
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		var start int64
		fmt.Sscan(from, &start)
		fmt.Fprint(w, ": ping\n\n")
		for h := start; h < start+2; h++ {
			data, _ := json.Marshal(txlog.Receipt{TxID: fmt.Sprintf("tx-%d", h), Height: h, Status: txlog.StatusSuccess})
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", h, data)
		}
		fmt.Fprint(w, "data: {not json\n\n")
		// Returning drops the connection.
	}))
	defer server.Close()

	client, err := NewClient(Config{ServerURL: server.URL})
	require.NoError(t, err)

	stream, err := client.StreamReceipts(context.Background(), StreamConfig{
		From:           3,
		ReconnectDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	var heights []int64
	timeout := time.After(5 * time.Second)
	for len(heights) < 4 {
		select {
		case r := <-stream.Receipts():
			heights = append(heights, r.Height)
		case <-stream.Errors():
		case <-timeout:
			t.Fatalf("timed out, got heights %v", heights)
		}
	}
	require.NoError(t, stream.Close())

	assert.Equal(t, []int64{3, 4, 5, 6}, heights)
	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(froms), 2)
	assert.Equal(t, []string{"3", "5"}, froms[:2])

	<-stream.Done()
}

func TestStreamReceipts_GivesUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{ServerURL: server.URL})
	require.NoError(t, err)

	stream, err := client.StreamReceipts(context.Background(), StreamConfig{
		ReconnectDelay:       time.Millisecond,
		MaxReconnectAttempts: 1,
	})
	require.NoError(t, err)

	select {
	case <-stream.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not give up")
	}

	var errs []error
	for err := range stream.Errors() {
		errs = append(errs, err)
	}
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[len(errs)-1].Error(), "max reconnect attempts")

	_, err = client.StreamReceipts(context.Background(), StreamConfig{From: -1})
	assert.Error(t, err)
}
