package socket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterBroadcastsTaggedFrames(t *testing.T) {
	h := newHub()
	client := &Client{hub: h, send: make(chan []byte, 4)}
	h.register <- client

	require.Eventually(t, func() bool { return h.count() == 1 }, time.Second, 10*time.Millisecond)

	w := &hubWriter{hub: h, tag: "198.51.100.1"}
	n, err := w.Write([]byte("pulling latest changes\n"))
	require.NoError(t, err)
	assert.Equal(t, len("pulling latest changes\n"), n)

	select {
	case frame := <-client.send:
		var msg struct {
			Tag     string `json:"tag"`
			Message string `json:"bytes"`
		}
		require.NoError(t, json.Unmarshal(frame, &msg))
		assert.Equal(t, "198.51.100.1", msg.Tag)
		assert.Equal(t, "pulling latest changes\n", msg.Message)
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	h := newHub()
	client := &Client{hub: h, send: make(chan []byte)} // unbuffered, never read
	h.register <- client

	require.Eventually(t, func() bool { return h.count() == 1 }, time.Second, 10*time.Millisecond)

	_, err := h.Write([]byte("x"))
	require.NoError(t, err)

	assert.Equal(t, 0, h.count())

	// the send channel was closed on drop
	_, open := <-client.send
	assert.False(t, open)
}
