// Package socket fans live deploy output out to connected websocket
// clients. Deploy runs write into an io.Writer obtained from Writer and
// every client sees the tagged frames.
package socket

import (
	"encoding/json"
	"io"
	"sync"
)

var socketHub = newHub()

type hub struct {
	mu sync.Mutex

	// registered clients
	clients map[*Client]bool

	// register requests from the clients
	register chan *Client

	// unregister requests from clients
	unregister chan *Client
}

type hubWriter struct {
	hub *hub
	tag string
}

// Writer returns an io.Writer whose writes are broadcast to every
// connected client, tagged so the UI can tell runs apart.
func Writer(tag string) io.Writer {
	return &hubWriter{
		hub: socketHub,
		tag: tag,
	}
}

func (h *hubWriter) Write(p []byte) (int, error) {
	message := struct {
		Tag     string `json:"tag"`
		Message string `json:"bytes"`
	}{
		Tag:     h.tag,
		Message: string(p),
	}

	bytes, err := json.Marshal(message)
	if err != nil {
		return 0, err
	}

	if _, err := h.hub.Write(bytes); err != nil {
		return 0, err
	}
	return len(p), nil
}

func newHub() *hub {
	ret := &hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}

	go ret.start()
	return ret
}

func (h *hub) start() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		}
	}
}

func (h *hub) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- p:
		default:
			// client can't keep up, drop it
			delete(h.clients, client)
			close(client.send)
		}
	}

	return len(p), nil
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
