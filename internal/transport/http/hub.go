package http

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"quizbot/internal/domain"
)

// Hub is the web chat Platform: every chat is a room of websocket clients and every outbound
// call is broadcast to the room.
type Hub struct {
	log zerolog.Logger

	mu      sync.RWMutex
	nextRef domain.MessageRef
	nextID  uint64
	rooms   map[int64]map[uint64]*client
	clients map[uint64]*client
}

type client struct {
	id     uint64
	chatID int64
	send   chan outboundMessage
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type messagePayload struct {
	Ref      domain.MessageRef `json:"ref"`
	Text     string            `json:"text,omitempty"`
	Keyboard domain.Keyboard   `json:"keyboard,omitempty"`
}

type ackPayload struct {
	CallbackID string `json:"callbackId"`
	Text       string `json:"text"`
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:     log,
		rooms:   make(map[int64]map[uint64]*client),
		clients: make(map[uint64]*client),
	}
}

func (h *Hub) join(chatID int64) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	c := &client{id: h.nextID, chatID: chatID, send: make(chan outboundMessage, 64)}
	room, ok := h.rooms[chatID]
	if !ok {
		room = make(map[uint64]*client)
		h.rooms[chatID] = room
	}
	room[c.id] = c
	h.clients[c.id] = c
	return c
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	room := h.rooms[c.chatID]
	delete(room, c.id)
	if len(room) == 0 {
		delete(h.rooms, c.chatID)
	}
	close(c.send)
}

// Clients reports how many clients are connected to the chat.
func (h *Hub) Clients(chatID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// broadcast never blocks: a client whose buffer is full misses the message.
func (h *Hub) broadcast(chatID int64, msg outboundMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[chatID] {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Int64("chat_id", chatID).Uint64("client", c.id).Msg("client buffer full, dropping message")
		}
	}
}

func (h *Hub) SendMessage(_ context.Context, chatID int64, text string, kb domain.Keyboard) (domain.MessageRef, error) {
	h.mu.Lock()
	h.nextRef++
	ref := h.nextRef
	h.mu.Unlock()
	h.broadcast(chatID, outboundMessage{Type: "message", Payload: messagePayload{Ref: ref, Text: text, Keyboard: kb}})
	return ref, nil
}

func (h *Hub) EditMessageText(_ context.Context, chatID int64, ref domain.MessageRef, text string, kb domain.Keyboard) error {
	h.broadcast(chatID, outboundMessage{Type: "edit", Payload: messagePayload{Ref: ref, Text: text, Keyboard: kb}})
	return nil
}

func (h *Hub) EditMessageReplyMarkup(_ context.Context, chatID int64, ref domain.MessageRef, kb domain.Keyboard) error {
	h.broadcast(chatID, outboundMessage{Type: "markup", Payload: messagePayload{Ref: ref, Keyboard: kb}})
	return nil
}

// AnswerCallback delivers an acknowledgement to the client that pressed the button.
func (h *Hub) AnswerCallback(_ context.Context, callbackID, text string) error {
	id, err := clientFromCallback(callbackID)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return fmt.Errorf("%w: client %d gone", domain.ErrTransport, id)
	}
	select {
	case c.send <- outboundMessage{Type: "ack", Payload: ackPayload{CallbackID: callbackID, Text: text}}:
		return nil
	default:
		return fmt.Errorf("%w: client %d buffer full", domain.ErrTransport, id)
	}
}

// callbackID encodes the pressing client so the ack can be routed back: "<client>:<seq>".
func callbackID(c *client, seq uint64) string {
	return strconv.FormatUint(c.id, 10) + ":" + strconv.FormatUint(seq, 10)
}

func clientFromCallback(callbackID string) (uint64, error) {
	head, _, _ := strings.Cut(callbackID, ":")
	id, err := strconv.ParseUint(head, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed callback id %q", domain.ErrTransport, callbackID)
	}
	return id, nil
}
