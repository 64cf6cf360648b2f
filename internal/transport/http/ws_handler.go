package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"quizbot/internal/app"
	"quizbot/internal/domain"
)

// QuizHandler is the slice of the quiz service the web transport drives.
type QuizHandler interface {
	HandleCommand(ctx context.Context, cmd domain.Command) error
	SubmitAnswer(ctx context.Context, ev domain.AnswerEvent) error
}

type WSHandler struct {
	service  QuizHandler
	hub      *Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service QuizHandler, hub *Hub, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type commandPayload struct {
	Text string `json:"text"`
}

type answerPayload struct {
	Data string            `json:"data"`
	Ref  domain.MessageRef `json:"ref"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// NewRouter serves the health check and the websocket endpoint.
func NewRouter(ws *WSHandler) http.Handler {
	router := httprouter.New()
	router.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Write([]byte("ok"))
	})
	router.GET("/ws/:chatId", ws.ServeWS)
	return router
}

// ServeWS upgrades HTTP requests to websockets and joins the connection to its chat room.
// Query parameters userId and name identify the participant.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	chatID, err := strconv.ParseInt(params.ByName("chatId"), 10, 64)
	if err != nil {
		http.Error(w, "invalid chatId", http.StatusBadRequest)
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid userId", http.StatusBadRequest)
		return
	}
	user := domain.User{ID: userID, Username: r.URL.Query().Get("name")}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	c := h.hub.join(chatID)
	logger := h.log.With().Int64("chat_id", chatID).Int64("user_id", userID).Uint64("client", c.id).Logger()
	logger.Debug().Msg("client joined")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	// Quiz timers outlive this request.
	ctx := context.WithoutCancel(r.Context())
	var seq uint64
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "command":
			var payload commandPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.reply(c, "invalid command payload")
				continue
			}
			name, args, ok := app.ParseCommand(payload.Text)
			if !ok {
				h.reply(c, "commands start with /")
				continue
			}
			if err := h.service.HandleCommand(ctx, domain.Command{ChatID: chatID, User: user, Name: name, Args: args}); err != nil {
				logger.Debug().Err(err).Str("command", name).Msg("command rejected")
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.reply(c, "invalid answer payload")
				continue
			}
			seq++
			ev := domain.AnswerEvent{
				ChatID:     chatID,
				User:       user,
				Value:      payload.Data,
				CallbackID: callbackID(c, seq),
				MessageRef: payload.Ref,
			}
			if err := h.service.SubmitAnswer(ctx, ev); err != nil {
				logger.Debug().Err(err).Msg("answer rejected")
			}
		default:
			h.reply(c, "unsupported message type")
		}
	}

	h.hub.leave(c)
	<-writerDone
	logger.Debug().Msg("client left")
}

func (h *WSHandler) reply(c *client, message string) {
	select {
	case c.send <- outboundMessage{Type: "error", Payload: errorPayload{Message: message}}:
	default:
	}
}
