package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"studyquiz/internal/app"
	"studyquiz/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the session socket on mux.
func (h *WSHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.ServeWS)
}

type sessionQuery struct {
	QuizID string `validate:"required,max=128"`
	UserID string `validate:"required,max=128"`
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Position    int `json:"position" validate:"min=0"`
	OptionIndex int `json:"optionIndex" validate:"min=0"`
}

type navigatePayload struct {
	Direction int  `json:"direction" validate:"min=-1,max=1"`
	Position  *int `json:"position,omitempty" validate:"omitempty,min=0"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and runs one quiz session over the connection.
// Closing the socket before submitting abandons the session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := sessionQuery{
		QuizID: r.URL.Query().Get("quizId"),
		UserID: r.URL.Query().Get("userId"),
	}
	if err := validate.Struct(query); err != nil {
		http.Error(w, "missing or invalid quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.StartSession(r.Context(), query.UserID, query.QuizID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.service.Abandon(r.Context(), session.ID())

	events, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: ev.Type, Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(typ string, payload any) {
		select {
		case send <- outboundMessage[any]{Type: typ, Payload: payload}:
		case <-writerDone:
		}
	}
	fail := func(err error) {
		reply("error", errorPayload{Message: err.Error()})
	}

	reply("started", session.View())

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := decodePayload(inbound.Payload, &payload); err != nil {
				fail(errors.New("invalid answer payload"))
				continue
			}
			if err := session.SelectAnswer(payload.Position, payload.OptionIndex); err != nil {
				fail(err)
				continue
			}
			reply("session", session.View())
		case "navigate":
			var payload navigatePayload
			if err := decodePayload(inbound.Payload, &payload); err != nil {
				fail(errors.New("invalid navigate payload"))
				continue
			}
			if payload.Position != nil {
				if _, err := session.GoTo(*payload.Position); err != nil {
					fail(err)
					continue
				}
			} else {
				session.Navigate(payload.Direction)
			}
			reply("session", session.View())
		case "submit":
			// the completed event carries the result, also when the write failed
			if _, err := session.Submit(r.Context()); err != nil && !errors.Is(err, domain.ErrAlreadySubmitted) {
				fail(err)
			}
		case "retry":
			if err := h.service.RetryPersist(r.Context(), session.ID()); err != nil {
				fail(err)
				continue
			}
			reply("persisted", session.View())
		default:
			fail(errors.New("unsupported message type"))
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return err
		}
	}
	return validate.Struct(dst)
}
