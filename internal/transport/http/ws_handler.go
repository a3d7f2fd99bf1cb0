package http

import (
	"encoding/json"
	"net/http"

	"summit-trivia-service/internal/app"
	"summit-trivia-service/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSHandler upgrades players and hosts onto websockets and wires them into
// the game use cases. Players join with a session id or join code plus a
// name; hosts connect with their host key and drive the phase machine.
type WSHandler struct {
	service  *app.GameService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
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

type answerPayload struct {
	QuestionID  string `json:"questionId"`
	OptionIndex int    `json:"optionIndex"`
}

type kickPayload struct {
	PlayerID string `json:"playerId"`
}

type thresholdPayload struct {
	SummitThreshold float64 `json:"summitThreshold"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string      `json:"message"`
	Kind    domain.Kind `json:"kind"`
}

type previousPhaseResult struct {
	IsDestructive bool `json:"isDestructive"`
}

// stateUpdate is one push to a connected client: the session snapshot plus
// the climbing projection rebuilt for it.
type stateUpdate struct {
	app.Snapshot
	Climb *domain.ClimbingState `json:"climb"`
}

// ServeWS handles both player and host connections.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	code := r.URL.Query().Get("code")
	name := r.URL.Query().Get("name")
	hostKey := r.URL.Query().Get("hostKey")

	isHost := hostKey != ""
	if !isHost && name == "" {
		http.Error(w, "missing name or hostKey", http.StatusBadRequest)
		return
	}
	if sessionID == "" && code == "" {
		http.Error(w, "missing sessionId or code", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	var player domain.Player
	if isHost {
		if sessionID == "" {
			session, err := h.service.GetSessionByCode(code)
			if err != nil {
				_ = conn.WriteJSON(errorMessage(err))
				return
			}
			sessionID = session.ID
		}
		if _, err := h.service.GetSession(sessionID); err != nil {
			_ = conn.WriteJSON(errorMessage(err))
			return
		}
	} else {
		if code != "" {
			player, err = h.service.JoinByCode(code, name)
		} else {
			player, err = h.service.Join(sessionID, name)
		}
		if err != nil {
			_ = conn.WriteJSON(errorMessage(err))
			return
		}
		sessionID = player.SessionID
	}

	updates, cancel, err := h.service.Subscribe(sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()
	if !isHost {
		defer h.service.Disconnect(sessionID, player.ID)
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				climb, _ := h.service.GetRopeClimbingState(r.Context(), sessionID)
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: stateUpdate{Snapshot: update, Climb: climb}}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if !isHost {
		send <- outboundMessage[any]{Type: "joined", Payload: player}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if isHost {
			h.handleHostMessage(r, send, sessionID, hostKey, inbound)
		} else {
			h.handlePlayerMessage(r, send, sessionID, player.ID, inbound)
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handlePlayerMessage(r *http.Request, send chan outboundMessage[any], sessionID, playerID string, inbound inboundMessage) {
	switch inbound.Type {
	case "heartbeat":
		h.service.Heartbeat(sessionID, playerID)
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload", Kind: domain.KindValidation}}
			return
		}
		answer, err := h.service.SubmitAnswer(r.Context(), payload.QuestionID, playerID, payload.OptionIndex)
		if err != nil {
			send <- errorMessage(err)
			return
		}
		send <- outboundMessage[any]{Type: "answerAck", Payload: answer}
	default:
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type", Kind: domain.KindValidation}}
	}
}

func (h *WSHandler) handleHostMessage(r *http.Request, send chan outboundMessage[any], sessionID, hostKey string, inbound inboundMessage) {
	var err error
	switch inbound.Type {
	case "start":
		err = h.service.StartGame(r.Context(), sessionID, hostKey)
	case "nextQuestion":
		_, err = h.service.NextQuestion(r.Context(), sessionID, hostKey)
	case "showAnswers":
		err = h.service.ShowAnswers(sessionID, hostKey)
	case "revealAnswer":
		err = h.service.RevealAnswer(r.Context(), sessionID, hostKey)
	case "showResults":
		err = h.service.ShowResults(sessionID, hostKey)
	case "previousPhase":
		var destructive bool
		destructive, err = h.service.PreviousPhase(r.Context(), sessionID, hostKey)
		if err == nil {
			send <- outboundMessage[any]{Type: "previousPhase", Payload: previousPhaseResult{IsDestructive: destructive}}
		}
	case "finish":
		err = h.service.FinishGame(sessionID, hostKey)
	case "backToLobby":
		err = h.service.BackToLobby(sessionID, hostKey)
	case "kick":
		var payload kickPayload
		if err = json.Unmarshal(inbound.Payload, &payload); err == nil {
			err = h.service.Kick(sessionID, hostKey, payload.PlayerID)
		}
	case "setSummitThreshold":
		var payload thresholdPayload
		if err = json.Unmarshal(inbound.Payload, &payload); err == nil {
			err = h.service.SetSummitThreshold(sessionID, hostKey, payload.SummitThreshold)
		}
	default:
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type", Kind: domain.KindValidation}}
		return
	}
	if err != nil {
		send <- errorMessage(err)
	}
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{
		Message: err.Error(),
		Kind:    domain.KindOf(err),
	}}
}
