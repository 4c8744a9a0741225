package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/risefall-round-service/internal/round-service/engine"
	"github.com/radieske/risefall-round-service/internal/shared/metrics"
)

const (
	sendBuffer   = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	maxReadBytes = 4096
)

// Game é o que o Hub precisa do motor de rodadas
type Game interface {
	Join(sess engine.Session)
	PlaceBet(ctx context.Context, sess engine.Session, req engine.BetRequest) (engine.Receipt, error)
}

// Hub gerencia conexões WebSocket e salas (pública de rodada e privadas por usuário)
// rooms: mapeia nome da sala para o conjunto de conexões inscritas
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	game     Game

	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS).
// game pode ser definido depois com SetGame, antes de aceitar conexões.
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		rooms:    make(map[string]map[*Conn]struct{}),
	}
}

func (h *Hub) SetGame(g Game) { h.game = g }

// Conn é uma conexão WebSocket; implementa engine.Session
type Conn struct {
	hub       *Hub
	ws        *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &Conn{
		hub:  h,
		ws:   wsConn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	metrics.ConnectionOpened()
	defer metrics.ConnectionClosed()

	go c.writePump()
	c.readLoop(r.Context())

	h.leaveAll(c)
	c.close()
}

func (c *Conn) readLoop(ctx context.Context) {
	c.ws.SetReadLimit(maxReadBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMsg
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("ws read failed", zap.Error(err))
			}
			return
		}
		c.handle(ctx, msg)
	}
}

func (c *Conn) handle(ctx context.Context, msg ClientMsg) {
	switch msg.Type {
	case MsgJoin:
		// qualquer join entra na sala da rodada e recebe o snapshot;
		// um nome de sala diferente (ex: id do usuário) é uma inscrição adicional
		c.hub.join(RoundRoom, c)
		if msg.Room != "" && msg.Room != RoundRoom {
			c.hub.join(msg.Room, c)
		}
		if c.hub.game != nil {
			c.hub.game.Join(c)
		}
	case MsgPlaceBet:
		if c.hub.game == nil {
			return
		}
		var req engine.BetRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.Send(engine.EventBetError, engine.BetErrorMsg{
				Code:    string(engine.KindValidation),
				Message: "Invalid request",
			})
			return
		}
		// rejeições já foram entregues a esta conexão pelo motor
		_, _ = c.hub.game.PlaceBet(ctx, c, req)
	case MsgPing:
		c.Send("pong", nil)
	}
}

// JoinPrivate inscreve a conexão na sala privada do usuário
func (c *Conn) JoinPrivate(userID string) {
	c.hub.join(userRoom(userID), c)
}

// Send envia um evento somente para esta conexão
func (c *Conn) Send(event string, payload any) {
	b, err := json.Marshal(ServerMsg{Type: event, Payload: payload})
	if err != nil {
		c.hub.log.Error("ws marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	c.enqueue(b)
}

// enqueue nunca bloqueia: cliente lento com buffer cheio é desconectado
func (c *Conn) enqueue(b []byte) {
	select {
	case <-c.done:
	case c.send <- b:
	default:
		c.hub.log.Warn("ws send buffer full; closing connection")
		c.close()
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (h *Hub) join(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Conn]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

// leaveAll remove a conexão de todas as salas ao desconectar
func (h *Hub) leaveAll(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, set := range h.rooms {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, name)
		}
	}
}

// Deliver entrega uma mensagem já serializada para todos os membros da sala
func (h *Hub) Deliver(room string, b []byte) {
	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.enqueue(b)
	}
}

// Broadcast envia o evento para todos os inscritos na sala da rodada
func (h *Hub) Broadcast(event string, payload any) {
	h.publish(RoundRoom, event, payload)
}

// SendToUser envia o evento para todas as conexões do usuário
func (h *Hub) SendToUser(userID string, event string, payload any) {
	h.publish(userRoom(userID), event, payload)
}

func (h *Hub) publish(room, event string, payload any) {
	b, err := json.Marshal(ServerMsg{Type: event, Payload: payload})
	if err != nil {
		h.log.Error("ws marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.Deliver(room, b)
}

// Members retorna quantas conexões estão na sala
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
