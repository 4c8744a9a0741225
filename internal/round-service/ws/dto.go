package ws

import "encoding/json"

// Tipos de mensagem aceitos do cliente
const (
	MsgJoin     = "round:join"
	MsgPlaceBet = "bet:place"
	MsgPing     = "ping"
)

// RoundRoom é a sala pública que recebe os broadcasts de rodada
const RoundRoom = "round"

// ClientMsg representa uma mensagem recebida do cliente WebSocket.
// Data carrega o corpo específico do tipo (ex: BetRequest em bet:place).
type ClientMsg struct {
	Type string          `json:"type"`
	Room string          `json:"room,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMsg é o envelope de toda mensagem enviada ao cliente
type ServerMsg struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

func userRoom(userID string) string { return "user:" + userID }
