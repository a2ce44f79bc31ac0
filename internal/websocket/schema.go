package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing     Action = "ping"
	ActionSnapshot Action = "snapshot"
)

// RequestEnvelope is the only client message shape; the push channel is
// read-only apart from keepalive and state refresh.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────
// Session events (timer_update, time_expired, exam_paused, exam_resumed,
// session_completed) are forwarded as {"event": name, "data": payload}.

type Event string

const (
	EventError    Event = "error"
	EventSnapshot Event = "snapshot"
	EventPong     Event = "pong"
)

// SnapshotResponse carries the session state, sent on connect and on request.
type SnapshotResponse struct {
	Event Event `json:"event"`
	Data  any   `json:"data"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
