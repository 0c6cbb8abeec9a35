package signal

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	sendBuffer   = 64
	writeWait    = 5 * time.Second
	closeTimeout = time.Second
	pingDefault  = 25 * time.Second
)

type SignalWSController struct {
	Orch *orch.Orchestrator

	upgrader   websocket.Upgrader
	limiter    *ConnectRateLimiter
	readLimit  int64
	pingPeriod time.Duration
}

func NewSignalWSController(o *orch.Orchestrator, cfg *config.Config) *SignalWSController {
	ctl := &SignalWSController{
		Orch:       o,
		limiter:    NewConnectRateLimiter(cfg.ConnectRate),
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
	}
	if ctl.pingPeriod <= 0 {
		ctl.pingPeriod = pingDefault
	}
	ctl.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || cfg.OriginAllowed(origin)
	}
	return ctl
}

// WsSignalConn is the transport endpoint of one admitted client.
type WsSignalConn struct {
	id   domain.ConnID
	conn *websocket.Conn
	send chan core.Frame
	done chan struct{}

	mu     sync.RWMutex
	closed bool

	ackSeq  atomic.Uint64
	pending sync.Map // uint64 -> chan json.RawMessage
}

func newWsSignalConn(id domain.ConnID, ws *websocket.Conn) *WsSignalConn {
	return &WsSignalConn{
		id:   id,
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
		done: make(chan struct{}),
	}
}

type eventFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	ID    uint64          `json:"id,omitempty"`
}

func (c *WsSignalConn) ID() domain.ConnID { return c.id }

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Emit(event string, payload json.RawMessage) error {
	return c.sendEvent(eventFrame{Type: "event", Event: event, Data: payload})
}

func (c *WsSignalConn) EmitWithAck(ctx context.Context, event string, payload json.RawMessage) (json.RawMessage, error) {
	id := c.ackSeq.Add(1)
	ch := make(chan json.RawMessage, 1)
	c.pending.Store(id, ch)
	defer c.pending.Delete(id)

	if err := c.sendEvent(eventFrame{Type: "event", Event: event, Data: payload, ID: id}); err != nil {
		return nil, err
	}
	select {
	case resp := <-ch:
		return resp, nil
	case <-c.done:
		return nil, core.ErrConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *WsSignalConn) sendEvent(f eventFrame) error {
	if len(f.Data) == 0 {
		f.Data = json.RawMessage("null")
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.TrySend(b)
}

// resolveAck hands a client response to the waiting EmitWithAck call.
func (c *WsSignalConn) resolveAck(id uint64, data json.RawMessage) bool {
	v, ok := c.pending.LoadAndDelete(id)
	if !ok {
		return false
	}
	v.(chan json.RawMessage) <- data
	return true
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	addr := remoteHost(c.Request)
	if !ctl.limiter.Allow(addr) {
		log.Warn().Str("module", "signal").Str("addr", addr).Msg("connection rate limit exceeded")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	sid := domain.NewConnID()
	creds := credentialsFrom(c.Request)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("addr", addr).Msg("new WS connection")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("ws upgrade")
		return
	}

	out := ctl.Orch.Admit(ctx, sid, creds)
	if out.Rejected() {
		ctl.reject(ws, out.Reason.Message())
		return
	}

	conn := newWsSignalConn(sid, ws)
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}
	rooms := ctl.Orch.Attach(conn, out)
	if rooms == nil {
		rooms = []domain.RoomName{}
	}

	hello := struct {
		Type  string            `json:"type"`
		ID    domain.ConnID     `json:"id"`
		Rooms []domain.RoomName `json:"rooms"`
	}{
		Type:  "connect",
		ID:    sid,
		Rooms: rooms,
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(hello); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("write connect frame")
		conn.Close()
		ctl.Orch.Disconnect(sid, "handshake write failed")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}

func (ctl *SignalWSController) reject(ws *websocket.Conn, message string) {
	resp := struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{
		Type:    "connect_error",
		Message: message,
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(resp); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("write connect_error")
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message),
		time.Now().Add(closeTimeout))
	_ = ws.Close()
}

// credentialsFrom reads the handshake token from the query or the
// Authorization header, and the raw Cookie header.
func credentialsFrom(r *http.Request) domain.Credentials {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			token = strings.TrimSpace(h[7:])
		}
	}
	return domain.Credentials{
		Token:  token,
		Cookie: r.Header.Get("Cookie"),
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
