package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleAck(
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type string          `json:"type"`
		ID   uint64          `json:"id"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ID == 0 {
		log.Warn().Str("module", "signal").Str("sid", string(conn.ID())).Msg("bad ack payload")
		return
	}
	if !conn.resolveAck(p.ID, p.Data) {
		log.Debug().Str("module", "signal").Str("sid", string(conn.ID())).Uint64("ack", p.ID).Msg("late or unknown ack")
	}
}
