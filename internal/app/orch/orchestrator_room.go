package orch

import (
	"errors"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinRoom adds a connection to rooms on behalf of the control plane.
// A missing connection is not an error; the result only reports whether it was found.
func (o *Orchestrator) JoinRoom(sid domain.ConnID, rooms ...domain.RoomName) bool {
	err := o.Registry.Join(sid, rooms...)
	if errors.Is(err, app.ErrConnNotFound) {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("join: connection not found")
		return false
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Int("rooms", len(rooms)).Msg("joined rooms")
	return true
}

// LeaveRoom is the inverse of JoinRoom.
func (o *Orchestrator) LeaveRoom(sid domain.ConnID, rooms ...domain.RoomName) bool {
	if err := o.Registry.Leave(sid, rooms...); err != nil {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("leave: connection not found")
		return false
	}
	return true
}
