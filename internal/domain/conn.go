// Package domain contains entity without logic, just meta-data
package domain

import "github.com/google/uuid"

// ConnID identifies one transport session. It is never reused.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// Credentials are what a client presented during the handshake.
type Credentials struct {
	Token  string
	Cookie string
}

func (c Credentials) HasToken() bool { return c.Token != "" }
