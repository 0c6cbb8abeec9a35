package domain

import "encoding/json"

// Ack is one entry of an acknowledgement collection.
// Response is empty when the connection did not answer in time.
type Ack struct {
	ID       ConnID          `json:"id"`
	Acked    bool            `json:"acked"`
	Response json.RawMessage `json:"response,omitempty"`
}
