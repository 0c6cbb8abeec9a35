package domain

// RoomName names a fan-out target. Rooms have no state of their own; a room is
// the set of connections whose membership contains its name.
type RoomName string

// RoomNames converts raw names, dropping empty ones.
func RoomNames(raw ...string) []RoomName {
	out := make([]RoomName, 0, len(raw))
	for _, r := range raw {
		if r == "" {
			continue
		}
		out = append(out, RoomName(r))
	}
	return out
}
