package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrUnknownCommand  = "E_UNKNOWN_COMMAND"
	ErrRateLimit       = "E_RATE_LIMIT"

	// Command validation against world state.
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrNotFound    = "E_NOT_FOUND"
	ErrConflict    = "E_CONFLICT"
	ErrBusy        = "E_BUSY"
	ErrNotActive   = "E_NOT_ACTIVE"
	ErrNotYourTurn = "E_NOT_YOUR_TURN"

	// Engine.
	ErrStale    = "E_STALE"
	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrUnknownCommand:  {},
	ErrRateLimit:       {},
	ErrBadRequest:      {},
	ErrNotFound:        {},
	ErrConflict:        {},
	ErrBusy:            {},
	ErrNotActive:       {},
	ErrNotYourTurn:     {},
	ErrStale:           {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
