package model

// Participant is the capability shared by players and agents, so world queries
// run over one collection instead of two maps.
type Participant interface {
	EntityID() string
	Pos() Vec2
	ActiveConversation() string
	Base() *Player
	IsAgent() bool
}

var (
	_ Participant = (*Player)(nil)
	_ Participant = (*Agent)(nil)
)
