package world

import "errors"

var (
	ErrWorldNotFound         = errors.New("world not found")
	ErrPlayerNotFound        = errors.New("player not found")
	ErrNotAgent              = errors.New("player is not an agent")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrAlreadyInConversation = errors.New("already in a conversation")
	ErrNotInConversation     = errors.New("not in a conversation")
	ErrInvalidArgs           = errors.New("invalid arguments")
)
