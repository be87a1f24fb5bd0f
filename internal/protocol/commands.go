package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Command names accepted by the engine's input queue.
const (
	CmdJoin              = "join"
	CmdLeave             = "leave"
	CmdSendMessage       = "sendMessage"
	CmdStartConversation = "startConversation"
	CmdAcceptInvite      = "acceptInvite"
	CmdRejectInvite      = "rejectInvite"
	CmdLeaveConversation = "leaveConversation"
	CmdFinishSpeaking    = "finishSpeaking"
	CmdWalkTo            = "walkTo"
	CmdAgentSendMessage  = "agentSendMessage"
	CmdAgentWakeUp       = "agentWakeUp"
	CmdStop              = "stop"
	CmdStart             = "start"
	CmdRestart           = "restart"
)

var commandNames = []string{
	CmdJoin,
	CmdLeave,
	CmdSendMessage,
	CmdStartConversation,
	CmdAcceptInvite,
	CmdRejectInvite,
	CmdLeaveConversation,
	CmdFinishSpeaking,
	CmdWalkTo,
	CmdAgentSendMessage,
	CmdAgentWakeUp,
	CmdStop,
	CmdStart,
	CmdRestart,
}

func Commands() []string { return append([]string(nil), commandNames...) }

func IsCommand(name string) bool {
	for _, n := range commandNames {
		if n == name {
			return true
		}
	}
	return false
}

// IsLifecycle reports whether name controls the engine rather than the world.
func IsLifecycle(name string) bool {
	return name == CmdStop || name == CmdStart || name == CmdRestart
}

type JoinArgs struct {
	Name        string `json:"name"`
	Character   string `json:"character"`
	Description string `json:"description"`
	Agent       bool   `json:"agent,omitempty"`
}

type LeaveArgs struct {
	PlayerID string `json:"playerId"`
}

type SendMessageArgs struct {
	PlayerID    string `json:"playerId"`
	Text        string `json:"text"`
	MessageUUID string `json:"messageUuid"`
}

type StartConversationArgs struct {
	PlayerID string   `json:"playerId"`
	Invitee  string   `json:"invitee,omitempty"`
	Invitees []string `json:"invitees,omitempty"`
}

// AllInvitees merges invitee and invitees, keeping first-seen order.
func (a StartConversationArgs) AllInvitees() []string {
	var out []string
	seen := map[string]bool{}
	for _, id := range append([]string{a.Invitee}, a.Invitees...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// MembershipArgs is shared by acceptInvite, rejectInvite, leaveConversation and finishSpeaking.
type MembershipArgs struct {
	PlayerID       string `json:"playerId"`
	ConversationID string `json:"conversationId"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type WalkToArgs struct {
	PlayerID    string `json:"playerId"`
	Destination Point  `json:"destination"`
}

type AgentSendMessageArgs struct {
	AgentID           string `json:"agentId"`
	Text              string `json:"text"`
	MessageUUID       string `json:"messageUuid"`
	LeaveConversation bool   `json:"leaveConversation,omitempty"`
}

type AgentWakeUpArgs struct {
	AgentID string `json:"agentId"`
}

//go:embed schemas/commands.schema.json
var commandsSchema []byte

const commandsSchemaURL = "agentville://schemas/commands.schema.json"

var ErrCommandUnknown = errors.New("unknown command")

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func compileSchemas() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(commandsSchemaURL, bytes.NewReader(commandsSchema)); err != nil {
		schemasErr = err
		return
	}
	out := make(map[string]*jsonschema.Schema, len(commandNames))
	for _, name := range commandNames {
		s, err := c.Compile(commandsSchemaURL + "#/$defs/" + name)
		if err != nil {
			schemasErr = fmt.Errorf("compile %s: %w", name, err)
			return
		}
		out[name] = s
	}
	schemas = out
}

// ValidateArgs checks raw against the command's schema. Empty args are treated as {}.
func ValidateArgs(name string, raw json.RawMessage) error {
	schemasOnce.Do(compileSchemas)
	if schemasErr != nil {
		return schemasErr
	}
	s, ok := schemas[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrCommandUnknown, name)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage(`{}`)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%s args: %w", name, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%s args: %w", name, err)
	}
	return nil
}

// DecodeArgs validates raw and unmarshals it into dst.
func DecodeArgs(name string, raw json.RawMessage, dst any) error {
	if err := ValidateArgs(name, raw); err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
