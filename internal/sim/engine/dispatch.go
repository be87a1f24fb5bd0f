package engine

import (
	"errors"

	"agentville.ai/internal/protocol"
	"agentville.ai/internal/sim/inputs"
	"agentville.ai/internal/sim/world"
	"agentville.ai/internal/sim/world/kernel/model"
)

type joinResult struct {
	PlayerID string `json:"playerId"`
}

type conversationResult struct {
	ConversationID string `json:"conversationId"`
}

type wakeResult struct {
	Woke bool `json:"woke"`
}

type leaveResult struct {
	Removed bool `json:"removed"`
}

// replayRecordInput repeats the engine-record side of an input whose world
// effect is already stored.
func replayRecordInput(rec *Record, in inputs.Input) {
	switch in.Name {
	case protocol.CmdStop:
		rec.Running = false
	case protocol.CmdStart:
		rec.Running = true
	}
}

// apply runs one input against the world. Failures become error results and
// never abort the step.
func (e *Engine) apply(w *world.World, rec *Record, in inputs.Input, now int64) inputs.Result {
	switch in.Name {
	case protocol.CmdStop:
		rec.Running = false
		return inputs.OK(nil)
	case protocol.CmdStart:
		rec.Running = true
		return inputs.OK(nil)
	case protocol.CmdRestart:
		w.Restart(now)
		if err := e.seedCharacters(w, now); err != nil {
			return failure(err)
		}
		e.logger.Printf("engine %s restarted world %s", rec.ID, rec.WorldID)
		return inputs.OK(nil)

	case protocol.CmdJoin:
		var a protocol.JoinArgs
		if err := protocol.DecodeArgs(in.Name, in.Args, &a); err != nil {
			return inputs.Fail(protocol.ErrBadRequest, err)
		}
		p, err := w.AddPlayer(a.Name, a.Character, a.Description, a.Agent, now)
		if err != nil {
			return failure(err)
		}
		return inputs.OK(joinResult{PlayerID: p.EntityID()})

	case protocol.CmdLeave:
		var a protocol.LeaveArgs
		if err := protocol.DecodeArgs(in.Name, in.Args, &a); err != nil {
			return inputs.Fail(protocol.ErrBadRequest, err)
		}
		return inputs.OK(leaveResult{Removed: w.RemovePlayer(a.PlayerID, now)})

	case protocol.CmdSendMessage:
		var a protocol.SendMessageArgs
		if err := protocol.DecodeArgs(in.Name, in.Args, &a); err != nil {
			return inputs.Fail(protocol.ErrBadRequest, err)
		}
		m, err := w.SendMessage(a.PlayerID, a.Text, a.MessageUUID, now)
		if err != nil {
			return failure(err)
		}
		return inputs.OK(m)

	case protocol.CmdStartConversation:
		var a protocol.StartConversationArgs
		if err := protocol.DecodeArgs(in.Name, in.Args, &a); err != nil {
			return inputs.Fail(protocol.ErrBadRequest, err)
		}
		c, err := w.StartConversation(a.PlayerID, a.AllInvitees(), now)
		if err != nil {
			return failure(err)
		}
		return inputs.OK(conversationResult{ConversationID: c.ID})

	case protocol.CmdAcceptInvite, protocol.CmdRejectInvite, protocol.CmdLeaveConversation, protocol.CmdFinishSpeaking:
		var a protocol.MembershipArgs
		if err := protocol.DecodeArgs(in.Name, in.Args, &a); err != nil {
			return inputs.Fail(protocol.ErrBadRequest, err)
		}
		var err error
		switch in.Name {
		case protocol.CmdAcceptInvite:
			err = w.AcceptInvite(a.PlayerID, a.ConversationID, now)
		case protocol.CmdRejectInvite:
			err = w.RejectInvite(a.PlayerID, a.ConversationID, now)
		case protocol.CmdLeaveConversation:
			err = w.LeaveConversation(a.PlayerID, a.ConversationID, now)
		default:
			err = w.FinishSpeaking(a.PlayerID, a.ConversationID, now)
		}
		if err != nil {
			return failure(err)
		}
		return inputs.OK(nil)

	case protocol.CmdWalkTo:
		var a protocol.WalkToArgs
		if err := protocol.DecodeArgs(in.Name, in.Args, &a); err != nil {
			return inputs.Fail(protocol.ErrBadRequest, err)
		}
		if err := w.WalkTo(a.PlayerID, model.Vec2{X: a.Destination.X, Y: a.Destination.Y}, now); err != nil {
			return failure(err)
		}
		return inputs.OK(nil)

	case protocol.CmdAgentSendMessage:
		var a protocol.AgentSendMessageArgs
		if err := protocol.DecodeArgs(in.Name, in.Args, &a); err != nil {
			return inputs.Fail(protocol.ErrBadRequest, err)
		}
		m, err := w.AgentSendMessage(a.AgentID, a.Text, a.MessageUUID, a.LeaveConversation, now)
		if err != nil {
			return failure(err)
		}
		return inputs.OK(m)

	case protocol.CmdAgentWakeUp:
		var a protocol.AgentWakeUpArgs
		if err := protocol.DecodeArgs(in.Name, in.Args, &a); err != nil {
			return inputs.Fail(protocol.ErrBadRequest, err)
		}
		woke, err := w.AgentWakeUp(a.AgentID, now)
		if err != nil {
			return failure(err)
		}
		return inputs.OK(wakeResult{Woke: woke})
	}
	return inputs.Fail(protocol.ErrUnknownCommand, protocol.ErrCommandUnknown)
}

func failure(err error) inputs.Result { return inputs.Fail(CodeFor(err), err) }

// CodeFor maps a command error onto a protocol error code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, protocol.ErrCommandUnknown):
		return protocol.ErrUnknownCommand
	case errors.Is(err, world.ErrPlayerNotFound),
		errors.Is(err, world.ErrConversationNotFound),
		errors.Is(err, world.ErrWorldNotFound),
		errors.Is(err, ErrEngineNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, world.ErrInvalidArgs),
		errors.Is(err, world.ErrNotAgent):
		return protocol.ErrBadRequest
	case errors.Is(err, world.ErrAlreadyInConversation),
		errors.Is(err, world.ErrNotInConversation),
		errors.Is(err, model.ErrNotInvited),
		errors.Is(err, model.ErrNotParticipant):
		return protocol.ErrConflict
	case errors.Is(err, model.ErrBusy):
		return protocol.ErrBusy
	case errors.Is(err, model.ErrNotActive),
		errors.Is(err, model.ErrEnded):
		return protocol.ErrNotActive
	case errors.Is(err, model.ErrNotYourTurn),
		errors.Is(err, model.ErrNotSpeaker):
		return protocol.ErrNotYourTurn
	case errors.Is(err, ErrStaleGeneration):
		return protocol.ErrStale
	}
	return protocol.ErrInternal
}
