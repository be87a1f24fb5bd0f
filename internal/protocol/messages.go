package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	EngineID        string `json:"engine_id"`
	WorldID         string `json:"world_id"`
	TickDurationMs  int64  `json:"tick_duration_ms"`
}

// CMD (client -> server): one command for the engine's input queue.
type CmdMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ReqID           string          `json:"req_id"`
	Name            string          `json:"name"`
	Args            json.RawMessage `json:"args,omitempty"`
}

// ACK (server -> client): the command was (or was not) queued.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Accepted        bool   `json:"accepted"`
	Number          int64  `json:"number,omitempty"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}

// RESULT (server -> client): the outcome written back to the input log.
type ResultMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ReqID           string          `json:"req_id"`
	Number          int64           `json:"number"`
	OK              json.RawMessage `json:"ok,omitempty"`
	Error           string          `json:"error,omitempty"`
	Code            string          `json:"code,omitempty"`
}

// ERROR (server -> client): a transport-level problem not tied to a queued command.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
