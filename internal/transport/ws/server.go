package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"agentville.ai/internal/protocol"
	"agentville.ai/internal/sim/inputs"
)

// Engine is the part of the engine a client session talks to.
type Engine interface {
	ID() string
	WorldID() string
	Submit(ctx context.Context, name string, args json.RawMessage) (int64, error)
	WaitResult(ctx context.Context, n int64, poll time.Duration) (inputs.Result, error)
}

type Options struct {
	TickDurationMs int64
	// CommandsPerSecond <= 0 disables rate limiting.
	CommandsPerSecond float64
	CommandBurst      int
	// ResultPoll is how often a pending command is polled; defaults to the tick duration.
	ResultPoll time.Duration
}

type Server struct {
	eng  Engine
	opts Options
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(eng Engine, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.ResultPoll <= 0 {
		opts.ResultPoll = time.Duration(opts.TickDurationMs) * time.Millisecond
	}
	if opts.ResultPoll <= 0 {
		opts.ResultPoll = 16 * time.Millisecond
	}
	return &Server{
		eng:  eng,
		opts: opts,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) newLimiter() *rate.Limiter {
	if s.opts.CommandsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := s.opts.CommandBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.opts.CommandsPerSecond), burst)
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID := s.handshake(conn)
		if sessionID == "" {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		out := make(chan []byte, 64)
		var pending sync.WaitGroup

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(v any) {
			b, err := json.Marshal(v)
			if err != nil {
				return
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}

		limiter := s.newLimiter()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeCmd {
				send(errorMsg(protocol.ErrProtoBadRequest, "expected CMD"))
				continue
			}
			var cmd protocol.CmdMsg
			if err := json.Unmarshal(msg, &cmd); err != nil || cmd.ProtocolVersion != protocol.Version {
				send(errorMsg(protocol.ErrProtoBadRequest, "bad CMD"))
				continue
			}
			if !limiter.Allow() {
				send(ack(cmd.ReqID, 0, protocol.ErrRateLimit, "rate limited"))
				continue
			}
			n, err := s.eng.Submit(ctx, cmd.Name, cmd.Args)
			if err != nil {
				code := protocol.ErrBadRequest
				if errors.Is(err, protocol.ErrCommandUnknown) {
					code = protocol.ErrUnknownCommand
				}
				send(ack(cmd.ReqID, 0, code, err.Error()))
				continue
			}
			send(ack(cmd.ReqID, n, "", ""))

			pending.Add(1)
			go func(reqID string, n int64) {
				defer pending.Done()
				res, err := s.eng.WaitResult(ctx, n, s.opts.ResultPoll)
				if err != nil {
					if ctx.Err() == nil {
						s.log.Printf("session %s: result %d: %v", sessionID, n, err)
					}
					return
				}
				send(protocol.ResultMsg{
					Type:            protocol.TypeResult,
					ProtocolVersion: protocol.Version,
					ReqID:           reqID,
					Number:          n,
					OK:              res.OK,
					Error:           res.Error,
					Code:            res.Code,
				})
			}(cmd.ReqID, n)
		}

		cancel()
		pending.Wait()
	}
}

func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return ""
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return ""
	}

	sessionID := uuid.NewString()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		EngineID:        s.eng.ID(),
		WorldID:         s.eng.WorldID(),
		TickDurationMs:  s.opts.TickDurationMs,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	s.log.Printf("session %s connected (%s)", sessionID, hello.ClientName)
	return sessionID
}

func ack(reqID string, n int64, code, message string) protocol.AckMsg {
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Accepted:        code == "",
		Number:          n,
		Code:            code,
		Message:         message,
	}
}

func errorMsg(code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
