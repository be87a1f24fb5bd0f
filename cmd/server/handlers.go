package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"agentville.ai/internal/sim/engine"
	"agentville.ai/internal/transport/ws"
)

func newMux(e *engine.Engine, wsOpts ws.Options, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/world", worldHandler(e))
	mux.HandleFunc("/v1/memories", memoriesHandler(e))
	mux.HandleFunc("/v1/ws", ws.NewServer(e, wsOpts, logger).Handler())
	return mux
}

func worldHandler(e *engine.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		v, ok := e.View()
		if !ok {
			http.Error(rw, "no step has completed yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(rw, http.StatusOK, v)
	}
}

func memoriesHandler(e *engine.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		agentID := strings.TrimSpace(q.Get("agent"))
		if agentID == "" {
			http.Error(rw, "agent is required", http.StatusBadRequest)
			return
		}
		limit := 0
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				http.Error(rw, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		got, err := e.RecallMemories(r.Context(), agentID, q.Get("q"), limit)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, engine.ErrEngineNotFound) {
				status = http.StatusServiceUnavailable
			}
			http.Error(rw, err.Error(), status)
			return
		}
		out := make([]memoryView, 0, len(got))
		for _, m := range got {
			out = append(out, memoryView{
				ID:          m.ID,
				Description: m.Description,
				Kind:        string(m.Kind),
				Importance:  m.Importance,
				Created:     m.Created,
				Score:       m.Score,
			})
		}
		writeJSON(rw, http.StatusOK, map[string]any{"agent_id": agentID, "memories": out})
	}
}

// memoryView leaves out the embedding.
type memoryView struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Kind        string  `json:"kind"`
	Importance  float64 `json:"importance"`
	Created     int64   `json:"created"`
	Score       float64 `json:"score"`
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
