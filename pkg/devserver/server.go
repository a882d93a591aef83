// verge/pkg/devserver/server.go

package devserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"verge/pkg/graph"
	"verge/pkg/logging"
	"verge/pkg/payload"
	"verge/pkg/store"
)

// EngineName and EngineVersion identify the dev channel in the
// introspection response, where the real edge reports its compute
// engine.
const (
	EngineName    = "verge-dev"
	EngineVersion = "1.0.0"
)

// DevServiceID is the pseudo service the dev channel stores payloads
// under.
const DevServiceID = "dev"

// Server is the local development channel: it mirrors the remote
// payload contract so the editor can iterate offline, and feeds
// connected editors deployment events over a websocket.
type Server struct {
	store store.Store
	port  int

	clients      map[*websocket.Conn]bool
	clientsMutex sync.Mutex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // The channel only binds to localhost.
	},
}

func New(st store.Store, port int) *Server {
	return &Server{
		store:   st,
		port:    port,
		clients: make(map[*websocket.Conn]bool),
	}
}

// Handler builds the route table; exposed separately so tests can mount
// it on httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/compute-status", s.handleComputeStatus)
	mux.HandleFunc("/rules", s.handleRules)
	mux.HandleFunc("/events", s.handleEvents)
	return mux
}

// Start blocks serving the channel on localhost.
func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	logging.Logger.Info().Str("addr", addr).Msg("Development channel listening")
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	allowCORS(w)
	fmt.Fprint(w, "ok")
}

// handleComputeStatus mirrors the edge engine's /_version response so
// the deployment verifier works against the dev channel unmodified.
func (s *Server) handleComputeStatus(w http.ResponseWriter, r *http.Request) {
	allowCORS(w)

	status := map[string]interface{}{
		"engine":  EngineName,
		"version": EngineVersion,
		"format":  "graph",
	}

	env, err := s.store.GetPayload(DevServiceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if env == nil {
		status["rules_hash"] = "none"
	} else {
		hash, err := payload.HashPacked(env.RulesPacked)
		if err != nil {
			status["rules_hash"] = "none"
		} else {
			status["rules_hash"] = hash
			if g := s.parseStored(env); g != nil {
				status["nodes_count"] = len(g.Nodes)
				status["edges_count"] = len(g.Edges)
			}
		}
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	allowCORS(w)

	switch r.Method {
	case http.MethodGet:
		env, err := s.store.GetPayload(DevServiceID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if env == nil {
			writeError(w, http.StatusNotFound, "no rules deployed")
			return
		}
		writeJSON(w, http.StatusOK, env)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		var req struct {
			RulesPacked string `json:"rules_packed"`
		}
		if err := json.Unmarshal(body, &req); err != nil || req.RulesPacked == "" {
			writeError(w, http.StatusBadRequest, "body must be JSON with a rules_packed field")
			return
		}

		// Validate by unpacking before accepting.
		jsonData, err := payload.Unpack(req.RulesPacked)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid rules_packed: %v", err))
			return
		}
		g, err := graph.Parse(jsonData)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("payload is not a graph: %v", err))
			return
		}

		env := &payload.Envelope{
			Version:     EngineVersion,
			DeployedAt:  time.Now().UTC().Format(time.RFC3339),
			RulesPacked: req.RulesPacked,
		}
		if err := s.store.SetPayload(DevServiceID, env); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		hash, _ := payload.HashPacked(req.RulesPacked)
		logging.Logger.Info().
			Str("hash", hash).
			Int("nodes", len(g.Nodes)).
			Int("edges", len(g.Edges)).
			Msg("Dev channel accepted rules")

		s.broadcast(map[string]interface{}{
			"status":     "deployed",
			"rules_hash": hash,
			"nodesCount": len(g.Nodes),
			"edgesCount": len(g.Edges),
		})

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "rules_hash": hash})

	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Error upgrading to WebSocket")
		return
	}
	defer conn.Close()

	logging.Logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Editor connected to events feed")

	s.clientsMutex.Lock()
	s.clients[conn] = true
	s.clientsMutex.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.clientsMutex.Lock()
	delete(s.clients, conn)
	s.clientsMutex.Unlock()

	logging.Logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Editor disconnected from events feed")
}

// broadcast pushes one event to every connected editor, dropping dead
// connections.
func (s *Server) broadcast(event map[string]interface{}) {
	message, err := json.Marshal(event)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Error marshaling event")
		return
	}

	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()
	for client := range s.clients {
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Logger.Debug().Err(err).Msg("Dropping dead events client")
			client.Close()
			delete(s.clients, client)
		}
	}
}

func (s *Server) parseStored(env *payload.Envelope) *graph.Graph {
	jsonData, err := payload.Unpack(env.RulesPacked)
	if err != nil {
		return nil
	}
	g, err := graph.Parse(jsonData)
	if err != nil {
		return nil
	}
	return g
}

func allowCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
