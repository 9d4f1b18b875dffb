// Package web serves the extracted model over HTTP: the rendered DOT
// file for download, a JSON view of the model graph, and SSE streams
// that push status and model updates while watch mode re-extracts.
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/vfgtools/vfg-extract/pkg/extract"
	"github.com/vfgtools/vfg-extract/pkg/logging"
	"github.com/vfgtools/vfg-extract/pkg/pubsub"
)

// GraphNode represents a node of the model graph in the JSON view
type GraphNode struct {
	ID    uint64 `json:"id"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

// GraphEdge represents an edge of the model graph in the JSON view
type GraphEdge struct {
	Source uint64 `json:"source"`
	Target uint64 `json:"target"`
}

// GraphData holds the model graph for clients
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	publisher pubsub.Publisher

	mu     sync.RWMutex
	model  *extract.Model
	status pubsub.ExtractionStatus
}

// NewServer creates a new web server
func NewServer() *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// status: replay only the current state to new subscribers
	ssePublisher.ConfigureTopic("status", pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})

	// model: replay only the latest extraction result
	ssePublisher.ConfigureTopic("model", pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})

	s := &Server{
		router:    mux.NewRouter(),
		publisher: ssePublisher,
	}
	s.setupRoutes()
	return s
}

// SetModel stores the latest extraction result
func (s *Server) SetModel(m *extract.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = m
}

// PublishStatus publishes an extraction status event
func (s *Server) PublishStatus(state, message, input string) error {
	status := pubsub.ExtractionStatus{
		State:   state,
		Message: message,
		Input:   input,
	}
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	return s.publisher.Publish("status", state, status)
}

// PublishModel publishes a model update event
func (s *Server) PublishModel(eventType string, complete bool) error {
	s.mu.RLock()
	var nodeCount, edgeCount int
	if s.model != nil {
		for _, n := range s.model.Nodes() {
			nodeCount++
			edgeCount += len(n.Lower())
		}
	}
	s.mu.RUnlock()

	data := pubsub.ModelData{
		NodeCount: nodeCount,
		EdgeCount: edgeCount,
		Complete:  complete,
	}
	return s.publisher.Publish("model", eventType, data)
}

func (s *Server) setupRoutes() {
	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/status", s.handleSubscribe("status")).Methods("GET")
	s.router.HandleFunc("/api/subscribe/model", s.handleSubscribe("model")).Methods("GET")

	// API routes
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/model", s.handleModel).Methods("GET")

	// Rendered model for download
	s.router.HandleFunc("/model.dot", s.handleModelDot).Methods("GET")

	s.router.Use(logging.RequestIDMiddleware)
}

// handleSubscribe streams events for one topic over SSE
func (s *Server) handleSubscribe(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		// Initial comment establishes the connection (Safari compatibility)
		fmt.Fprintf(w, ": connected\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		sub, err := s.publisher.Subscribe(r.Context(), topic)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer sub.Close()

		for event := range sub.Events() {
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.ErrorContext(r.Context(), "error writing SSE event", "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	model := s.model
	s.mu.RUnlock()

	if model == nil {
		http.Error(w, "model not ready", http.StatusServiceUnavailable)
		return
	}

	data := GraphData{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	for _, n := range model.Nodes() {
		data.Nodes = append(data.Nodes, GraphNode{
			ID:    n.ID,
			Kind:  n.Kind.String(),
			Label: n.Label,
		})
		for _, lower := range n.Lower() {
			data.Edges = append(data.Edges, GraphEdge{Source: n.ID, Target: lower})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) handleModelDot(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	model := s.model
	s.mu.RUnlock()

	if model == nil {
		http.Error(w, "model not ready", http.StatusServiceUnavailable)
		return
	}

	var sb strings.Builder
	if err := model.ToDot().Serialize(&sb); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/vnd.graphviz")
	fmt.Fprint(w, sb.String())
}

// Start starts the web server on the given port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("starting web server", "addr", fmt.Sprintf("http://localhost%s", addr))
	return http.ListenAndServe(addr, s.router)
}
