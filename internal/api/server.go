// Package api exposes the ask operation and the thread stores over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/user/graphchef/internal/conversation"
	"github.com/user/graphchef/internal/state"
	"github.com/user/graphchef/internal/types"
)

// AskHandler answers a question in a thread, creating one when threadID is
// empty.
type AskHandler func(ctx context.Context, question string, threadID types.ThreadID) (*conversation.Answer, error)

// KeyAskHandler answers a question in the thread bound to a stable key.
type KeyAskHandler func(ctx context.Context, question string, key types.ThreadKey) (*conversation.Answer, error)

// Server is the HTTP surface: the question endpoint, read-only thread
// inspection, and webhook triggers for named tasks.
type Server struct {
	tasks    *state.TaskStore
	ask      AskHandler
	askByKey KeyAskHandler
	threads  types.ThreadStore
	log      types.MessageLog
	mux      *http.ServeMux
}

// NewServer creates a Server with the given task store, ask handlers, and
// stores.
func NewServer(tasks *state.TaskStore, ask AskHandler, askByKey KeyAskHandler, threads types.ThreadStore, log types.MessageLog) *Server {
	s := &Server{
		tasks:    tasks,
		ask:      ask,
		askByKey: askByKey,
		threads:  threads,
		log:      log,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /v1/questions", s.handleQuestion)
	s.mux.HandleFunc("GET /v1/threads", s.handleThreads)
	s.mux.HandleFunc("GET /v1/threads/", s.handleThreadMessages)
	s.mux.HandleFunc("POST /hooks/", s.handleTaskHook)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// questionRequest is the JSON body for POST /v1/questions.
type questionRequest struct {
	Question string `json:"question"`
	ThreadID string `json:"thread_id"`
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	if req.Question == "" {
		http.Error(w, `{"error":"question is required"}`, http.StatusBadRequest)
		return
	}

	answer, err := s.ask(r.Context(), req.Question, types.ThreadID(req.ThreadID))
	if err != nil {
		if errors.Is(err, types.ErrThreadNotFound) {
			http.Error(w, `{"error":"thread not found"}`, http.StatusNotFound)
			return
		}
		slog.Error("question handler failed", "thread_id", req.ThreadID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(answer)
}

type threadResponse struct {
	ThreadID     string `json:"thread_id"`
	ThreadKey    string `json:"thread_key,omitempty"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int64  `json:"message_count"`
}

func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threads, err := s.threads.List(ctx)
	if err != nil {
		slog.Error("list threads failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]threadResponse, 0, len(threads))
	for _, th := range threads {
		count, err := s.log.Count(ctx, th.ID)
		if err != nil {
			slog.Warn("count messages failed", "thread_id", th.ID, "error", err)
		}
		result = append(result, threadResponse{
			ThreadID:     string(th.ID),
			ThreadKey:    string(th.Key),
			Status:       th.Status,
			CreatedAt:    th.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt:    th.LastUpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
			MessageCount: count,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt > result[j].UpdatedAt
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleThreadMessages(w http.ResponseWriter, r *http.Request) {
	// Path: /v1/threads/{id}/messages
	path := strings.TrimPrefix(r.URL.Path, "/v1/threads/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[1] != "messages" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	threadID := types.ThreadID(parts[0])

	ok, err := s.threads.Exists(r.Context(), threadID)
	if err != nil {
		slog.Error("check thread failed", "thread_id", threadID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"thread not found"}`, http.StatusNotFound)
		return
	}

	messages, err := s.log.History(r.Context(), threadID)
	if err != nil {
		slog.Error("load history failed", "thread_id", threadID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*types.Message{}
	}

	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n < len(messages) {
			messages = messages[len(messages)-n:]
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

// taskHookRequest is the optional JSON body for POST /hooks/{name}.
type taskHookRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleTaskHook(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/hooks/")
	if name == "" {
		http.Error(w, `{"error":"task name required"}`, http.StatusBadRequest)
		return
	}

	task, err := s.tasks.Get(name)
	if err != nil {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}

	if !task.Enabled {
		http.Error(w, `{"error":"task is disabled"}`, http.StatusForbidden)
		return
	}

	question := task.Question

	// Allow body to override the question
	var body taskHookRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Question != "" {
		question = body.Question
	}

	key := types.ThreadKey(task.ThreadKey)
	if key == "" {
		key = types.NewThreadKey("task", task.Name)
	}

	answer, err := s.askByKey(r.Context(), question, key)
	if err != nil {
		slog.Error("task hook failed", "task", name, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(answer)
}
