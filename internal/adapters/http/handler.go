package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/selkane/auxilium/internal/app/attachments"
	"github.com/selkane/auxilium/internal/app/conversation"
	"github.com/selkane/auxilium/internal/app/voice"
	"github.com/selkane/auxilium/internal/domain"
	"github.com/selkane/auxilium/internal/observability"
)

const maxUploadBytes = 32 << 20

type Server struct {
	svc      *conversation.Service
	ingestor *attachments.Ingestor
	player   *voice.Player
}

// NewServer exposes one conversation session over JSON HTTP. player may be
// nil, in which case the voice endpoint answers 501.
func NewServer(svc *conversation.Service, ingestor *attachments.Ingestor, player *voice.Player) http.Handler {
	s := &Server{svc: svc, ingestor: ingestor, player: player}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /state", s.handleGetState)
	mux.HandleFunc("GET /stats", s.handleGetStats)
	mux.HandleFunc("GET /modules", s.handleListModules)

	mux.HandleFunc("POST /messages", s.handleSendMessage)
	mux.HandleFunc("POST /messages/{id}/voice", s.handleVoice)

	mux.HandleFunc("POST /attachments", s.handleUpload)
	mux.HandleFunc("DELETE /attachments/{index}", s.handleRemoveAttachment)

	mux.HandleFunc("POST /error/dismiss", s.handleDismissError)
	mux.HandleFunc("PUT /language", s.handleSetLanguage)
	mux.HandleFunc("PUT /module", s.handleSetModule)

	return chainMiddlewares(mux, withLogging, withRequestID, withCORS)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type stateResponse struct {
	SessionID string              `json:"session_id"`
	Module    string              `json:"module"`
	Language  string              `json:"language"`
	RTL       bool                `json:"rtl"`
	Messages  []*domain.Message   `json:"messages"`
	IsLoading bool                `json:"is_loading"`
	Error     *string             `json:"error"`
	Pending   []domain.Attachment `json:"pending_attachments"`
	Playing   string              `json:"playing,omitempty"`
	CanSend   bool                `json:"can_send"`
}

type sendMessageRequest struct {
	Text     string `json:"text"`
	Module   string `json:"module,omitempty"`
	Language string `json:"language,omitempty"`
}

type sendMessageResponse struct {
	UserMessage  *domain.Message `json:"user_message"`
	ModelMessage *domain.Message `json:"model_message,omitempty"`
	Error        string          `json:"error,omitempty"`
}

type languageRequest struct {
	Language string `json:"language"`
}

type moduleRequest struct {
	Module string `json:"module"`
}

type moduleResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type statsResponse struct {
	LatencyMS int64 `json:"latency_ms"`
	Tokens    int   `json:"tokens"`
	Requests  int   `json:"requests"`
}

type voiceResponse struct {
	MessageID string `json:"message_id"`
	State     string `json:"state"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		LatencyMS: st.Latency.Milliseconds(),
		Tokens:    st.Tokens,
		Requests:  st.Requests,
	})
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	var out []moduleResponse
	for _, m := range domain.Modules() {
		out = append(out, moduleResponse{ID: string(m.ID), Name: m.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	in := conversation.SendInput{
		Text:     req.Text,
		Module:   s.svc.Module(),
		Language: s.svc.Language(),
	}
	if req.Module != "" {
		id, err := domain.ParseModuleID(req.Module)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		in.Module = id
	}
	if req.Language != "" {
		in.Language = domain.ParseLanguage(req.Language)
	}

	out, err := s.svc.Send(r.Context(), in)
	var reqErr *conversation.RequestError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sendMessageResponse{
			UserMessage:  out.UserMessage,
			ModelMessage: out.ModelMessage,
		})
	case errors.Is(err, conversation.ErrEmptyInput):
		badRequest(w, err.Error())
	case errors.Is(err, conversation.ErrRequestInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &reqErr):
		writeJSON(w, http.StatusBadGateway, sendMessageResponse{
			UserMessage: out.UserMessage,
			Error:       reqErr.Message,
		})
	default:
		internalError(w, r, err)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		badRequest(w, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	sel := newUploadSelection(r.MultipartForm.File["files"])
	if len(sel.Files()) == 0 {
		badRequest(w, "no files in field \"files\"")
		return
	}

	if err := s.ingestor.Ingest(r.Context(), sel); err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.svc.Pending().List())
}

func (s *Server) handleRemoveAttachment(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		badRequest(w, "index must be an integer")
		return
	}
	if err := s.svc.Pending().Remove(index); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Pending().List())
}

func (s *Server) handleDismissError(w http.ResponseWriter, r *http.Request) {
	s.svc.DismissError()
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	s.svc.SetLanguage(domain.ParseLanguage(req.Language))
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleSetModule(w http.ResponseWriter, r *http.Request) {
	var req moduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	id, err := domain.ParseModuleID(req.Module)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.svc.SelectModule(id); err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if s.player == nil {
		writeError(w, http.StatusNotImplemented, "voice playback is not configured")
		return
	}

	id := domain.MessageID(r.PathValue("id"))
	msg := findMessage(s.svc.Store().State().Messages, id)
	if msg == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	// playback outlives the request
	ctx := observability.WithSessionID(r.Context(), string(s.svc.Store().SessionID()))
	if err := s.player.Play(context.WithoutCancel(ctx), msg.Content, id); err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, voiceResponse{
		MessageID: string(id),
		State:     string(s.player.State()),
	})
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func (s *Server) state() stateResponse {
	st := s.svc.Store().State()
	lang := s.svc.Language()
	resp := stateResponse{
		SessionID: string(s.svc.Store().SessionID()),
		Module:    string(s.svc.Module()),
		Language:  string(lang),
		RTL:       lang.IsRTL(),
		Messages:  st.Messages,
		IsLoading: st.IsLoading,
		Error:     st.Error,
		Pending:   s.svc.Pending().List(),
		CanSend:   s.svc.CanSend(),
	}
	if s.player != nil {
		resp.Playing = string(s.player.Playing())
	}
	return resp
}

func findMessage(msgs []*domain.Message, id domain.MessageID) *domain.Message {
	for _, m := range msgs {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, msg)
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
