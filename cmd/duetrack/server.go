package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	duerrors "duetrack/internal/errors"
	"duetrack/internal/middleware"
	"duetrack/internal/models"
	"duetrack/internal/privacy"
	"duetrack/internal/service"
	watypes "duetrack/pkg/whatsapp/types"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router        *mux.Router
	logger        *logrus.Logger
	cfg           *models.Config
	webhook       *service.WebhookService
	conversations *service.ConversationService
	server        *http.Server
}

func NewServer(cfg *models.Config, webhook *service.WebhookService, conversations *service.ConversationService, logger *logrus.Logger) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		logger:        logger,
		cfg:           cfg,
		webhook:       webhook,
		conversations: conversations,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	// Health check and metrics
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	// WhatsApp webhook: GET is the Cloud API verification handshake,
	// POST carries message and status events
	webhook := s.router.PathPrefix("/webhook/whatsapp").Subrouter()
	webhook.Use(middleware.WebhookObservabilityMiddleware(s.logger, "whatsapp"))
	webhook.HandleFunc("", s.handleWebhookVerify()).Methods(http.MethodGet)
	webhook.HandleFunc("", s.handleWebhook()).Methods(http.MethodPost)

	// Merchant-facing conversation surface
	s.router.HandleFunc("/conversations", s.handleConversations()).Methods(http.MethodGet)
	s.router.HandleFunc("/history", s.handleHistory()).Methods(http.MethodGet)
	s.router.HandleFunc("/reply", s.handleReply()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// handleWebhookVerify answers the Meta subscription handshake: echo
// hub.challenge when the verify token matches, 403 otherwise.
func (s *Server) handleWebhookVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("hub.mode")
		token := r.URL.Query().Get("hub.verify_token")
		challenge := r.URL.Query().Get("hub.challenge")

		if mode != "subscribe" || token == "" || token != s.cfg.WhatsApp.VerifyToken {
			s.logger.WithField("hub_mode", mode).Warn("Webhook verification rejected")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
	}
}

// handleWebhook acknowledges every syntactically readable delivery
// with 200, whatever happened inside: a non-2xx would only make the
// provider redeliver a payload we already could not handle.
func (s *Server) handleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload watypes.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.logger.WithError(err).Warn("Failed to decode webhook payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if err := s.webhook.ProcessPayload(r.Context(), &payload); err != nil {
			s.logger.WithError(err).Error("Webhook processing failed")
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) handleConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversations, err := s.conversations.ListConversations(r.Context())
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"conversations": conversations,
		})
	}
}

func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mobile := r.URL.Query().Get("mobile")
		if mobile == "" {
			http.Error(w, "mobile query parameter is required", http.StatusBadRequest)
			return
		}

		records, err := s.conversations.GetHistory(r.Context(), mobile, 0)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"mobile":   mobile,
			"messages": records,
		})
	}
}

type replyRequest struct {
	Mobile string `json:"mobile"`
	Text   string `json:"text"`
}

func (s *Server) handleReply() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req replyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Mobile == "" || req.Text == "" {
			http.Error(w, "mobile and text are required", http.StatusBadRequest)
			return
		}

		if err := s.conversations.SendReply(r.Context(), req.Mobile, req.Text); err != nil {
			s.logger.WithError(err).WithField(service.LogFieldMobile, privacy.MaskPhoneNumber(req.Mobile)).
				Error("Failed to send reply")
			s.respondError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "sent"})
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := duerrors.HTTPStatusCode(err)
	message := duerrors.GetUserMessage(err)
	http.Error(w, message, status)
}
