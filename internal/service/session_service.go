package service

import (
	"context"

	duerrors "duetrack/internal/errors"
	"duetrack/internal/metrics"
	"duetrack/internal/models"
	"duetrack/internal/privacy"

	"github.com/sirupsen/logrus"
)

// SessionStore is the persistence surface the session service needs.
type SessionStore interface {
	GetSession(ctx context.Context, mobile string) (*models.Session, error)
	EnsureSession(ctx context.Context, mobile string) error
	SaveSession(ctx context.Context, mobile string, state models.SessionState, metadata map[string]string) error
	UpdateSession(ctx context.Context, mobile string, state models.SessionState, metadata map[string]string) (bool, error)
}

// SessionService manages per-mobile conversation state. A session that
// does not exist is an expired conversation; nothing deletes sessions,
// absence is the only expiry signal.
type SessionService struct {
	store  SessionStore
	logger *logrus.Logger
}

func NewSessionService(store SessionStore, logger *logrus.Logger) *SessionService {
	return &SessionService{store: store, logger: logger}
}

// Get returns the active session or nil when the conversation has
// timed out.
func (s *SessionService) Get(ctx context.Context, mobile string) (*models.Session, error) {
	session, err := s.store.GetSession(ctx, mobile)
	if err != nil {
		return nil, duerrors.NewDatabaseError("get session", err)
	}
	return session, nil
}

// GetOrCreate returns the existing session or creates one in IDLE.
// lastInteractionAt is refreshed either way.
func (s *SessionService) GetOrCreate(ctx context.Context, mobile string) (*models.Session, error) {
	existing, err := s.store.GetSession(ctx, mobile)
	if err != nil {
		return nil, duerrors.NewDatabaseError("get session", err)
	}

	if err := s.store.EnsureSession(ctx, mobile); err != nil {
		return nil, duerrors.NewDatabaseError("ensure session", err)
	}

	if existing == nil {
		metrics.IncrementCounter(metrics.MetricSessionsCreated, nil, "Sessions created")
		s.logger.WithFields(logrus.Fields{
			LogFieldMobile: privacy.MaskPhoneNumber(mobile),
			LogFieldState:  models.StateIdle,
		}).Info("Created conversation session")
	}

	session, err := s.store.GetSession(ctx, mobile)
	if err != nil {
		return nil, duerrors.NewDatabaseError("get session", err)
	}
	return session, nil
}

// Update transitions an existing session. The false return means no
// session exists; callers treat that as "conversation timed out" and
// must not create one here.
func (s *SessionService) Update(ctx context.Context, mobile string, state models.SessionState, metadata map[string]string) (bool, error) {
	updated, err := s.store.UpdateSession(ctx, mobile, state, metadata)
	if err != nil {
		return false, duerrors.NewDatabaseError("update session", err)
	}
	if !updated {
		s.logger.WithFields(logrus.Fields{
			LogFieldMobile: privacy.MaskPhoneNumber(mobile),
			LogFieldState:  state,
		}).Debug("Session update skipped: no active session")
	}
	return updated, nil
}
