package service

import (
	"context"

	"duetrack/internal/metrics"
	"duetrack/internal/models"
	"duetrack/internal/privacy"
	watypes "duetrack/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// ActionRequest is everything a handler needs about one routed intent.
// Customer is nil when the sender's mobile matched no customer record;
// handlers degrade gracefully in that case.
type ActionRequest struct {
	Intent   *watypes.Intent
	Customer *models.Customer
	Creds    watypes.Credentials
}

// ActionHandler handles one action id.
type ActionHandler func(ctx context.Context, req *ActionRequest) error

// ActionRouter dispatches list/button action ids to business
// operations through a handler table, so each handler is testable in
// isolation and new ids are added by registration.
type ActionRouter struct {
	sessions *SessionService
	ledger   *LedgerService
	outbound *OutboundService
	logger   *logrus.Logger
	handlers map[string]ActionHandler
}

func NewActionRouter(sessions *SessionService, ledger *LedgerService, outbound *OutboundService, logger *logrus.Logger) *ActionRouter {
	r := &ActionRouter{
		sessions: sessions,
		ledger:   ledger,
		outbound: outbound,
		logger:   logger,
		handlers: make(map[string]ActionHandler),
	}

	r.Register(ActionCheckCurrentDue, r.handleCheckCurrentDue)
	for _, id := range []string{
		ActionPayToday,
		ActionWillPayToday,
		ActionPaidToday,
		ActionPayWeek,
		ActionPaySoon,
		ActionNeedStatement,
	} {
		r.Register(id, r.handlePaymentIntent)
	}
	return r
}

// Register installs a handler for an action id, replacing any existing
// one.
func (r *ActionRouter) Register(actionID string, handler ActionHandler) {
	r.handlers[actionID] = handler
}

// Dispatch routes the intent's action id. Unknown ids are logged at
// info level and ignored; they never produce a reply or an error.
func (r *ActionRouter) Dispatch(ctx context.Context, req *ActionRequest) error {
	handler, ok := r.handlers[req.Intent.ActionID]
	if !ok {
		metrics.IncrementCounter(metrics.MetricUnknownAction, nil, "Unknown action ids received")
		r.logger.WithFields(logrus.Fields{
			LogFieldActionID: req.Intent.ActionID,
			LogFieldMobile:   privacy.MaskPhoneNumber(req.Intent.From),
		}).Info("Ignoring unknown action id")
		return nil
	}
	return handler(ctx, req)
}

// handleCheckCurrentDue requires an active session. Without one the
// customer gets the timeout prompt and no due lookup happens.
func (r *ActionRouter) handleCheckCurrentDue(ctx context.Context, req *ActionRequest) error {
	intent := req.Intent

	session, err := r.sessions.Get(ctx, intent.From)
	if err != nil {
		return err
	}
	if session == nil {
		r.logger.WithField(LogFieldMobile, privacy.MaskPhoneNumber(intent.From)).
			Info("Due check with no active session")
		return r.reply(ctx, req, SessionTimeoutText)
	}

	summary, err := r.ledger.GetCurrentDue(ctx, intent.From)
	if err != nil {
		return err
	}

	metadata := session.Metadata
	if metadata == nil {
		metadata = make(map[string]string)
	}
	metadata[models.MetaLastActionID] = intent.ActionID
	if _, err := r.sessions.Update(ctx, intent.From, models.StateCheckCurrentDue, metadata); err != nil {
		r.logger.WithError(err).Warn("Failed to transition session state")
	}

	return r.reply(ctx, req, summary.Text)
}

// handlePaymentIntent forwards the action to the due ledger, tying it
// to the reminder message id when the reply carried one, then sends
// the acknowledgment.
func (r *ActionRouter) handlePaymentIntent(ctx context.Context, req *ActionRequest) error {
	intent := req.Intent

	var contextID *string
	if intent.IsReply() {
		id := intent.ReplyToMessageID
		contextID = &id
	}

	if err := r.ledger.UpdateTransactionStatus(ctx, intent.From, intent.ActionID, contextID); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldActionID: intent.ActionID,
			LogFieldMobile:   privacy.MaskPhoneNumber(intent.From),
		}).Warn("Failed to update transaction status")
	}

	text := AcknowledgmentText(intent.ActionID)
	if text == "" {
		return nil
	}
	return r.reply(ctx, req, text)
}

func (r *ActionRouter) reply(ctx context.Context, req *ActionRequest, text string) error {
	var customerID *string
	if req.Customer != nil {
		customerID = &req.Customer.ID
	}
	var responseTo *string
	if req.Intent.IsReply() {
		id := req.Intent.ReplyToMessageID
		responseTo = &id
	}
	return r.outbound.SendText(ctx, req.Creds, req.Intent.From, text, customerID, responseTo)
}
