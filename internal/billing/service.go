package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chefmate/internal/billing/metrics"
	dErrors "chefmate/pkg/domain-errors"
	"chefmate/pkg/platform/sentinel"
	"chefmate/pkg/requestcontext"
)

// Audit outcomes recorded per event. "deferred" means the ledger lock was
// left in place for redelivery; everything else is final for the event id.
const (
	OutcomeProcessed       = "processed"
	OutcomeDuplicate       = "duplicate"
	OutcomeInFlight        = "in_flight_skipped"
	OutcomeIgnored         = "ignored"
	OutcomeUnresolved      = "unresolved"
	OutcomeDeferred        = "deferred"
	OutcomeSideEffectError = "side_effect_failed"
)

// AuditEntry is the durable trail written for every event decision. The
// payload is kept so deferred and unresolved events can be replayed manually.
type AuditEntry struct {
	EventID   string
	EventType string
	Channel   string
	UserID    string
	Outcome   string
	Detail    string
	Payload   []byte
}

// AuditSink records audit entries. Implementations are best-effort and must
// never fail the pipeline.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

// defaultLockTTL bounds how long a crashed attempt keeps an event locked
// before redelivery may reclaim it.
const defaultLockTTL = 10 * time.Minute

// Service runs the post-ack half of the webhook pipeline and serves the
// entitlement projection.
type Service struct {
	entitlements EntitlementStore
	ledger       LedgerStore
	payments     SubscriptionFetcher
	menus        MenuSwitcher
	resolver     *Resolver
	audit        AuditSink
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	lockTTL      time.Duration
}

// NewService constructs the billing service. payments, menus, audit, and
// metrics may be nil; the pipeline degrades gracefully without them.
func NewService(
	entitlements EntitlementStore,
	ledger LedgerStore,
	payments SubscriptionFetcher,
	menus MenuSwitcher,
	audit AuditSink,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		entitlements: entitlements,
		ledger:       ledger,
		payments:     payments,
		menus:        menus,
		resolver:     NewResolver(entitlements, payments, logger),
		audit:        audit,
		logger:       logger,
		metrics:      m,
		tracer:       otel.Tracer("chefmate/billing"),
		lockTTL:      defaultLockTTL,
	}
}

// ProcessEvent runs a verified event through the reconciliation pipeline:
// ledger gate, transition dispatch, entitlement patch, menu side effect,
// processed mark. The HTTP ack has already gone out; a returned error only
// means the lock was left for redelivery.
func (s *Service) ProcessEvent(ctx context.Context, ev Event) error {
	ctx, span := s.tracer.Start(ctx, "billing.ProcessEvent",
		trace.WithAttributes(
			attribute.String("event.id", ev.ID),
			attribute.String("event.type", ev.Type),
			attribute.String("event.channel", ev.Channel),
		))
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.ObserveProcessing(time.Since(start).Seconds()) }()

	now := requestcontext.Now(ctx)

	res, err := s.ledger.Acquire(ctx, ev.ID, ev.Type, now, s.lockTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "ledger acquire failed",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"error", err,
		)
		s.record(ctx, ev, "", OutcomeDeferred, err.Error())
		return err
	}

	switch res {
	case AlreadyProcessed:
		s.metrics.ObserveEvent(ev.Type, OutcomeDuplicate)
		s.logger.InfoContext(ctx, "duplicate webhook event skipped",
			"event_id", ev.ID,
			"event_type", ev.Type,
		)
		s.record(ctx, ev, "", OutcomeDuplicate, "")
		return nil
	case AlreadyLocked:
		// A concurrent or crashed attempt holds the lock. Treating this as
		// handled avoids double side effects; the audit trail carries it for
		// manual reconciliation and the lock TTL covers the crash case.
		s.metrics.ObserveEvent(ev.Type, OutcomeInFlight)
		s.logger.WarnContext(ctx, "webhook event already in flight",
			"event_id", ev.ID,
			"event_type", ev.Type,
		)
		s.record(ctx, ev, "", OutcomeInFlight, "")
		return nil
	}

	transition, ok := transitions[ev.Type]
	if !ok {
		s.metrics.ObserveEvent(ev.Type, OutcomeIgnored)
		s.logger.InfoContext(ctx, "webhook event ignored (unhandled type)",
			"event_id", ev.ID,
			"event_type", ev.Type,
		)
		s.record(ctx, ev, "", OutcomeIgnored, "")
		s.markProcessed(ctx, ev, now)
		return nil
	}

	result, err := transition(ctx, s, ev, now)
	if err != nil {
		if isTerminalResolveErr(err) {
			// Marked processed-with-warning: a permanently unresolvable
			// event must not wedge the ledger with endless redeliveries.
			s.metrics.ObserveEvent(ev.Type, OutcomeUnresolved)
			s.logger.ErrorContext(ctx, "webhook event unresolvable, no patch applied",
				"event_id", ev.ID,
				"event_type", ev.Type,
				"payload", string(ev.Raw),
				"error", err,
			)
			s.record(ctx, ev, "", OutcomeUnresolved, err.Error())
			s.markProcessed(ctx, ev, now)
			return nil
		}
		s.metrics.ObserveEvent(ev.Type, OutcomeDeferred)
		s.logger.WarnContext(ctx, "webhook event deferred for redelivery",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"error", err,
		)
		s.record(ctx, ev, "", OutcomeDeferred, err.Error())
		return err
	}

	if _, err := s.entitlements.ApplyPatch(ctx, result.userID, result.patch, now); err != nil {
		s.metrics.ObserveEvent(ev.Type, OutcomeDeferred)
		s.logger.ErrorContext(ctx, "entitlement patch failed",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"user_id", result.userID,
			"error", err,
		)
		s.record(ctx, ev, result.userID, OutcomeDeferred, err.Error())
		return err
	}

	if result.menu != "" && s.menus != nil {
		if err := s.menus.SwitchMenu(ctx, result.userID, result.menu); err != nil {
			// The entitlement is already correct; a lost menu switch is
			// recoverable from the audit trail and must not fail the event.
			s.logger.ErrorContext(ctx, "menu switch failed",
				"event_id", ev.ID,
				"user_id", result.userID,
				"menu", string(result.menu),
				"error", err,
			)
			s.record(ctx, ev, result.userID, OutcomeSideEffectError, err.Error())
		}
	}

	s.markProcessed(ctx, ev, now)
	s.metrics.ObserveEvent(ev.Type, OutcomeProcessed)
	s.logger.InfoContext(ctx, "webhook event processed",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"user_id", result.userID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.record(ctx, ev, result.userID, OutcomeProcessed, "")
	return nil
}

func (s *Service) markProcessed(ctx context.Context, ev Event, now time.Time) {
	if err := s.ledger.MarkProcessed(ctx, ev.ID, now); err != nil {
		// The patch already applied and is idempotent, so a redelivery after
		// the lock TTL re-running the transition is safe. Log for the trail.
		s.logger.ErrorContext(ctx, "failed to mark webhook event processed",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"error", err,
		)
	}
}

func (s *Service) record(ctx context.Context, ev Event, userID, outcome, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		EventID:   ev.ID,
		EventType: ev.Type,
		Channel:   ev.Channel,
		UserID:    userID,
		Outcome:   outcome,
		Detail:    detail,
		Payload:   ev.Raw,
	})
}

// EntitlementView is the public projection of an entitlement record. Premium
// is computed with lazy expiry, never the raw stored flag.
type EntitlementView struct {
	Exists        bool       `json:"exists"`
	Premium       bool       `json:"premium"`
	PremiumSince  *time.Time `json:"premiumSince"`
	PremiumUntil  *time.Time `json:"premiumUntil"`
	CancelPending bool       `json:"cancelPending"`
	CancelAt      *time.Time `json:"cancelAt"`
}

// Entitlement projects a user's record. A never-seen user is a valid
// "no entitlement" state, not an error.
func (s *Service) Entitlement(ctx context.Context, userID string) (EntitlementView, error) {
	s.metrics.IncEntitlementReads()

	rec, err := s.entitlements.Get(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return EntitlementView{}, nil
	}
	if err != nil {
		return EntitlementView{}, dErrors.New(dErrors.CodeInternal, "entitlement lookup failed")
	}

	view := EntitlementView{
		Exists:       true,
		Premium:      rec.IsEntitled(requestcontext.Now(ctx)),
		PremiumSince: rec.PremiumSince,
		PremiumUntil: rec.PremiumUntil,
		CancelAt:     rec.CancelAt,
	}
	if rec.CancelPending != nil {
		view.CancelPending = *rec.CancelPending
	}
	return view, nil
}
