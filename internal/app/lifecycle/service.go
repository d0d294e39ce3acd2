// Package lifecycle owns the referral state machine: submission, student
// registration, status moves and payment reconciliation.
//
// Every mutation reads the referral, checks it against the current state
// and writes back with a compare-and-swap on the version counter.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	referralstore "github.com/dalemusser/referralhub/internal/app/store/referrals"
	"github.com/dalemusser/referralhub/internal/app/system/apperr"
	"github.com/dalemusser/referralhub/internal/app/system/inputval"
	"github.com/dalemusser/referralhub/internal/app/system/timeouts"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitResult is returned by Submit.
type SubmitResult struct {
	ReferralID   string `json:"referralId"`
	ReferralLink string `json:"referralLink"`
}

// Service implements the referral operations.
type Service struct {
	store   *referralstore.Store
	sink    EventSink
	baseURL string
	log     *zap.Logger
	now     func() time.Time
	newID   func() string
}

// New builds a Service. sink may be nil. baseURL is used to build the
// shareable referral link and should not end with a slash.
func New(store *referralstore.Store, sink EventSink, baseURL string, logger *zap.Logger) *Service {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		sink:    sink,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
}

// ReferralLink returns the shareable link for referralID.
func (s *Service) ReferralLink(referralID string) string {
	return s.baseURL + "/referral/" + referralID
}

/*─────────────────────────────────────────────────────────────────────────────*
| Mutations                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// Submit validates and stores a new referral with status pending.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	in.normalize()
	if res := inputval.Validate(in); res.HasErrors() {
		return SubmitResult{}, apperr.Validation(res.First(), res.Fields())
	}
	if in.ReferralStatus != "" && in.ReferralStatus != string(models.StatusPending) {
		return SubmitResult{}, apperr.Validation("New referrals must start as pending.",
			map[string]string{"referralStatus": "Referral status must be pending."})
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	ref := models.Referral{
		ReferralID:           s.newID(),
		ReferrerName:         in.ReferrerName,
		ReferrerEmail:        in.ReferrerEmail,
		ReferrerPhone:        in.ReferrerPhone,
		ReferrerRelationship: in.ReferrerRelationship,
		StudentName:          in.StudentName,
		StudentEmail:         in.StudentEmail,
		StudentPhone:         in.StudentPhone,
		AdmissionDetails:     in.AdmissionDetails,
		ReferralDate:         in.ReferralDate,
		Status:               models.StatusPending,
		Version:              1,
		CreatedAt:            s.now(),
	}
	saved, err := s.store.Insert(ctx, ref)
	if err != nil {
		if errors.Is(err, referralstore.ErrDuplicateReferralID) {
			return SubmitResult{}, apperr.Conflict("Referral id collision; submit again.")
		}
		return SubmitResult{}, apperr.FromStore(err, "referral")
	}

	s.log.Info("referral submitted",
		zap.String("referral_id", saved.ReferralID),
		zap.String("referrer_email", saved.ReferrerEmail),
	)
	s.publish(ctx, Event{
		Kind:          EventReferralSubmitted,
		ReferralID:    saved.ReferralID,
		ReferrerEmail: saved.ReferrerEmail,
		StudentName:   saved.StudentName,
		To:            saved.Status,
		Version:       saved.Version,
		At:            saved.CreatedAt,
	})

	return SubmitResult{ReferralID: saved.ReferralID, ReferralLink: s.ReferralLink(saved.ReferralID)}, nil
}

// AttachStudentData overwrites the referral's registration data. The status
// is left unchanged. Resubmitting the stored answers writes nothing and
// emits no event.
func (s *Service) AttachStudentData(ctx context.Context, referralID string, in StudentDataInput, expectedVersion *int64) (*models.Referral, error) {
	in.normalize()
	if res := inputval.Validate(in); res.HasErrors() {
		return nil, apperr.Validation(res.First(), res.Fields())
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	cur, err := s.load(ctx, referralID, expectedVersion)
	if err != nil {
		return nil, err
	}

	data := in.model()
	if cur.StudentData != nil && cur.StudentData.SameAs(data) {
		s.log.Debug("student data unchanged", zap.String("referral_id", cur.ReferralID))
		return cur, nil
	}
	data.SubmittedAt = s.now()
	updated, err := s.swap(ctx, cur, referralstore.Update{StudentData: &data})
	if err != nil {
		return nil, err
	}

	s.log.Info("student data attached", zap.String("referral_id", updated.ReferralID))
	s.publish(ctx, Event{
		Kind:          EventStudentDataAttached,
		ReferralID:    updated.ReferralID,
		ReferrerEmail: updated.ReferrerEmail,
		StudentName:   data.FullName,
		Version:       updated.Version,
		At:            data.SubmittedAt,
	})
	return updated, nil
}

// StatusChange describes the outcome of Transition. Changed is false when
// the referral was already in the requested status.
type StatusChange struct {
	Referral *models.Referral
	From     models.ReferralStatus
	Changed  bool
}

// AdvanceStatus moves the referral to newStatus. Asking for the current
// status succeeds without writing.
func (s *Service) AdvanceStatus(ctx context.Context, referralID, newStatus string, expectedVersion *int64) (*models.Referral, error) {
	ch, err := s.Transition(ctx, referralID, newStatus, expectedVersion)
	if err != nil {
		return nil, err
	}
	return ch.Referral, nil
}

// Transition is AdvanceStatus reporting the status the referral left.
func (s *Service) Transition(ctx context.Context, referralID, newStatus string, expectedVersion *int64) (StatusChange, error) {
	to, err := models.ParseReferralStatus(strings.TrimSpace(newStatus))
	if err != nil {
		return StatusChange{}, apperr.Validation("Referral status must be one of: pending, inProgress, admitted.",
			map[string]string{"status": "Unknown referral status."})
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	cur, err := s.load(ctx, referralID, expectedVersion)
	if err != nil {
		return StatusChange{}, err
	}
	if cur.Status == to {
		return StatusChange{Referral: cur, From: cur.Status}, nil
	}
	if !models.CanTransition(cur.Status, to) {
		return StatusChange{}, apperr.PreconditionFailed("Invalid transition from " + string(cur.Status) + " to " + string(to) + ".")
	}

	updated, err := s.swap(ctx, cur, referralstore.Update{Status: &to})
	if err != nil {
		return StatusChange{}, err
	}

	s.log.Info("referral status changed",
		zap.String("referral_id", updated.ReferralID),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(to)),
	)
	s.publish(ctx, Event{
		Kind:          EventStatusChanged,
		ReferralID:    updated.ReferralID,
		ReferrerEmail: updated.ReferrerEmail,
		StudentName:   updated.StudentName,
		From:          cur.Status,
		To:            to,
		Version:       updated.Version,
		At:            updated.UpdatedAt,
	})
	return StatusChange{Referral: updated, From: cur.Status, Changed: true}, nil
}

// RecordPayment replaces the payment data of an admitted referral and
// returns the freshly generated payment key.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput, expectedVersion *int64) (string, error) {
	in.normalize()
	if res := inputval.Validate(in); res.HasErrors() {
		return "", apperr.Validation(res.First(), res.Fields())
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	cur, err := s.load(ctx, in.ReferralID, expectedVersion)
	if err != nil {
		return "", err
	}
	if cur.Status != models.StatusAdmitted {
		return "", apperr.PreconditionFailed("Payment can only be recorded for admitted referrals.")
	}

	key := s.newID()
	if cur.PaymentData != nil {
		for key == cur.PaymentData.PaymentKey {
			key = s.newID()
		}
	}
	pay := models.PaymentData{
		PaymentStatus:      in.PaymentStatus,
		PaymentDate:        in.PaymentDate,
		PaymentKey:         key,
		PaymentMode:        in.PaymentMode,
		TransactionDetails: in.TransactionDetails,
		RecordedAt:         s.now(),
	}
	updated, err := s.swap(ctx, cur, referralstore.Update{PaymentData: &pay})
	if err != nil {
		return "", err
	}

	s.log.Info("payment recorded",
		zap.String("referral_id", updated.ReferralID),
		zap.String("payment_status", pay.PaymentStatus),
		zap.String("payment_mode", pay.PaymentMode),
	)
	s.publish(ctx, Event{
		Kind:          EventPaymentRecorded,
		ReferralID:    updated.ReferralID,
		ReferrerEmail: updated.ReferrerEmail,
		StudentName:   updated.StudentName,
		PaymentStatus: pay.PaymentStatus,
		Version:       updated.Version,
		At:            pay.RecordedAt,
	})
	return key, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Queries                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// Get returns one referral by its public id.
func (s *Service) Get(ctx context.Context, referralID string) (*models.Referral, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	ref, err := s.store.GetByReferralID(ctx, strings.TrimSpace(referralID))
	if err != nil {
		return nil, apperr.FromStore(err, "referral")
	}
	return ref, nil
}

// List returns referrals matching f, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Referral, error) {
	var sf referralstore.Filter
	if st := strings.TrimSpace(f.Status); st != "" {
		status, err := models.ParseReferralStatus(st)
		if err != nil {
			return nil, apperr.Validation("Status filter must be one of: pending, inProgress, admitted.",
				map[string]string{"status": "Unknown referral status."})
		}
		sf.Status = status
	}
	sf.ReferrerEmail = strings.TrimSpace(f.ReferrerEmail)

	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	refs, err := s.store.List(ctx, sf)
	if err != nil {
		return nil, apperr.FromStore(err, "referrals")
	}
	return refs, nil
}

// Stats returns aggregate counts across all referrals.
func (s *Service) Stats(ctx context.Context) (referralstore.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	st, err := s.store.Stats(ctx)
	if err != nil {
		return referralstore.Stats{}, apperr.FromStore(err, "referral stats")
	}
	return st, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// load reads the current record and checks the caller's expected version.
func (s *Service) load(ctx context.Context, referralID string, expectedVersion *int64) (*models.Referral, error) {
	cur, err := s.store.GetByReferralID(ctx, strings.TrimSpace(referralID))
	if err != nil {
		return nil, apperr.FromStore(err, "referral")
	}
	if expectedVersion != nil && *expectedVersion != cur.Version {
		return nil, apperr.Conflict("Referral has changed since it was read; reload and try again.")
	}
	return cur, nil
}

// swap writes upd only if cur is still the stored version.
func (s *Service) swap(ctx context.Context, cur *models.Referral, upd referralstore.Update) (*models.Referral, error) {
	updated, err := s.store.UpdateIfVersion(ctx, cur.ReferralID, cur.Version, upd)
	if err != nil {
		if errors.Is(err, referralstore.ErrVersionMismatch) {
			return nil, apperr.Conflict("Referral was modified concurrently; reload and try again.")
		}
		return nil, apperr.FromStore(err, "referral")
	}
	return updated, nil
}

// publish hands ev to the sink. The operation has already committed, so a
// sink failure is only logged.
func (s *Service) publish(ctx context.Context, ev Event) {
	if err := s.sink.HandleReferralEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("referral event not delivered",
			zap.String("event", string(ev.Kind)),
			zap.String("referral_id", ev.ReferralID),
			zap.Error(err),
		)
	}
}
