package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	gosync "sync"
	"time"

	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/models"
	"freelance-marketplace/internal/sync"
	"freelance-marketplace/internal/views"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MarketplaceService orchestrates the marketplace flows: it checks
// eligibility against the current snapshot, submits the contract call,
// journals it, waits for confirmation, then reloads the snapshot after
// a fixed delay. Mutating calls for one session run strictly serially.
type MarketplaceService struct {
	db     *gorm.DB
	ledger ledger.Ledger
	sync   *sync.Synchronizer

	confirmTimeout time.Duration
	reloadDelay    time.Duration

	mu       gosync.Mutex
	sessions map[string]*sync.Session
}

// NewMarketplaceService creates a new MarketplaceService
func NewMarketplaceService(db *gorm.DB, l ledger.Ledger, confirmTimeout, reloadDelay time.Duration) *MarketplaceService {
	return &MarketplaceService{
		db:             db,
		ledger:         l,
		sync:           sync.NewSynchronizer(l),
		confirmTimeout: confirmTimeout,
		reloadDelay:    reloadDelay,
		sessions:       make(map[string]*sync.Session),
	}
}

// Connect creates (or replaces) the session for an account and performs
// the initial snapshot load. A login with a different account discards
// any previous session state for it.
func (s *MarketplaceService) Connect(ctx context.Context, address string) (*sync.Session, error) {
	user, err := s.ledger.User(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", address, err)
	}

	sess := sync.NewSession(address, user)
	if err := s.sync.ReloadJobs(ctx, sess); err != nil {
		return nil, fmt.Errorf("initial snapshot load failed: %w", err)
	}

	s.mu.Lock()
	s.sessions[strings.ToLower(address)] = sess
	s.mu.Unlock()

	return sess, nil
}

// Session returns the active session for an account.
func (s *MarketplaceService) Session(address string) (*sync.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[strings.ToLower(address)]
	if !ok {
		return nil, fmt.Errorf("no active session for %s", address)
	}
	return sess, nil
}

// runAction executes one mutating call end to end: journal as PENDING,
// submit, confirm, journal the outcome, then reload the snapshot. A
// failed call leaves the snapshot untouched.
func (s *MarketplaceService) runAction(
	ctx context.Context,
	sess *sync.Session,
	action string,
	jobID *int64,
	amount int64,
	submit func(ctx context.Context) (string, error),
) error {
	record := models.ActionRecord{
		ID:            uuid.New(),
		WalletAddress: strings.ToLower(sess.Account),
		Action:        action,
		JobID:         jobID,
		Amount:        decimal.NewFromInt(amount),
		Status:        models.ActionStatusPending,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to journal action: %w", err)
	}

	txHash, err := submit(ctx)
	if err != nil {
		s.markFailed(&record, err)
		return fmt.Errorf("%s rejected by ledger: %w", action, err)
	}

	record.TxHash = txHash
	if err := s.db.Save(&record).Error; err != nil {
		log.Printf("Failed to record tx hash for action %s: %v", record.ID, err)
	}

	confirmed, err := s.ledger.ConfirmTransaction(ctx, txHash, s.confirmTimeout)
	if err != nil {
		s.markFailed(&record, err)
		return fmt.Errorf("%s did not confirm: %w", action, err)
	}
	if !confirmed {
		err := fmt.Errorf("transaction %s not confirmed", txHash)
		s.markFailed(&record, err)
		return err
	}

	now := time.Now()
	record.Status = models.ActionStatusConfirmed
	record.ConfirmedAt = &now
	if err := s.db.Save(&record).Error; err != nil {
		log.Printf("Failed to mark action %s confirmed: %v", record.ID, err)
	}

	// Give the ledger a moment to index the new state before re-reading
	// ground truth.
	time.Sleep(s.reloadDelay)

	if err := s.sync.ReloadJobs(ctx, sess); err != nil {
		// Stale snapshot is retained; the next reload will catch up.
		log.Printf("Snapshot reload after %s failed: %v", action, err)
	}
	return nil
}

func (s *MarketplaceService) markFailed(record *models.ActionRecord, cause error) {
	record.Status = models.ActionStatusFailed
	record.ErrorMessage = cause.Error()
	if err := s.db.Save(record).Error; err != nil {
		log.Printf("Failed to mark action %s failed: %v", record.ID, err)
	}
}

// RegisterUser registers the session account on the ledger. Only the
// arbiter account may take the arbiter role.
func (s *MarketplaceService) RegisterUser(ctx context.Context, sess *sync.Session, name string, role ledger.Role) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if sess.User().IsRegistered {
		return fmt.Errorf("user already registered")
	}
	if role != ledger.RoleClient && role != ledger.RoleFreelancer && role != ledger.RoleArbiter {
		return fmt.Errorf("invalid role")
	}
	if role == ledger.RoleArbiter {
		arbiter, err := s.ledger.Arbiter(ctx)
		if err != nil {
			return fmt.Errorf("failed to check arbiter address: %w", err)
		}
		if !strings.EqualFold(arbiter, sess.Account) {
			return fmt.Errorf("only the platform owner can register as arbiter")
		}
	}

	err := s.runAction(ctx, sess, models.ActionRegisterUser, nil, 0, func(ctx context.Context) (string, error) {
		return s.ledger.RegisterUser(ctx, sess.Account, name, role)
	})
	if err != nil {
		return err
	}

	// Pick up the new registration record.
	user, err := s.ledger.User(ctx, sess.Account)
	if err != nil {
		log.Printf("Failed to refresh user after registration: %v", err)
		return nil
	}
	sess.SetUser(user)
	return nil
}

// PostJob posts a new job. The budget is a major-unit display amount
// and crosses the ledger boundary as integer minor units.
func (s *MarketplaceService) PostJob(ctx context.Context, sess *sync.Session, title, category string, budget decimal.Decimal, deadline time.Time) error {
	if title == "" || category == "" {
		return fmt.Errorf("title and category are required")
	}
	if sess.User().Role != ledger.RoleClient {
		return fmt.Errorf("only clients can post jobs")
	}
	if !deadline.After(time.Now()) {
		return fmt.Errorf("deadline must be in the future")
	}

	budgetMinor, err := ledger.ToMinorUnits(budget)
	if err != nil {
		return fmt.Errorf("invalid budget: %w", err)
	}
	if budgetMinor == 0 {
		return fmt.Errorf("budget must be greater than zero")
	}

	return s.runAction(ctx, sess, models.ActionPostJob, nil, budgetMinor, func(ctx context.Context) (string, error) {
		return s.ledger.PostJob(ctx, sess.Account, title, category, budgetMinor, deadline.Unix())
	})
}

// PlaceBid places a bid on an open job. The bid may not exceed the
// job's maximum budget.
func (s *MarketplaceService) PlaceBid(ctx context.Context, sess *sync.Session, jobID int64, amount decimal.Decimal, proposedTime string) error {
	job, ok := sess.Job(jobID)
	if !ok {
		return fmt.Errorf("job %d not found", jobID)
	}
	if !views.CanBid(sess.User(), job) {
		return fmt.Errorf("only freelancers can bid, and only on open jobs")
	}
	if proposedTime == "" {
		return fmt.Errorf("proposed completion time is required")
	}

	amountMinor, err := ledger.ToMinorUnits(amount)
	if err != nil {
		return fmt.Errorf("invalid bid amount: %w", err)
	}
	if amountMinor == 0 {
		return fmt.Errorf("bid amount must be greater than zero")
	}
	if amountMinor > job.MaxBudget {
		return fmt.Errorf("bid amount cannot exceed the job budget of %s", ledger.FromMinorUnits(job.MaxBudget))
	}

	return s.runAction(ctx, sess, models.ActionPlaceBid, &jobID, amountMinor, func(ctx context.Context) (string, error) {
		return s.ledger.PlaceBid(ctx, sess.Account, jobID, amountMinor, proposedTime)
	})
}

// HireFreelancer hires the bidder at the given index of the deduped bid
// list, attaching the bid amount so the contract can lock it in escrow.
func (s *MarketplaceService) HireFreelancer(ctx context.Context, sess *sync.Session, jobID int64, bidIndex int) error {
	job, ok := sess.Job(jobID)
	if !ok {
		return fmt.Errorf("job %d not found", jobID)
	}
	if !views.CanHire(sess.Account, job) {
		return fmt.Errorf("only the job owner can hire, and only while the job is open")
	}

	bids := s.sync.LoadBids(ctx, jobID)
	if bidIndex < 0 || bidIndex >= len(bids) {
		return fmt.Errorf("bid %d not found for job %d", bidIndex, jobID)
	}
	bid := bids[bidIndex]

	return s.runAction(ctx, sess, models.ActionHireFreelancer, &jobID, bid.Amount, func(ctx context.Context) (string, error) {
		return s.ledger.HireFreelancer(ctx, sess.Account, jobID, bidIndex, bid.Amount)
	})
}

// SubmitWork marks the session freelancer's work as submitted.
func (s *MarketplaceService) SubmitWork(ctx context.Context, sess *sync.Session, jobID int64) error {
	job, ok := sess.Job(jobID)
	if !ok {
		return fmt.Errorf("job %d not found", jobID)
	}
	if !views.CanSubmitWork(sess.Account, job) {
		return fmt.Errorf("only the selected freelancer can submit work on an in-progress job")
	}

	return s.runAction(ctx, sess, models.ActionSubmitWork, &jobID, 0, func(ctx context.Context) (string, error) {
		return s.ledger.SubmitWork(ctx, sess.Account, jobID)
	})
}

// ApproveWork releases the escrowed payment to the freelancer. Work
// must have been submitted first.
func (s *MarketplaceService) ApproveWork(ctx context.Context, sess *sync.Session, jobID int64) error {
	job, ok := sess.Job(jobID)
	if !ok {
		return fmt.Errorf("job %d not found", jobID)
	}
	submitted := s.sync.WorkSubmitted(ctx, jobID)
	if !views.CanApprove(sess.Account, job, submitted) {
		return fmt.Errorf("work can only be approved by the job owner after it has been submitted")
	}

	return s.runAction(ctx, sess, models.ActionApproveWork, &jobID, 0, func(ctx context.Context) (string, error) {
		return s.ledger.ApproveWork(ctx, sess.Account, jobID)
	})
}

// DisputeJob escalates an in-progress job to the arbiter.
func (s *MarketplaceService) DisputeJob(ctx context.Context, sess *sync.Session, jobID int64) error {
	job, ok := sess.Job(jobID)
	if !ok {
		return fmt.Errorf("job %d not found", jobID)
	}
	submitted := s.sync.WorkSubmitted(ctx, jobID)
	if !views.CanDispute(sess.Account, job, submitted) {
		return fmt.Errorf("a job can only be disputed by its owner after work has been submitted")
	}

	return s.runAction(ctx, sess, models.ActionDisputeJob, &jobID, 0, func(ctx context.Context) (string, error) {
		return s.ledger.DisputeJob(ctx, sess.Account, jobID)
	})
}

// ResolveDispute settles a disputed job, paying either the freelancer
// or refunding the client.
func (s *MarketplaceService) ResolveDispute(ctx context.Context, sess *sync.Session, jobID int64, payFreelancer bool) error {
	job, ok := sess.Job(jobID)
	if !ok {
		return fmt.Errorf("job %d not found", jobID)
	}
	if !views.CanResolve(sess.User(), job) {
		return fmt.Errorf("only the arbiter can resolve disputed jobs")
	}

	return s.runAction(ctx, sess, models.ActionResolveDispute, &jobID, 0, func(ctx context.Context) (string, error) {
		return s.ledger.ResolveDispute(ctx, sess.Account, jobID, payFreelancer)
	})
}

// Reload forces a full snapshot rebuild for the session.
func (s *MarketplaceService) Reload(ctx context.Context, sess *sync.Session) error {
	return s.sync.ReloadJobs(ctx, sess)
}

// Bids returns the deduped bid list for a job.
func (s *MarketplaceService) Bids(ctx context.Context, jobID int64) []ledger.BidEvent {
	return s.sync.LoadBids(ctx, jobID)
}

// WorkSubmitted reports whether work has been submitted for a job.
func (s *MarketplaceService) WorkSubmitted(ctx context.Context, jobID int64) bool {
	return s.sync.WorkSubmitted(ctx, jobID)
}

// PlatformFees returns the collected platform fees as a display amount.
func (s *MarketplaceService) PlatformFees(ctx context.Context) (decimal.Decimal, error) {
	fees, err := s.ledger.PlatformFees(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read platform fees: %w", err)
	}
	return ledger.FromMinorUnits(fees), nil
}

// ActionHistory returns the journal rows for an account, newest first.
func (s *MarketplaceService) ActionHistory(address string, limit int) ([]models.ActionRecord, error) {
	var records []models.ActionRecord
	err := s.db.
		Where("wallet_address = ?", strings.ToLower(address)).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
