package ledger

import (
	"context"
	"time"
)

// Ledger is the external collaborator holding authoritative marketplace
// state. Reads return normalized records; mutating calls return a
// transaction hash that must be confirmed separately.
type Ledger interface {
	// Reads
	JobCount(ctx context.Context) (int64, error)
	Job(ctx context.Context, id int64) (Job, error)
	BidEvents(ctx context.Context, jobID int64) ([]BidEvent, error)
	WorkSubmittedEvents(ctx context.Context, jobID int64) ([]WorkEvent, error)
	User(ctx context.Context, address string) (User, error)
	Arbiter(ctx context.Context) (string, error)
	PlatformFees(ctx context.Context) (int64, error)

	// Mutations (fire-and-confirm)
	RegisterUser(ctx context.Context, from, name string, role Role) (string, error)
	PostJob(ctx context.Context, from, title, category string, maxBudget, deadline int64) (string, error)
	PlaceBid(ctx context.Context, from string, jobID, amount int64, proposedTime string) (string, error)
	HireFreelancer(ctx context.Context, from string, jobID int64, bidIndex int, value int64) (string, error)
	SubmitWork(ctx context.Context, from string, jobID int64) (string, error)
	ApproveWork(ctx context.Context, from string, jobID int64) (string, error)
	DisputeJob(ctx context.Context, from string, jobID int64) (string, error)
	ResolveDispute(ctx context.Context, from string, jobID int64, payFreelancer bool) (string, error)

	// ConfirmTransaction blocks until the transaction is confirmed,
	// rejected, or the timeout elapses.
	ConfirmTransaction(ctx context.Context, txHash string, timeout time.Duration) (bool, error)
}
