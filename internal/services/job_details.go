package services

import (
	"context"
	"fmt"

	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/sync"
	"freelance-marketplace/internal/views"
)

// JobDetails is the full detail view of one job for the active account.
// Bids are only populated for the owning client; affordances mirror the
// contract's access rules.
type JobDetails struct {
	Job           ledger.Job        `json:"job"`
	WorkSubmitted bool              `json:"work_submitted"`
	Bids          []ledger.BidEvent `json:"bids,omitempty"`
	Actions       Affordances       `json:"actions"`
}

// Affordances lists which mutating calls the active account may make on
// the job right now.
type Affordances struct {
	CanBid        bool `json:"can_bid"`
	CanHire       bool `json:"can_hire"`
	CanSubmitWork bool `json:"can_submit_work"`
	CanApprove    bool `json:"can_approve"`
	CanDispute    bool `json:"can_dispute"`
	CanResolve    bool `json:"can_resolve"`
}

// JobDetails assembles the detail view for a job in the session's
// snapshot.
func (s *MarketplaceService) JobDetails(ctx context.Context, sess *sync.Session, jobID int64) (*JobDetails, error) {
	job, ok := sess.Job(jobID)
	if !ok {
		return nil, fmt.Errorf("job %d not found", jobID)
	}

	submitted := false
	if job.Status == ledger.StatusInProgress {
		submitted = s.sync.WorkSubmitted(ctx, jobID)
	}

	user := sess.User()
	details := &JobDetails{
		Job:           job,
		WorkSubmitted: submitted,
		Actions: Affordances{
			CanBid:        views.CanBid(user, job),
			CanHire:       views.CanHire(sess.Account, job),
			CanSubmitWork: views.CanSubmitWork(sess.Account, job),
			CanApprove:    views.CanApprove(sess.Account, job, submitted),
			CanDispute:    views.CanDispute(sess.Account, job, submitted),
			CanResolve:    views.CanResolve(user, job),
		},
	}

	// Bid lists are visible to the job owner only.
	if views.CanViewBids(sess.Account, job) {
		details.Bids = s.sync.LoadBids(ctx, jobID)
	}

	return details, nil
}
