package views

import (
	"strings"

	"freelance-marketplace/internal/ledger"
)

// Eligibility predicates gate which ledger-mutating calls are reachable
// from the view layer. The contract enforces access control on-chain;
// these mirror its rules so ineligible actions are never offered or
// submitted.

// CanBid reports whether the user may bid on the job: freelancers only,
// open jobs only.
func CanBid(user ledger.User, job ledger.Job) bool {
	return user.Role == ledger.RoleFreelancer && job.Status == ledger.StatusOpen
}

// CanViewBids reports whether the account may see the job's bid list:
// the owning client only.
func CanViewBids(account string, job ledger.Job) bool {
	return strings.EqualFold(job.Client, account)
}

// CanHire reports whether the account may hire a bidder: the owning
// client, while the job is still open.
func CanHire(account string, job ledger.Job) bool {
	return strings.EqualFold(job.Client, account) && job.Status == ledger.StatusOpen
}

// CanSubmitWork reports whether the account may submit work: the
// selected freelancer, while the job is in progress. The address match
// is exact-case, consistent with the freelancer view filter.
func CanSubmitWork(account string, job ledger.Job) bool {
	return job.SelectedFreelancer == account && job.Status == ledger.StatusInProgress
}

// CanApprove reports whether the account may approve work: the owning
// client, in-progress job, and work must actually have been submitted.
func CanApprove(account string, job ledger.Job, workSubmitted bool) bool {
	return strings.EqualFold(job.Client, account) &&
		job.Status == ledger.StatusInProgress &&
		workSubmitted
}

// CanDispute shares the approve gate: a client can only dispute work
// that has been submitted.
func CanDispute(account string, job ledger.Job, workSubmitted bool) bool {
	return CanApprove(account, job, workSubmitted)
}

// CanResolve reports whether the user may resolve the dispute: the
// arbiter, on disputed jobs only.
func CanResolve(user ledger.User, job ledger.Job) bool {
	return user.Role == ledger.RoleArbiter && job.Status == ledger.StatusDisputed
}
