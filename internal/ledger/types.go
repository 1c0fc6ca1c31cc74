package ledger

import "strings"

// JobStatus mirrors the contract's status enum.
type JobStatus int

const (
	StatusOpen JobStatus = iota
	StatusInProgress
	StatusCompleted
	StatusDisputed
	StatusResolved
	StatusClosed
)

// String returns the display name for a job status
func (s JobStatus) String() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusDisputed:
		return "Disputed"
	case StatusResolved:
		return "Resolved"
	case StatusClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Role mirrors the contract's role enum.
type Role int

const (
	RoleNone Role = iota
	RoleArbiter
	RoleClient
	RoleFreelancer
)

// String returns the display name for a role
func (r Role) String() string {
	switch r {
	case RoleArbiter:
		return "Arbiter"
	case RoleClient:
		return "Client"
	case RoleFreelancer:
		return "Freelancer"
	default:
		return "None"
	}
}

// ZeroAddress is the contract's sentinel for "no freelancer selected".
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Job is the canonical in-memory job record. Amounts are integer minor
// units; the contract owns the record, this is a read-through copy.
type Job struct {
	ID                 int64     `json:"id"`
	Client             string    `json:"client"`
	Title              string    `json:"title"`
	Category           string    `json:"category"`
	MaxBudget          int64     `json:"max_budget"`
	Deadline           int64     `json:"deadline"`
	Status             JobStatus `json:"status"`
	LockedAmount       int64     `json:"locked_amount"`
	SelectedFreelancer string    `json:"selected_freelancer"`
}

// HasFreelancer reports whether a freelancer has been selected.
func (j Job) HasFreelancer() bool {
	return j.SelectedFreelancer != "" && !strings.EqualFold(j.SelectedFreelancer, ZeroAddress)
}

// BidEvent is one entry of the append-only bid log. Bids are not
// separately addressable on-chain; they only exist as events.
type BidEvent struct {
	JobID        int64  `json:"job_id"`
	Bidder       string `json:"bidder"`
	Amount       int64  `json:"amount"`
	ProposedTime string `json:"proposed_time"`
	BlockNumber  uint64 `json:"block_number"`
	TxIndex      uint   `json:"tx_index"`
}

// Before reports whether e was logged before other. Block number is the
// primary ordering key, transaction index breaks ties within a block.
func (e BidEvent) Before(other BidEvent) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	return e.TxIndex < other.TxIndex
}

// WorkEvent marks a work submission for a job. Existence is all that
// matters; no payload beyond the log position.
type WorkEvent struct {
	JobID       int64  `json:"job_id"`
	Freelancer  string `json:"freelancer"`
	BlockNumber uint64 `json:"block_number"`
}

// User is the on-chain registration record for an account.
type User struct {
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	Reputation   int64  `json:"reputation"`
	IsRegistered bool   `json:"is_registered"`
}
