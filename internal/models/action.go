package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Action kinds, one per mutating contract call.
const (
	ActionRegisterUser   = "REGISTER_USER"
	ActionPostJob        = "POST_JOB"
	ActionPlaceBid       = "PLACE_BID"
	ActionHireFreelancer = "HIRE_FREELANCER"
	ActionSubmitWork     = "SUBMIT_WORK"
	ActionApproveWork    = "APPROVE_WORK"
	ActionDisputeJob     = "DISPUTE_JOB"
	ActionResolveDispute = "RESOLVE_DISPUTE"
)

// Action record statuses.
const (
	ActionStatusPending   = "PENDING"
	ActionStatusConfirmed = "CONFIRMED"
	ActionStatusFailed    = "FAILED"
)

// ActionRecord journals one mutating ledger call: what was submitted,
// by whom, the transaction hash and its confirmation outcome. The
// journal is the service's audit trail; marketplace state itself stays
// on the ledger.
type ActionRecord struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	WalletAddress string          `gorm:"size:64;not null;index" json:"wallet_address"`
	Action        string          `gorm:"size:50;not null" json:"action"`
	JobID         *int64          `gorm:"index" json:"job_id,omitempty"`
	Amount        decimal.Decimal `gorm:"type:decimal(30,0);default:0" json:"amount"`
	TxHash        string          `gorm:"size:255" json:"tx_hash"`
	Status        string          `gorm:"size:20;default:PENDING;index" json:"status"` // PENDING, CONFIRMED, FAILED
	ErrorMessage  string          `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
}

func (ActionRecord) TableName() string {
	return "action_records"
}
