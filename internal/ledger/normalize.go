package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Gateway responses vary in shape: a record may arrive as a
// positional array (the order of the contract struct) or as an object
// with named fields. All normalization happens here, once, at the
// boundary; nothing downstream sees a raw record.

type rawRecord struct {
	positional []json.RawMessage
	named      map[string]json.RawMessage
}

// parseRecord accepts either encoding of a record.
func parseRecord(data []byte) (rawRecord, error) {
	var rec rawRecord

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &rec.positional); err != nil {
			return rec, fmt.Errorf("failed to parse positional record: %w", err)
		}
		return rec, nil
	}

	if err := json.Unmarshal(data, &rec.named); err != nil {
		return rec, fmt.Errorf("failed to parse named record: %w", err)
	}
	return rec, nil
}

// field returns the raw value at the positional index, falling back to
// the named key. Missing fields return nil and decode to zero values.
func (r rawRecord) field(idx int, name string) json.RawMessage {
	if r.positional != nil {
		if idx >= 0 && idx < len(r.positional) {
			return r.positional[idx]
		}
		return nil
	}
	return r.named[name]
}

// toInt64 coerces a numeric field to a plain integer. Contract numbers
// arrive as JSON numbers, decimal strings, or 0x-prefixed hex strings
// (big-integer wrappers serialize as strings).
func toInt64(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}

	// Large integers lose precision as float64; accept them anyway for
	// values that still fit.
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if v, err := strconv.ParseInt(s[2:], 16, 64); err == nil {
			return v
		}
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	return 0
}

func toString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func toBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	// Some gateways encode flags as 0/1.
	return toInt64(raw) != 0
}

// normalizeJob decodes a job record in either shape. Field order matches
// the contract struct: id, client, title, category, maxBudget, deadline,
// status, lockedAmount, selectedFreelancer.
func normalizeJob(data []byte) (Job, error) {
	rec, err := parseRecord(data)
	if err != nil {
		return Job{}, err
	}

	return Job{
		ID:                 toInt64(rec.field(0, "id")),
		Client:             toString(rec.field(1, "client")),
		Title:              toString(rec.field(2, "title")),
		Category:           toString(rec.field(3, "category")),
		MaxBudget:          toInt64(rec.field(4, "maxBudget")),
		Deadline:           toInt64(rec.field(5, "deadline")),
		Status:             JobStatus(toInt64(rec.field(6, "status"))),
		LockedAmount:       toInt64(rec.field(7, "lockedAmount")),
		SelectedFreelancer: toString(rec.field(8, "selectedFreelancer")),
	}, nil
}

// normalizeUser decodes a user record. Field order: name, role,
// (skills), reputation, isRegistered.
func normalizeUser(data []byte) (User, error) {
	rec, err := parseRecord(data)
	if err != nil {
		return User{}, err
	}

	return User{
		Name:         toString(rec.field(0, "name")),
		Role:         Role(toInt64(rec.field(1, "role"))),
		Reputation:   toInt64(rec.field(3, "reputation")),
		IsRegistered: toBool(rec.field(4, "isRegistered")),
	}, nil
}

// normalizeBidEvent decodes one bid log entry. Events only ever arrive
// named (the gateway flattens log args), but the numeric coercion rules
// still apply.
func normalizeBidEvent(data []byte) (BidEvent, error) {
	rec, err := parseRecord(data)
	if err != nil {
		return BidEvent{}, err
	}

	ev := BidEvent{
		JobID:        toInt64(rec.field(0, "jobId")),
		Bidder:       toString(rec.field(1, "freelancer")),
		Amount:       toInt64(rec.field(2, "amount")),
		ProposedTime: toString(rec.field(3, "proposedTime")),
		BlockNumber:  uint64(toInt64(rec.field(4, "blockNumber"))),
		TxIndex:      uint(toInt64(rec.field(5, "transactionIndex"))),
	}
	if ev.ProposedTime == "" {
		// The event does not carry the proposal text.
		ev.ProposedTime = "Contact freelancer"
	}
	return ev, nil
}

func normalizeWorkEvent(data []byte) (WorkEvent, error) {
	rec, err := parseRecord(data)
	if err != nil {
		return WorkEvent{}, err
	}

	return WorkEvent{
		JobID:       toInt64(rec.field(0, "jobId")),
		Freelancer:  toString(rec.field(1, "freelancer")),
		BlockNumber: uint64(toInt64(rec.field(2, "blockNumber"))),
	}, nil
}
