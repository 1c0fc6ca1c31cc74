package sync

import (
	"context"
	"fmt"
	"log"
	"strings"

	"freelance-marketplace/internal/ledger"
)

// Synchronizer rebuilds a consistent in-memory picture of jobs and bids
// from the ledger. Jobs are fetched by sequential id and replaced
// wholesale; bids are reconstructed from the append-only event log on
// every call, never cached.
type Synchronizer struct {
	ledger ledger.Ledger
}

// NewSynchronizer creates a Synchronizer over a ledger.
func NewSynchronizer(l ledger.Ledger) *Synchronizer {
	return &Synchronizer{ledger: l}
}

// ReloadJobs fetches jobs 1..N and replaces the session snapshot. If
// any fetch fails the reload aborts and the previous snapshot is
// retained; the snapshot is never left partially merged.
func (s *Synchronizer) ReloadJobs(ctx context.Context, sess *Session) error {
	count, err := s.ledger.JobCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to read job count: %w", err)
	}

	jobs := make([]ledger.Job, 0, count)
	for id := int64(1); id <= count; id++ {
		job, err := s.ledger.Job(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load job %d of %d: %w", id, count, err)
		}
		jobs = append(jobs, job)
	}

	sess.replaceSnapshot(jobs)
	log.Printf("Snapshot reloaded: %d jobs", len(jobs))
	return nil
}

// LoadBids returns the current bid per bidder for a job, reconstructed
// from the full event log. Fetch failures are logged and degrade to an
// empty list; they are never surfaced as errors.
func (s *Synchronizer) LoadBids(ctx context.Context, jobID int64) []ledger.BidEvent {
	events, err := s.ledger.BidEvents(ctx, jobID)
	if err != nil {
		log.Printf("Error loading bids for job %d: %v", jobID, err)
		return []ledger.BidEvent{}
	}
	return DedupeBids(events)
}

// WorkSubmitted reports whether at least one work-submission event
// exists for the job. Errors degrade to false.
func (s *Synchronizer) WorkSubmitted(ctx context.Context, jobID int64) bool {
	events, err := s.ledger.WorkSubmittedEvents(ctx, jobID)
	if err != nil {
		log.Printf("Error checking work submission for job %d: %v", jobID, err)
		return false
	}
	return len(events) > 0
}

// DedupeBids collapses a bid-event log to one current bid per bidder:
// the event with the greatest log position wins. Block-number ties are
// broken by transaction index. Output order is the order bidders were
// first seen in the log, matching how hire-by-index addresses bids.
func DedupeBids(events []ledger.BidEvent) []ledger.BidEvent {
	latest := make(map[string]ledger.BidEvent, len(events))
	order := make([]string, 0, len(events))

	for _, ev := range events {
		key := strings.ToLower(ev.Bidder)
		prev, seen := latest[key]
		if !seen {
			order = append(order, key)
			latest[key] = ev
			continue
		}
		if prev.Before(ev) {
			latest[key] = ev
		}
	}

	bids := make([]ledger.BidEvent, 0, len(order))
	for _, key := range order {
		bids = append(bids, latest[key])
	}
	return bids
}
