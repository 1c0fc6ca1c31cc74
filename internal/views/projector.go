package views

import (
	"sort"
	"strings"

	"freelance-marketplace/internal/ledger"
)

// SortKey selects the marketplace ordering.
type SortKey string

const (
	SortDefault    SortKey = ""
	SortBudgetDesc SortKey = "budget_desc"
	SortBudgetAsc  SortKey = "budget_asc"
	SortNewest     SortKey = "newest"
)

// Unknown statuses sort after every known one.
const unknownPriority = 999

// clientStatusPriority orders the client dashboard: work needing
// attention first, then open listings, then finished jobs.
var clientStatusPriority = map[ledger.JobStatus]int{
	ledger.StatusInProgress: 1,
	ledger.StatusDisputed:   2,
	ledger.StatusOpen:       3,
	ledger.StatusCompleted:  4,
	ledger.StatusResolved:   5,
	ledger.StatusClosed:     6,
}

// freelancerStatusPriority orders the freelancer dashboard. Open jobs
// never appear here; a freelancer only sees jobs they were hired for.
var freelancerStatusPriority = map[ledger.JobStatus]int{
	ledger.StatusInProgress: 1,
	ledger.StatusDisputed:   2,
	ledger.StatusCompleted:  3,
	ledger.StatusResolved:   4,
	ledger.StatusClosed:     5,
}

// Marketplace projects the open-job listing: status Open, optional
// exact-match category filter, ordered per the sort key. With no sort
// key jobs keep ledger order.
func Marketplace(jobs []ledger.Job, category string, sortBy SortKey) []ledger.Job {
	filtered := make([]ledger.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Status != ledger.StatusOpen {
			continue
		}
		if category != "" && job.Category != category {
			continue
		}
		filtered = append(filtered, job)
	}

	switch sortBy {
	case SortBudgetDesc:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].MaxBudget > filtered[j].MaxBudget
		})
	case SortBudgetAsc:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].MaxBudget < filtered[j].MaxBudget
		})
	case SortNewest:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].ID > filtered[j].ID
		})
	}

	return filtered
}

// ClientJobs projects the jobs owned by the account. Address comparison
// is case-insensitive: ledger addresses are hex and carry no case
// information. Ordering follows the client status priority table with
// newest-first tie-breaks.
func ClientJobs(jobs []ledger.Job, account string) []ledger.Job {
	owned := make([]ledger.Job, 0)
	for _, job := range jobs {
		if strings.EqualFold(job.Client, account) {
			owned = append(owned, job)
		}
	}
	sortByPriority(owned, clientStatusPriority)
	return owned
}

// FreelancerJobs projects the jobs the account was hired for. The
// address match is deliberately exact-case, unlike the client view;
// see the behavioral note in DESIGN.md.
func FreelancerJobs(jobs []ledger.Job, account string) []ledger.Job {
	assigned := make([]ledger.Job, 0)
	for _, job := range jobs {
		if job.SelectedFreelancer == account {
			assigned = append(assigned, job)
		}
	}
	sortByPriority(assigned, freelancerStatusPriority)
	return assigned
}

// DisputedJobs projects jobs awaiting arbitration, in ledger order.
func DisputedJobs(jobs []ledger.Job) []ledger.Job {
	disputed := make([]ledger.Job, 0)
	for _, job := range jobs {
		if job.Status == ledger.StatusDisputed {
			disputed = append(disputed, job)
		}
	}
	return disputed
}

func sortByPriority(jobs []ledger.Job, priority map[ledger.JobStatus]int) {
	sort.SliceStable(jobs, func(i, j int) bool {
		pi, ok := priority[jobs[i].Status]
		if !ok {
			pi = unknownPriority
		}
		pj, ok := priority[jobs[j].Status]
		if !ok {
			pj = unknownPriority
		}
		if pi != pj {
			return pi < pj
		}
		return jobs[i].ID > jobs[j].ID
	})
}
