package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testClient     = "0xAbC0000000000000000000000000000000000001"
	testFreelancer = "0xDeF0000000000000000000000000000000000002"
	testArbiter    = "0x1110000000000000000000000000000000000009"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.ActionRecord{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

type hireCall struct {
	jobID    int64
	bidIndex int
	value    int64
}

// fakeLedger applies mutations to its own job list so a reload after a
// confirmed action observes the new state.
type fakeLedger struct {
	jobs    []ledger.Job
	bids    map[int64][]ledger.BidEvent
	work    map[int64][]ledger.WorkEvent
	users   map[string]ledger.User
	arbiter string

	failSubmit  bool
	failConfirm bool

	lastHire *hireCall
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		bids:    make(map[int64][]ledger.BidEvent),
		work:    make(map[int64][]ledger.WorkEvent),
		users:   make(map[string]ledger.User),
		arbiter: testArbiter,
	}
}

func (f *fakeLedger) JobCount(ctx context.Context) (int64, error) {
	return int64(len(f.jobs)), nil
}

func (f *fakeLedger) Job(ctx context.Context, id int64) (ledger.Job, error) {
	if id < 1 || id > int64(len(f.jobs)) {
		return ledger.Job{}, fmt.Errorf("job %d out of range", id)
	}
	return f.jobs[id-1], nil
}

func (f *fakeLedger) BidEvents(ctx context.Context, jobID int64) ([]ledger.BidEvent, error) {
	return f.bids[jobID], nil
}

func (f *fakeLedger) WorkSubmittedEvents(ctx context.Context, jobID int64) ([]ledger.WorkEvent, error) {
	return f.work[jobID], nil
}

func (f *fakeLedger) User(ctx context.Context, address string) (ledger.User, error) {
	return f.users[strings.ToLower(address)], nil
}

func (f *fakeLedger) Arbiter(ctx context.Context) (string, error) {
	return f.arbiter, nil
}

func (f *fakeLedger) PlatformFees(ctx context.Context) (int64, error) {
	return 0, nil
}

func (f *fakeLedger) submit() (string, error) {
	if f.failSubmit {
		return "", fmt.Errorf("execution reverted")
	}
	return "0xdeadbeef", nil
}

func (f *fakeLedger) RegisterUser(ctx context.Context, from, name string, role ledger.Role) (string, error) {
	hash, err := f.submit()
	if err != nil {
		return "", err
	}
	f.users[strings.ToLower(from)] = ledger.User{Name: name, Role: role, Reputation: 100, IsRegistered: true}
	return hash, nil
}

func (f *fakeLedger) PostJob(ctx context.Context, from, title, category string, maxBudget, deadline int64) (string, error) {
	hash, err := f.submit()
	if err != nil {
		return "", err
	}
	f.jobs = append(f.jobs, ledger.Job{
		ID:        int64(len(f.jobs) + 1),
		Client:    from,
		Title:     title,
		Category:  category,
		MaxBudget: maxBudget,
		Deadline:  deadline,
		Status:    ledger.StatusOpen,
	})
	return hash, nil
}

func (f *fakeLedger) PlaceBid(ctx context.Context, from string, jobID, amount int64, proposedTime string) (string, error) {
	hash, err := f.submit()
	if err != nil {
		return "", err
	}
	f.bids[jobID] = append(f.bids[jobID], ledger.BidEvent{
		JobID:        jobID,
		Bidder:       from,
		Amount:       amount,
		ProposedTime: proposedTime,
		BlockNumber:  uint64(len(f.bids[jobID]) + 1),
	})
	return hash, nil
}

func (f *fakeLedger) HireFreelancer(ctx context.Context, from string, jobID int64, bidIndex int, value int64) (string, error) {
	hash, err := f.submit()
	if err != nil {
		return "", err
	}
	f.lastHire = &hireCall{jobID: jobID, bidIndex: bidIndex, value: value}
	f.jobs[jobID-1].Status = ledger.StatusInProgress
	f.jobs[jobID-1].SelectedFreelancer = testFreelancer
	f.jobs[jobID-1].LockedAmount = value
	return hash, nil
}

func (f *fakeLedger) SubmitWork(ctx context.Context, from string, jobID int64) (string, error) {
	hash, err := f.submit()
	if err != nil {
		return "", err
	}
	f.work[jobID] = append(f.work[jobID], ledger.WorkEvent{JobID: jobID, Freelancer: from})
	return hash, nil
}

func (f *fakeLedger) ApproveWork(ctx context.Context, from string, jobID int64) (string, error) {
	hash, err := f.submit()
	if err != nil {
		return "", err
	}
	f.jobs[jobID-1].Status = ledger.StatusClosed
	return hash, nil
}

func (f *fakeLedger) DisputeJob(ctx context.Context, from string, jobID int64) (string, error) {
	hash, err := f.submit()
	if err != nil {
		return "", err
	}
	f.jobs[jobID-1].Status = ledger.StatusDisputed
	return hash, nil
}

func (f *fakeLedger) ResolveDispute(ctx context.Context, from string, jobID int64, payFreelancer bool) (string, error) {
	hash, err := f.submit()
	if err != nil {
		return "", err
	}
	f.jobs[jobID-1].Status = ledger.StatusResolved
	return hash, nil
}

func (f *fakeLedger) ConfirmTransaction(ctx context.Context, txHash string, timeout time.Duration) (bool, error) {
	if f.failConfirm {
		return false, nil
	}
	return true, nil
}

func setupService(t *testing.T, fake *fakeLedger) (*MarketplaceService, *gorm.DB) {
	db := setupTestDB(t)
	return NewMarketplaceService(db, fake, time.Second, 0), db
}

func lastRecord(t *testing.T, db *gorm.DB) models.ActionRecord {
	var record models.ActionRecord
	if err := db.Order("created_at DESC").First(&record).Error; err != nil {
		t.Fatalf("Failed to load journal record: %v", err)
	}
	return record
}

func TestPostJobConfirmsAndReloadsSnapshot(t *testing.T) {
	fake := newFakeLedger()
	fake.users[strings.ToLower(testClient)] = ledger.User{Name: "Alice", Role: ledger.RoleClient, IsRegistered: true}
	svc, db := setupService(t, fake)

	sess, err := svc.Connect(context.Background(), testClient)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if len(sess.Jobs()) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d jobs", len(sess.Jobs()))
	}

	budget := decimal.RequireFromString("1.5")
	deadline := time.Now().Add(72 * time.Hour)
	if err := svc.PostJob(context.Background(), sess, "Build a Website", "Web Development", budget, deadline); err != nil {
		t.Fatalf("PostJob failed: %v", err)
	}

	jobs := sess.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("snapshot should be reloaded after a confirmed action, got %d jobs", len(jobs))
	}
	if jobs[0].MaxBudget != 1_500_000_000 {
		t.Errorf("budget 1.5 should cross the boundary as 1500000000 minor units, got %d", jobs[0].MaxBudget)
	}

	record := lastRecord(t, db)
	if record.Action != models.ActionPostJob {
		t.Errorf("unexpected action: %s", record.Action)
	}
	if record.Status != models.ActionStatusConfirmed {
		t.Errorf("expected confirmed journal record, got %s", record.Status)
	}
	if record.TxHash != "0xdeadbeef" {
		t.Errorf("journal record should carry the tx hash, got %q", record.TxHash)
	}
	if record.ConfirmedAt == nil {
		t.Error("confirmed record should have a confirmation time")
	}
}

func TestFailedActionJournalsFailureAndKeepsSnapshot(t *testing.T) {
	fake := newFakeLedger()
	fake.users[strings.ToLower(testClient)] = ledger.User{Name: "Alice", Role: ledger.RoleClient, IsRegistered: true}
	fake.jobs = []ledger.Job{
		{ID: 1, Client: testClient, Title: "Existing", Status: ledger.StatusOpen, MaxBudget: 100},
	}
	svc, db := setupService(t, fake)

	sess, err := svc.Connect(context.Background(), testClient)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	fake.failSubmit = true
	err = svc.PostJob(context.Background(), sess, "Doomed", "Design", decimal.NewFromInt(1), time.Now().Add(time.Hour))
	if err == nil {
		t.Fatal("expected PostJob to fail")
	}

	if len(sess.Jobs()) != 1 {
		t.Errorf("failed action must not touch the snapshot, got %d jobs", len(sess.Jobs()))
	}

	record := lastRecord(t, db)
	if record.Status != models.ActionStatusFailed {
		t.Errorf("expected failed journal record, got %s", record.Status)
	}
	if record.ErrorMessage == "" {
		t.Error("failed record should carry the ledger error")
	}
}

func TestUnconfirmedTransactionJournalsFailure(t *testing.T) {
	fake := newFakeLedger()
	fake.users[strings.ToLower(testClient)] = ledger.User{Name: "Alice", Role: ledger.RoleClient, IsRegistered: true}
	fake.failConfirm = true
	svc, db := setupService(t, fake)

	sess, err := svc.Connect(context.Background(), testClient)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	err = svc.PostJob(context.Background(), sess, "Stuck", "Design", decimal.NewFromInt(1), time.Now().Add(time.Hour))
	if err == nil {
		t.Fatal("expected PostJob to fail on an unconfirmed transaction")
	}
	if record := lastRecord(t, db); record.Status != models.ActionStatusFailed {
		t.Errorf("expected failed journal record, got %s", record.Status)
	}
}

func TestHireFreelancerUsesDedupedBidList(t *testing.T) {
	fake := newFakeLedger()
	fake.users[strings.ToLower(testClient)] = ledger.User{Name: "Alice", Role: ledger.RoleClient, IsRegistered: true}
	fake.jobs = []ledger.Job{
		{ID: 1, Client: testClient, Title: "Logo", Status: ledger.StatusOpen, MaxBudget: 2_000_000_000},
	}
	// The freelancer re-bid; only the superseding amount is hireable.
	fake.bids[1] = []ledger.BidEvent{
		{JobID: 1, Bidder: testFreelancer, Amount: 1_000_000_000, BlockNumber: 3},
		{JobID: 1, Bidder: testFreelancer, Amount: 800_000_000, BlockNumber: 7},
	}
	svc, _ := setupService(t, fake)

	sess, err := svc.Connect(context.Background(), testClient)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := svc.HireFreelancer(context.Background(), sess, 1, 0); err != nil {
		t.Fatalf("HireFreelancer failed: %v", err)
	}

	if fake.lastHire == nil {
		t.Fatal("hire call never reached the ledger")
	}
	if fake.lastHire.value != 800_000_000 {
		t.Errorf("hire must attach the deduped bid amount, got %d", fake.lastHire.value)
	}

	job, ok := sess.Job(1)
	if !ok {
		t.Fatal("job 1 missing from reloaded snapshot")
	}
	if job.Status != ledger.StatusInProgress || job.SelectedFreelancer != testFreelancer {
		t.Errorf("reloaded snapshot should reflect the hire: %+v", job)
	}

	if err := svc.HireFreelancer(context.Background(), sess, 1, 5); err == nil {
		t.Error("expected out-of-range bid index to be rejected")
	}
}

func TestPlaceBidOverBudgetRejected(t *testing.T) {
	fake := newFakeLedger()
	fake.users[strings.ToLower(testFreelancer)] = ledger.User{Name: "Bob", Role: ledger.RoleFreelancer, IsRegistered: true}
	fake.jobs = []ledger.Job{
		{ID: 1, Client: testClient, Title: "Logo", Status: ledger.StatusOpen, MaxBudget: 1_000_000_000},
	}
	svc, _ := setupService(t, fake)

	sess, err := svc.Connect(context.Background(), testFreelancer)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	err = svc.PlaceBid(context.Background(), sess, 1, decimal.RequireFromString("1.1"), "3 days")
	if err == nil {
		t.Fatal("expected over-budget bid to be rejected")
	}
	if len(fake.bids[1]) != 0 {
		t.Error("rejected bid must not reach the ledger")
	}

	if err := svc.PlaceBid(context.Background(), sess, 1, decimal.RequireFromString("0.9"), "3 days"); err != nil {
		t.Fatalf("in-budget bid failed: %v", err)
	}
	if len(fake.bids[1]) != 1 || fake.bids[1][0].Amount != 900_000_000 {
		t.Errorf("expected one bid of 900000000 minor units, got %v", fake.bids[1])
	}
}

func TestRegisterUserArbiterRoleRestricted(t *testing.T) {
	fake := newFakeLedger()
	svc, _ := setupService(t, fake)

	sess, err := svc.Connect(context.Background(), testClient)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := svc.RegisterUser(context.Background(), sess, "Mallory", ledger.RoleArbiter); err == nil {
		t.Error("only the platform owner may register as arbiter")
	}

	arbiterSess, err := svc.Connect(context.Background(), testArbiter)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := svc.RegisterUser(context.Background(), arbiterSess, "Judge", ledger.RoleArbiter); err != nil {
		t.Fatalf("arbiter registration failed: %v", err)
	}
	if u := arbiterSess.User(); u.Role != ledger.RoleArbiter || !u.IsRegistered {
		t.Errorf("session user should be refreshed after registration: %+v", u)
	}

	if err := svc.RegisterUser(context.Background(), arbiterSess, "Judge", ledger.RoleArbiter); err == nil {
		t.Error("double registration should be rejected")
	}
}

func TestSessionUserReadableDuringRegistration(t *testing.T) {
	fake := newFakeLedger()
	svc, _ := setupService(t, fake)

	sess, err := svc.Connect(context.Background(), testFreelancer)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Handlers read the registration record while a registration is in
	// flight on another request. Run under the race detector.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = sess.User().IsRegistered
		}
	}()

	if err := svc.RegisterUser(context.Background(), sess, "Bob", ledger.RoleFreelancer); err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	<-done

	if u := sess.User(); !u.IsRegistered || u.Role != ledger.RoleFreelancer {
		t.Errorf("registration should be visible after it confirms: %+v", u)
	}
}

func TestJobDetailsHidesBidsFromNonOwner(t *testing.T) {
	fake := newFakeLedger()
	fake.users[strings.ToLower(testClient)] = ledger.User{Name: "Alice", Role: ledger.RoleClient, IsRegistered: true}
	fake.users[strings.ToLower(testFreelancer)] = ledger.User{Name: "Bob", Role: ledger.RoleFreelancer, IsRegistered: true}
	fake.jobs = []ledger.Job{
		{ID: 1, Client: testClient, Title: "Logo", Status: ledger.StatusOpen, MaxBudget: 1_000_000_000},
	}
	fake.bids[1] = []ledger.BidEvent{
		{JobID: 1, Bidder: testFreelancer, Amount: 500_000_000, BlockNumber: 2},
	}
	svc, _ := setupService(t, fake)

	owner, err := svc.Connect(context.Background(), testClient)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	bidder, err := svc.Connect(context.Background(), testFreelancer)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ownerView, err := svc.JobDetails(context.Background(), owner, 1)
	if err != nil {
		t.Fatalf("JobDetails failed: %v", err)
	}
	if len(ownerView.Bids) != 1 {
		t.Errorf("owner should see the bid list, got %d bids", len(ownerView.Bids))
	}
	if !ownerView.Actions.CanHire {
		t.Error("owner of an open job should be able to hire")
	}

	bidderView, err := svc.JobDetails(context.Background(), bidder, 1)
	if err != nil {
		t.Fatalf("JobDetails failed: %v", err)
	}
	if bidderView.Bids != nil {
		t.Error("non-owners must not see the bid list")
	}
	if !bidderView.Actions.CanBid {
		t.Error("registered freelancer should be able to bid on an open job")
	}
}

func TestActionHistoryNewestFirst(t *testing.T) {
	fake := newFakeLedger()
	fake.users[strings.ToLower(testClient)] = ledger.User{Name: "Alice", Role: ledger.RoleClient, IsRegistered: true}
	svc, _ := setupService(t, fake)

	sess, err := svc.Connect(context.Background(), testClient)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	deadline := time.Now().Add(time.Hour)
	for _, title := range []string{"First", "Second"} {
		if err := svc.PostJob(context.Background(), sess, title, "Design", decimal.NewFromInt(1), deadline); err != nil {
			t.Fatalf("PostJob %s failed: %v", title, err)
		}
	}

	history, err := svc.ActionHistory(testClient, 10)
	if err != nil {
		t.Fatalf("ActionHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 journal rows, got %d", len(history))
	}
	for _, record := range history {
		if record.Action != models.ActionPostJob || record.Status != models.ActionStatusConfirmed {
			t.Errorf("unexpected journal row: %+v", record)
		}
	}
	if history[0].CreatedAt.Before(history[1].CreatedAt) {
		t.Error("history must be newest first")
	}
}
