package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/models"
	"freelance-marketplace/internal/services"
)

const testWallet = "0xAbC0000000000000000000000000000000000001"

// stubLedger accepts every call; only registration mutates state.
type stubLedger struct {
	users map[string]ledger.User
}

func newStubLedger() *stubLedger {
	return &stubLedger{users: make(map[string]ledger.User)}
}

func (s *stubLedger) JobCount(ctx context.Context) (int64, error) { return 0, nil }

func (s *stubLedger) Job(ctx context.Context, id int64) (ledger.Job, error) {
	return ledger.Job{}, fmt.Errorf("job %d out of range", id)
}

func (s *stubLedger) BidEvents(ctx context.Context, jobID int64) ([]ledger.BidEvent, error) {
	return nil, nil
}

func (s *stubLedger) WorkSubmittedEvents(ctx context.Context, jobID int64) ([]ledger.WorkEvent, error) {
	return nil, nil
}

func (s *stubLedger) User(ctx context.Context, address string) (ledger.User, error) {
	return s.users[strings.ToLower(address)], nil
}

func (s *stubLedger) Arbiter(ctx context.Context) (string, error) {
	return "0x1110000000000000000000000000000000000009", nil
}

func (s *stubLedger) PlatformFees(ctx context.Context) (int64, error) { return 0, nil }

func (s *stubLedger) RegisterUser(ctx context.Context, from, name string, role ledger.Role) (string, error) {
	s.users[strings.ToLower(from)] = ledger.User{Name: name, Role: role, Reputation: 100, IsRegistered: true}
	return "0xtx", nil
}

func (s *stubLedger) PostJob(ctx context.Context, from, title, category string, maxBudget, deadline int64) (string, error) {
	return "0xtx", nil
}

func (s *stubLedger) PlaceBid(ctx context.Context, from string, jobID, amount int64, proposedTime string) (string, error) {
	return "0xtx", nil
}

func (s *stubLedger) HireFreelancer(ctx context.Context, from string, jobID int64, bidIndex int, value int64) (string, error) {
	return "0xtx", nil
}

func (s *stubLedger) SubmitWork(ctx context.Context, from string, jobID int64) (string, error) {
	return "0xtx", nil
}

func (s *stubLedger) ApproveWork(ctx context.Context, from string, jobID int64) (string, error) {
	return "0xtx", nil
}

func (s *stubLedger) DisputeJob(ctx context.Context, from string, jobID int64) (string, error) {
	return "0xtx", nil
}

func (s *stubLedger) ResolveDispute(ctx context.Context, from string, jobID int64, payFreelancer bool) (string, error) {
	return "0xtx", nil
}

func (s *stubLedger) ConfirmTransaction(ctx context.Context, txHash string, timeout time.Duration) (bool, error) {
	return true, nil
}

func setupRegisterRouter(t *testing.T) (*gin.Engine, *stubLedger, *services.UserService) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.ActionRecord{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	stub := newStubLedger()
	marketplace := services.NewMarketplaceService(db, stub, time.Second, 0)
	userService := services.NewUserService(db, stub)
	handler := NewJobHandler(marketplace, userService)

	if _, err := marketplace.Connect(context.Background(), testWallet); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("wallet_address", testWallet)
	})
	router.POST("/register", handler.Register)
	return router, stub, userService
}

func TestRegisterRoleNoneGetsRoleError(t *testing.T) {
	router, _, _ := setupRegisterRouter(t)

	// Role 0 must reach the service's role check, not die in binding.
	body := bytes.NewBufferString(`{"name": "Bob", "role": 0}`)
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid role") {
		t.Errorf("expected the role validation message, got %s", w.Body.String())
	}
}

func TestRegisterMissingRoleRejected(t *testing.T) {
	router, _, _ := setupRegisterRouter(t)

	body := bytes.NewBufferString(`{"name": "Bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRegisterRefreshesCachedUser(t *testing.T) {
	router, _, userService := setupRegisterRouter(t)

	body := bytes.NewBufferString(`{"name": "Bob", "role": 3}`)
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	cached, err := userService.GetCached(testWallet)
	if err != nil {
		t.Fatalf("registration should populate the user cache: %v", err)
	}
	if !cached.IsRegistered || cached.Name != "Bob" || cached.Role != int(ledger.RoleFreelancer) {
		t.Errorf("unexpected cached row after registration: %+v", cached)
	}
}
