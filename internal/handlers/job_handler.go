package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"freelance-marketplace/internal/auth"
	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/services"
	"freelance-marketplace/internal/sync"
	"freelance-marketplace/internal/views"
)

// JobHandler serves the projected marketplace views and the mutating
// marketplace actions.
type JobHandler struct {
	marketplace *services.MarketplaceService
	userService *services.UserService
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(marketplace *services.MarketplaceService, userService *services.UserService) *JobHandler {
	return &JobHandler{
		marketplace: marketplace,
		userService: userService,
	}
}

// session resolves the active session or writes the error response.
func (h *JobHandler) session(c *gin.Context) (*sync.Session, bool) {
	address, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}

	sess, err := h.marketplace.Session(address)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired. Please log in again."})
		return nil, false
	}
	return sess, true
}

// jobID parses the :id path parameter.
func jobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job id"})
		return 0, false
	}
	return id, true
}

// jobResponse converts a canonical job record to its display form.
// Amounts leave the core as integer minor units and are converted here,
// at the presentation boundary.
func jobResponse(job ledger.Job) gin.H {
	resp := gin.H{
		"id":         job.ID,
		"client":     job.Client,
		"title":      job.Title,
		"category":   job.Category,
		"max_budget": ledger.FromMinorUnits(job.MaxBudget).String(),
		"deadline":   time.Unix(job.Deadline, 0).UTC().Format(time.RFC3339),
		"status":     job.Status.String(),
	}
	if job.HasFreelancer() {
		resp["selected_freelancer"] = job.SelectedFreelancer
	}
	if job.LockedAmount > 0 {
		resp["locked_amount"] = ledger.FromMinorUnits(job.LockedAmount).String()
	}
	return resp
}

func jobListResponse(jobs []ledger.Job) []gin.H {
	list := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		list = append(list, jobResponse(job))
	}
	return list
}

func bidResponse(bid ledger.BidEvent) gin.H {
	return gin.H{
		"job_id":        bid.JobID,
		"freelancer":    bid.Bidder,
		"amount":        ledger.FromMinorUnits(bid.Amount).String(),
		"proposed_time": bid.ProposedTime,
		"block_number":  bid.BlockNumber,
		"tx_index":      bid.TxIndex,
	}
}

// GetMarketplace returns the open-job listing, optionally filtered by
// category and ordered by the sort query parameter.
func (h *JobHandler) GetMarketplace(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	category := c.Query("category")
	sortBy := views.SortKey(c.Query("sort"))

	jobs := views.Marketplace(sess.Jobs(), category, sortBy)
	c.JSON(http.StatusOK, gin.H{"jobs": jobListResponse(jobs)})
}

// GetJob returns the detail view of one job, including bids if the
// active account owns it.
func (h *JobHandler) GetJob(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	details, err := h.marketplace.JobDetails(c.Request.Context(), sess, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"job":            jobResponse(details.Job),
		"work_submitted": details.WorkSubmitted,
		"actions":        details.Actions,
	}
	if details.Bids != nil {
		bids := make([]gin.H, 0, len(details.Bids))
		for _, bid := range details.Bids {
			bids = append(bids, bidResponse(bid))
		}
		resp["bids"] = bids
	}

	c.JSON(http.StatusOK, resp)
}

// GetClientJobs returns the jobs owned by the active account.
func (h *JobHandler) GetClientJobs(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	jobs := views.ClientJobs(sess.Jobs(), sess.Account)
	c.JSON(http.StatusOK, gin.H{"jobs": jobListResponse(jobs)})
}

// GetFreelancerJobs returns the jobs the active account was hired for.
func (h *JobHandler) GetFreelancerJobs(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	jobs := views.FreelancerJobs(sess.Jobs(), sess.Account)
	c.JSON(http.StatusOK, gin.H{"jobs": jobListResponse(jobs)})
}

// GetDisputedJobs returns jobs awaiting arbitration.
func (h *JobHandler) GetDisputedJobs(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	if sess.User().Role != ledger.RoleArbiter {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the arbiter can view disputed jobs"})
		return
	}

	jobs := views.DisputedJobs(sess.Jobs())
	c.JSON(http.StatusOK, gin.H{"jobs": jobListResponse(jobs)})
}

// Register registers the active account on the ledger.
func (h *JobHandler) Register(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
		Role *int   `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.marketplace.RegisterUser(c.Request.Context(), sess, req.Name, ledger.Role(*req.Role)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Pull the confirmed registration into the local cache.
	if _, err := h.userService.Refresh(c.Request.Context(), sess.Account); err != nil {
		log.Printf("Failed to refresh cached user %s: %v", sess.Account, err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Registration successful"})
}

// PostJob posts a new job listing.
func (h *JobHandler) PostJob(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Title    string `json:"title" binding:"required"`
		Category string `json:"category" binding:"required"`
		Budget   string `json:"budget" binding:"required"`
		Deadline int64  `json:"deadline" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	budget, err := decimal.NewFromString(req.Budget)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid budget amount"})
		return
	}

	err = h.marketplace.PostJob(c.Request.Context(), sess, req.Title, req.Category, budget, time.Unix(req.Deadline, 0))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Job posted successfully"})
}

// PlaceBid places a bid on an open job.
func (h *JobHandler) PlaceBid(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req struct {
		Amount       string `json:"amount" binding:"required"`
		ProposedTime string `json:"proposed_time" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bid amount"})
		return
	}

	if err := h.marketplace.PlaceBid(c.Request.Context(), sess, id, amount, req.ProposedTime); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Bid placed successfully"})
}

// Hire hires the bidder at the given index of the job's bid list. The
// bid amount is attached and locked in escrow by the contract.
func (h *JobHandler) Hire(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req struct {
		BidIndex *int `json:"bid_index" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.marketplace.HireFreelancer(c.Request.Context(), sess, id, *req.BidIndex); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Freelancer hired. Funds are now in escrow."})
}

// SubmitWork marks the freelancer's work as submitted.
func (h *JobHandler) SubmitWork(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	if err := h.marketplace.SubmitWork(c.Request.Context(), sess, id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Work submitted. Waiting for client approval."})
}

// Approve releases the escrowed payment to the freelancer.
func (h *JobHandler) Approve(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	if err := h.marketplace.ApproveWork(c.Request.Context(), sess, id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Work approved. Payment released to the freelancer."})
}

// Dispute escalates an in-progress job to the arbiter.
func (h *JobHandler) Dispute(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	if err := h.marketplace.DisputeJob(c.Request.Context(), sess, id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Job disputed. The arbiter will review it."})
}

// Resolve settles a disputed job.
func (h *JobHandler) Resolve(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req struct {
		PayFreelancer *bool `json:"pay_freelancer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.marketplace.ResolveDispute(c.Request.Context(), sess, id, *req.PayFreelancer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Dispute resolved"})
}

// Reload forces a full snapshot rebuild for the session.
func (h *JobHandler) Reload(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	if err := h.marketplace.Reload(c.Request.Context(), sess); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Snapshot reload failed. Previous data retained."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Snapshot reloaded", "job_count": len(sess.Jobs())})
}

// GetPlatformFees returns the fees collected by the contract, for the
// arbiter dashboard.
func (h *JobHandler) GetPlatformFees(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	if sess.User().Role != ledger.RoleArbiter {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the arbiter can view platform fees"})
		return
	}

	fees, err := h.marketplace.PlatformFees(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to read platform fees"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"platform_fees": fees.String()})
}

// GetActionHistory returns the account's action journal.
func (h *JobHandler) GetActionHistory(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	records, err := h.marketplace.ActionHistory(sess.Account, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load action history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"actions": records})
}
