package handlers

import (
	"log"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"freelance-marketplace/internal/auth"
	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/services"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// AuthHandler handles wallet login and session introspection
type AuthHandler struct {
	userService *services.UserService
	marketplace *services.MarketplaceService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userService *services.UserService, marketplace *services.MarketplaceService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		marketplace: marketplace,
	}
}

// WalletLogin binds a wallet address to a session token and performs
// the initial snapshot load for the account.
func (h *AuthHandler) WalletLogin(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	if !addressPattern.MatchString(req.WalletAddress) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid wallet address format",
		})
		return
	}

	sess, err := h.marketplace.Connect(c.Request.Context(), req.WalletAddress)
	if err != nil {
		log.Printf("Wallet login failed for %s: %v", req.WalletAddress, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Could not reach the ledger. Please try again.",
		})
		return
	}

	// Cache the registration record locally.
	if _, err := h.userService.Refresh(c.Request.Context(), req.WalletAddress); err != nil {
		log.Printf("Failed to cache user %s: %v", req.WalletAddress, err)
	}

	isArbiter, err := h.userService.IsArbiter(c.Request.Context(), req.WalletAddress)
	if err != nil {
		log.Printf("Arbiter check failed for %s: %v", req.WalletAddress, err)
	}

	token, err := auth.GenerateToken(req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create session token",
		})
		return
	}

	user := sess.User()
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"wallet_address": sess.Account,
			"name":           user.Name,
			"role":           user.Role.String(),
			"reputation":     user.Reputation,
			"is_registered":  user.IsRegistered,
			"is_arbiter":     isArbiter,
		},
	})
}

// GetProfile returns the cached profile for any wallet address, for
// rendering client and freelancer names next to jobs and bids.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	address := c.Param("address")
	if !addressPattern.MatchString(address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid wallet address format",
		})
		return
	}

	profile, err := h.userService.Profile(c.Request.Context(), address)
	if err != nil {
		log.Printf("Profile lookup failed for %s: %v", address, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Could not load the profile. Please try again.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"wallet_address": profile.WalletAddress,
			"name":           profile.Name,
			"role":           ledger.Role(profile.Role).String(),
			"reputation":     profile.Reputation,
			"is_registered":  profile.IsRegistered,
			"last_synced_at": profile.LastSyncedAt,
		},
	})
}

// GetMe returns the active session's account state.
func (h *AuthHandler) GetMe(c *gin.Context) {
	address, exists := auth.GetWalletAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	sess, err := h.marketplace.Session(address)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Session expired. Please log in again.",
		})
		return
	}

	isArbiter, err := h.userService.IsArbiter(c.Request.Context(), address)
	if err != nil {
		log.Printf("Arbiter check failed for %s: %v", address, err)
	}

	user := sess.User()
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"wallet_address": sess.Account,
			"name":           user.Name,
			"role":           user.Role.String(),
			"reputation":     user.Reputation,
			"is_registered":  user.IsRegistered,
			"is_arbiter":     isArbiter,
		},
	})
}
