package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DelegationHandler exposes the mirrored delegation and allowlist state.
type DelegationHandler struct {
	common *CommonServices
}

// NewDelegationHandler creates a new DelegationHandler instance
func NewDelegationHandler(common *CommonServices) *DelegationHandler {
	return &DelegationHandler{common: common}
}

// ListDelegations godoc
// @Summary List delegation records
// @Description Returns all known (owner, delegate) pairs with their current authorization state, revoked pairs included
// @Tags delegations
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /delegations [get]
func (h *DelegationHandler) ListDelegations(c *gin.Context) {
	items, err := h.common.db.ListDelegations(c.Request.Context())
	if err != nil {
		handleDBError(c, err, "Failed to list delegations")
		return
	}
	sendList(c, items)
}

// ListAllowlist godoc
// @Summary List allow-listed owner addresses
// @Tags delegations
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /allowlist [get]
func (h *DelegationHandler) ListAllowlist(c *gin.Context) {
	items, err := h.common.db.ListAllowlist(c.Request.Context())
	if err != nil {
		handleDBError(c, err, "Failed to list allowlist")
		return
	}
	sendList(c, items)
}

// HealthCheck godoc
// @Summary Service health probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
