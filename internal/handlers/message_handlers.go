package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kiwinews/delegation-api/internal/db"
	"github.com/kiwinews/delegation-api/internal/eligibility"
	"github.com/kiwinews/delegation-api/internal/logger"
	"github.com/kiwinews/delegation-api/internal/signer"
)

// MessageHandler accepts signed actions. Eligibility is resolved here
// against live delegation and allowlist state on every submission; the
// client's own check is a convenience only and is never trusted.
type MessageHandler struct {
	common *CommonServices
}

// NewMessageHandler creates a new MessageHandler instance
func NewMessageHandler(common *CommonServices) *MessageHandler {
	return &MessageHandler{common: common}
}

// SubmitMessageRequest is the wire form of a signed action.
type SubmitMessageRequest struct {
	Title     string `json:"title"`
	Href      string `json:"href"`
	Type      string `json:"type" binding:"required"`
	Timestamp int64  `json:"timestamp" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// SubmitMessage godoc
// @Summary Submit a signed action
// @Description Verifies the signature, resolves the signer's eligibility against current delegation and allowlist state, and stores the message
// @Tags messages
// @Accept json
// @Produce json
// @Success 201 {object} db.Message
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /messages [post]
func (h *MessageHandler) SubmitMessage(c *gin.Context) {
	var req SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid message body", err)
		return
	}

	if !signer.ValidType(req.Type) {
		sendError(c, http.StatusBadRequest, "Unknown message type", errors.Errorf("type %q", req.Type))
		return
	}

	drift := time.Since(time.Unix(req.Timestamp, 0))
	if drift > h.common.timestampTolerance || drift < -h.common.timestampTolerance {
		sendError(c, http.StatusBadRequest, "Message timestamp out of range", errors.Errorf("timestamp %d", req.Timestamp))
		return
	}

	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Malformed signature", err)
		return
	}

	allowlist, delegations, err := h.loadEligibilityState(c.Request.Context())
	if err != nil {
		handleDBError(c, err, "Failed to load eligibility state")
		return
	}

	msg := signer.Message{
		Title:     req.Title,
		Href:      req.Href,
		Type:      req.Type,
		Timestamp: req.Timestamp,
	}
	signerAddr, err := signer.Recover(msg, sig)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid signature", err)
		return
	}
	identity, ok := eligibility.Resolve(allowlist, delegations, signerAddr)
	if !ok {
		sendError(c, http.StatusUnauthorized, "Signer is not eligible", signer.ErrEligibilityDenied)
		return
	}

	stored, err := h.common.db.InsertMessage(c.Request.Context(), db.InsertMessageParams{
		Title:     req.Title,
		Href:      req.Href,
		Type:      req.Type,
		Timestamp: req.Timestamp,
		Signature: req.Signature,
		Signer:    strings.ToLower(signerAddr.Hex()),
		Identity:  strings.ToLower(identity.Hex()),
	})
	if err != nil {
		handleDBError(c, err, "Failed to store message")
		return
	}

	logger.Info("Message accepted",
		zap.String("type", req.Type),
		zap.String("signer", signerAddr.Hex()),
		zap.String("identity", identity.Hex()),
	)
	sendSuccess(c, http.StatusCreated, stored)
}

// ListMessages godoc
// @Summary List recent messages
// @Tags messages
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /messages [get]
func (h *MessageHandler) ListMessages(c *gin.Context) {
	items, err := h.common.db.ListMessages(c.Request.Context(), 100)
	if err != nil {
		handleDBError(c, err, "Failed to list messages")
		return
	}
	sendList(c, items)
}

// loadEligibilityState assembles the resolver inputs from the state
// mirror.
func (h *MessageHandler) loadEligibilityState(ctx context.Context) ([]common.Address, eligibility.DelegationMap, error) {
	entries, err := h.common.db.ListAllowlist(ctx)
	if err != nil {
		return nil, nil, err
	}
	allowlist := make([]common.Address, 0, len(entries))
	for _, entry := range entries {
		allowlist = append(allowlist, common.HexToAddress(entry.Address))
	}

	records, err := h.common.db.ListDelegations(ctx)
	if err != nil {
		return nil, nil, err
	}
	// Rows arrive newest first. A delegate key can carry rows under more
	// than one owner; only its newest record is current, so an earlier
	// row must never be shadowed by an older one.
	delegations := make(eligibility.DelegationMap, len(records))
	for _, record := range records {
		delegate := common.HexToAddress(record.Delegate)
		if _, ok := delegations[delegate]; ok {
			continue
		}
		delegations[delegate] = eligibility.Record{
			Owner:      common.HexToAddress(record.Owner),
			Authorized: record.Authorized,
		}
	}
	return allowlist, delegations, nil
}
