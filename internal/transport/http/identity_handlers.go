package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/satbox/satbox-server/internal/identity"
)

// IdentityHandlers provides HTTP handlers for the identity registry.
type IdentityHandlers struct {
	registry identity.Registry
	log      *zerolog.Logger
}

// NewIdentityHandlers creates a new identity handlers instance.
func NewIdentityHandlers(registry identity.Registry, logger *zerolog.Logger) *IdentityHandlers {
	return &IdentityHandlers{
		registry: registry,
		log:      logger,
	}
}

// UpsertIdentityRequest represents the registry upsert request body.
type UpsertIdentityRequest struct {
	BtcAddress string `json:"btcAddress"`
	PublicKey  string `json:"publicKey"`
	Name       string `json:"name"`
}

// IdentityResponse represents an identity record in API responses.
type IdentityResponse struct {
	Address    string `json:"address"`
	BtcAddress string `json:"btcAddress,omitempty"`
	Name       string `json:"name,omitempty"`
	UpdatedAt  string `json:"updatedAt"`
}

// UpsertIdentity registers or updates an identity record.
// PUT /api/v1/identities/:address
func (h *IdentityHandlers) UpsertIdentity(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing address"})
		return
	}

	var req UpsertIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid identity request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	record := &identity.Record{
		Address:    address,
		BtcAddress: req.BtcAddress,
		PublicKey:  req.PublicKey,
		Name:       req.Name,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := h.registry.Save(record); err != nil {
		h.log.Error().Err(err).Str("address", address).Msg("failed to save identity")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("address", address).Str("name", req.Name).Msg("identity registered")
	c.JSON(http.StatusOK, IdentityResponse{
		Address:    record.Address,
		BtcAddress: record.BtcAddress,
		Name:       record.Name,
		UpdatedAt:  record.UpdatedAt.Format(time.RFC3339),
	})
}
