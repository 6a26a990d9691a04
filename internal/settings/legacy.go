package settings

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/textlens/pkg/models"
)

// LegacyRequest is the body of a legacy-config update. Absent fields keep
// their stored value.
type LegacyRequest struct {
	APIKey           *string  `json:"api_key"`
	BaseURL          *string  `json:"base_url"`
	Model            *string  `json:"model"`
	StreamingEnabled *bool    `json:"streaming_enabled"`
	MaxTokens        *int     `json:"max_tokens"`
	Temperature      *float64 `json:"temperature"`
}

// LegacyResponse is the legacy slot with its key masked.
type LegacyResponse struct {
	models.LegacyConfig
	APIKey    string `json:"api_key,omitempty"`
	HasAPIKey bool   `json:"has_api_key"`
	Valid     bool   `json:"valid"`
}

func legacyResponse(cfg models.LegacyConfig) LegacyResponse {
	resp := LegacyResponse{
		LegacyConfig: cfg,
		APIKey:       maskKey(cfg.APIKey),
		HasAPIKey:    strings.TrimSpace(cfg.APIKey) != "",
		Valid:        cfg.Validate() == nil,
	}
	resp.LegacyConfig.APIKey = ""
	return resp
}

// handleGetLegacy returns the legacy slot with its key masked.
//
//	@Summary		Get legacy config
//	@Tags			legacy
//	@Produce		json
//	@Success		200	{object}	LegacyResponse	"Legacy config"
//	@Router			/legacy-config [get]
func (h *Handler) handleGetLegacy(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.legacy.Get(r.Context())
	if err != nil {
		h.writeStoreError(w, "get legacy config", err)
		return
	}
	writeJSON(w, http.StatusOK, legacyResponse(cfg))
}

// handlePutLegacy merges the body onto the stored legacy slot.
//
//	@Summary		Update legacy config
//	@Tags			legacy
//	@Accept			json
//	@Produce		json
//	@Param			request	body	LegacyRequest	true	"Fields to change"
//	@Success		200	{object}	LegacyResponse	"Updated"
//	@Failure		400	{object}	models.APIProblem	"Invalid request"
//	@Router			/legacy-config [put]
func (h *Handler) handlePutLegacy(w http.ResponseWriter, r *http.Request) {
	var req LegacyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cfg, err := h.legacy.Get(r.Context())
	if err != nil {
		h.writeStoreError(w, "get legacy config", err)
		return
	}

	if req.APIKey != nil {
		cfg.APIKey = strings.TrimSpace(*req.APIKey)
	}
	if req.BaseURL != nil {
		cfg.BaseURL = strings.TrimSpace(*req.BaseURL)
	}
	if req.Model != nil {
		cfg.Model = strings.TrimSpace(*req.Model)
	}
	if req.StreamingEnabled != nil {
		cfg.StreamingEnabled = *req.StreamingEnabled
	}
	if req.MaxTokens != nil {
		if *req.MaxTokens < 0 {
			writeSettingsError(w, http.StatusBadRequest, "max_tokens must not be negative")
			return
		}
		cfg.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 2 {
			writeSettingsError(w, http.StatusBadRequest, "temperature must be between 0 and 2")
			return
		}
		cfg.Temperature = *req.Temperature
	}

	if err := h.legacy.Save(r.Context(), cfg); err != nil {
		h.writeStoreError(w, "save legacy config", err)
		return
	}
	h.logger.Info("legacy config saved", zap.Bool("valid", cfg.Validate() == nil))
	writeJSON(w, http.StatusOK, legacyResponse(cfg))
}
