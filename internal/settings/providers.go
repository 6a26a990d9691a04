package settings

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/textlens/internal/request"
	"github.com/HerbHall/textlens/pkg/llm"
	"github.com/HerbHall/textlens/pkg/models"
)

// ProviderRequest is the body of provider create and update calls. Absent
// fields keep their current (update) or default (create) value.
type ProviderRequest struct {
	Name                  *string  `json:"name"`
	Kind                  *string  `json:"kind"`
	BaseURL               *string  `json:"base_url"`
	APIKey                *string  `json:"api_key"`
	Model                 *string  `json:"model"`
	StreamingEnabled      *bool    `json:"streaming_enabled"`
	AdvancedParamsEnabled *bool    `json:"advanced_params_enabled"`
	MaxTokens             *int     `json:"max_tokens"`
	Temperature           *float64 `json:"temperature"`
	TopP                  *float64 `json:"top_p"`
	CustomParameters      *string  `json:"custom_parameters"`
	IsDefault             *bool    `json:"is_default"`
}

// ProviderResponse is a provider as returned by the API. The API key is
// never echoed back; APIKey holds a masked hint.
type ProviderResponse struct {
	models.ProviderConfig
	APIKey       string `json:"api_key,omitempty"`
	HasAPIKey    bool   `json:"has_api_key"`
	Valid        bool   `json:"valid"`
	Problem      string `json:"problem,omitempty"`
	EffectiveURL string `json:"effective_url,omitempty"`
}

func providerResponse(cfg *models.ProviderConfig) ProviderResponse {
	resp := ProviderResponse{
		ProviderConfig: *cfg,
		APIKey:         maskKey(cfg.APIKey),
		HasAPIKey:      strings.TrimSpace(cfg.APIKey) != "",
	}
	resp.ProviderConfig.APIKey = ""
	if err := cfg.Validate(); err != nil {
		resp.Problem = err.Error()
	} else {
		resp.Valid = true
	}
	if u := request.NormalizeBaseURL(cfg.BaseURL, cfg.Kind); u != "" {
		resp.EffectiveURL = u + llm.ChatCompletionsPath
	}
	return resp
}

// maskKey keeps just enough of a key for the user to recognize it.
func maskKey(key string) string {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "****"
	default:
		return key[:3] + "..." + key[len(key)-4:]
	}
}

// apply copies the set fields of req onto cfg.
func (req *ProviderRequest) apply(cfg *models.ProviderConfig) string {
	if req.Kind != nil {
		kind, err := llm.ParseKind(*req.Kind)
		if err != nil {
			return err.Error()
		}
		cfg.Kind = kind
	}
	if req.Name != nil {
		cfg.Name = strings.TrimSpace(*req.Name)
	}
	if req.BaseURL != nil {
		cfg.BaseURL = strings.TrimSpace(*req.BaseURL)
	}
	if req.APIKey != nil {
		cfg.APIKey = strings.TrimSpace(*req.APIKey)
	}
	if req.Model != nil {
		cfg.Model = strings.TrimSpace(*req.Model)
	}
	if req.StreamingEnabled != nil {
		cfg.StreamingEnabled = *req.StreamingEnabled
	}
	if req.AdvancedParamsEnabled != nil {
		cfg.AdvancedParamsEnabled = *req.AdvancedParamsEnabled
	}
	if req.MaxTokens != nil {
		if *req.MaxTokens < 0 {
			return "max_tokens must not be negative"
		}
		cfg.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 2 {
			return "temperature must be between 0 and 2"
		}
		cfg.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		if *req.TopP < 0 || *req.TopP > 1 {
			return "top_p must be between 0 and 1"
		}
		cfg.TopP = *req.TopP
	}
	if req.CustomParameters != nil {
		cfg.CustomParameters = *req.CustomParameters
	}
	if req.IsDefault != nil {
		cfg.IsDefault = *req.IsDefault
	}
	return ""
}

// handleListProviders returns providers in resolution order: the default
// first, then most recently updated.
//
//	@Summary		List providers
//	@Tags			providers
//	@Produce		json
//	@Success		200	{array}	ProviderResponse	"Providers"
//	@Failure		500	{object}	models.APIProblem	"Internal server error"
//	@Router			/providers [get]
func (h *Handler) handleListProviders(w http.ResponseWriter, r *http.Request) {
	list, err := h.providers.List(r.Context())
	if err != nil {
		h.writeStoreError(w, "list providers", err)
		return
	}
	out := make([]ProviderResponse, 0, len(list))
	for i := range list {
		out = append(out, providerResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetProvider returns one provider with its key masked.
//
//	@Summary		Get provider
//	@Tags			providers
//	@Produce		json
//	@Param			id	path	int	true	"Provider ID"
//	@Success		200	{object}	ProviderResponse	"Provider"
//	@Failure		404	{object}	models.APIProblem	"Not found"
//	@Router			/providers/{id} [get]
func (h *Handler) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cfg, err := h.providers.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "get provider", err)
		return
	}
	if cfg == nil {
		writeSettingsError(w, http.StatusNotFound, "provider not found")
		return
	}
	writeJSON(w, http.StatusOK, providerResponse(cfg))
}

// handleCreateProvider stores a new provider. Incomplete providers are
// accepted; the response reports why they cannot be used yet.
//
//	@Summary		Create provider
//	@Tags			providers
//	@Accept			json
//	@Produce		json
//	@Param			request	body	ProviderRequest	true	"Provider fields"
//	@Success		201	{object}	ProviderResponse	"Created"
//	@Failure		400	{object}	models.APIProblem	"Invalid request"
//	@Router			/providers [post]
func (h *Handler) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var req ProviderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Kind == nil {
		writeSettingsError(w, http.StatusBadRequest, "kind is required")
		return
	}
	kind, err := llm.ParseKind(*req.Kind)
	if err != nil {
		writeSettingsError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := models.NewProviderConfig(kind.DisplayName(), kind)
	if problem := req.apply(&cfg); problem != "" {
		writeSettingsError(w, http.StatusBadRequest, problem)
		return
	}
	if err := h.providers.Insert(r.Context(), &cfg); err != nil {
		h.writeStoreError(w, "create provider", err)
		return
	}

	h.logger.Info("provider created",
		zap.Int64("provider_id", cfg.ID),
		zap.String("kind", cfg.Kind.String()),
		zap.Bool("default", cfg.IsDefault),
	)
	writeJSON(w, http.StatusCreated, providerResponse(&cfg))
}

// handleUpdateProvider applies the fields present in the body. An absent
// api_key keeps the stored key.
//
//	@Summary		Update provider
//	@Tags			providers
//	@Accept			json
//	@Produce		json
//	@Param			id	path	int	true	"Provider ID"
//	@Param			request	body	ProviderRequest	true	"Fields to change"
//	@Success		200	{object}	ProviderResponse	"Updated"
//	@Failure		400	{object}	models.APIProblem	"Invalid request"
//	@Failure		404	{object}	models.APIProblem	"Not found"
//	@Router			/providers/{id} [put]
func (h *Handler) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ProviderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cfg, err := h.providers.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "get provider", err)
		return
	}
	if cfg == nil {
		writeSettingsError(w, http.StatusNotFound, "provider not found")
		return
	}
	if problem := req.apply(cfg); problem != "" {
		writeSettingsError(w, http.StatusBadRequest, problem)
		return
	}
	if err := h.providers.Update(r.Context(), cfg); err != nil {
		h.writeStoreError(w, "update provider", err)
		return
	}

	h.logger.Info("provider updated", zap.Int64("provider_id", id))
	writeJSON(w, http.StatusOK, providerResponse(cfg))
}

// handleDeleteProvider removes a provider.
//
//	@Summary		Delete provider
//	@Tags			providers
//	@Param			id	path	int	true	"Provider ID"
//	@Success		204	"Deleted"
//	@Failure		404	{object}	models.APIProblem	"Not found"
//	@Router			/providers/{id} [delete]
func (h *Handler) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.providers.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, "delete provider", err)
		return
	}
	h.logger.Info("provider deleted", zap.Int64("provider_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// handleSetDefaultProvider makes a provider the default.
//
//	@Summary		Set default provider
//	@Tags			providers
//	@Produce		json
//	@Param			id	path	int	true	"Provider ID"
//	@Success		200	{object}	ProviderResponse	"New default"
//	@Failure		404	{object}	models.APIProblem	"Not found"
//	@Router			/providers/{id}/default [post]
func (h *Handler) handleSetDefaultProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.providers.SetDefault(r.Context(), id); err != nil {
		h.writeStoreError(w, "set default provider", err)
		return
	}
	cfg, err := h.providers.Get(r.Context(), id)
	if err != nil || cfg == nil {
		h.writeStoreError(w, "get provider", err)
		return
	}
	h.logger.Info("default provider changed", zap.Int64("provider_id", id))
	writeJSON(w, http.StatusOK, providerResponse(cfg))
}
