// Package settings provides HTTP handlers for provider, template and legacy
// configuration endpoints.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/HerbHall/textlens/internal/store"
	"github.com/HerbHall/textlens/pkg/models"
)

// ProviderRepository persists provider configurations.
type ProviderRepository interface {
	List(ctx context.Context) ([]models.ProviderConfig, error)
	Get(ctx context.Context, id int64) (*models.ProviderConfig, error)
	Insert(ctx context.Context, cfg *models.ProviderConfig) error
	Update(ctx context.Context, cfg *models.ProviderConfig) error
	Delete(ctx context.Context, id int64) error
	SetDefault(ctx context.Context, id int64) error
}

// TemplateRepository persists prompt templates.
type TemplateRepository interface {
	List(ctx context.Context) ([]models.PromptTemplate, error)
	Get(ctx context.Context, id int64) (*models.PromptTemplate, error)
	Insert(ctx context.Context, tpl *models.PromptTemplate) error
	Update(ctx context.Context, tpl *models.PromptTemplate) error
	Delete(ctx context.Context, id int64) error
	Move(ctx context.Context, id int64, index int) error
}

// LegacyRepository reads and writes the legacy single-slot configuration.
type LegacyRepository interface {
	Get(ctx context.Context) (models.LegacyConfig, error)
	Save(ctx context.Context, cfg models.LegacyConfig) error
}

// Compile-time interface guards.
var (
	_ ProviderRepository = (*store.ProviderStore)(nil)
	_ TemplateRepository = (*store.TemplateStore)(nil)
	_ LegacyRepository   = (*store.LegacyStore)(nil)
)

// problemType is the RFC 7807 type URI for settings errors.
const problemType = "https://textlens.dev/problems/settings-error"

// maxBodyBytes bounds request bodies on settings endpoints.
const maxBodyBytes = 1 << 20

// Handler provides HTTP handlers for settings endpoints.
type Handler struct {
	providers ProviderRepository
	templates TemplateRepository
	legacy    LegacyRepository
	logger    *zap.Logger
}

// NewHandler creates a settings Handler.
func NewHandler(providers ProviderRepository, templates TemplateRepository, legacy LegacyRepository, logger *zap.Logger) *Handler {
	return &Handler{
		providers: providers,
		templates: templates,
		legacy:    legacy,
		logger:    logger,
	}
}

// RegisterRoutes registers settings-related routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/providers", h.handleListProviders)
	mux.HandleFunc("POST /api/v1/providers", h.handleCreateProvider)
	mux.HandleFunc("GET /api/v1/providers/{id}", h.handleGetProvider)
	mux.HandleFunc("PUT /api/v1/providers/{id}", h.handleUpdateProvider)
	mux.HandleFunc("DELETE /api/v1/providers/{id}", h.handleDeleteProvider)
	mux.HandleFunc("POST /api/v1/providers/{id}/default", h.handleSetDefaultProvider)

	mux.HandleFunc("GET /api/v1/templates", h.handleListTemplates)
	mux.HandleFunc("POST /api/v1/templates", h.handleCreateTemplate)
	mux.HandleFunc("GET /api/v1/templates/{id}", h.handleGetTemplate)
	mux.HandleFunc("PUT /api/v1/templates/{id}", h.handleUpdateTemplate)
	mux.HandleFunc("DELETE /api/v1/templates/{id}", h.handleDeleteTemplate)
	mux.HandleFunc("POST /api/v1/templates/{id}/move", h.handleMoveTemplate)

	mux.HandleFunc("GET /api/v1/legacy-config", h.handleGetLegacy)
	mux.HandleFunc("PUT /api/v1/legacy-config", h.handlePutLegacy)
}

// pathID parses the {id} path value, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeSettingsError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// decodeBody decodes a bounded JSON request body into v, writing a 400 on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeSettingsError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeStoreError maps a repository error to a problem response.
func (h *Handler) writeStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeSettingsError(w, http.StatusNotFound, "not found")
		return
	}
	h.logger.Error(op+" failed", zap.Error(err))
	writeSettingsError(w, http.StatusInternalServerError, op+" failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeSettingsError writes an RFC 7807 problem response.
func writeSettingsError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIProblem{
		Type:   problemType,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
