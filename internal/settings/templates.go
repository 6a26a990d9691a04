package settings

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/textlens/internal/prompt"
	"github.com/HerbHall/textlens/pkg/models"
)

// TemplateRequest is the body of template create and update calls.
type TemplateRequest struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	Description *string `json:"description"`
}

// TemplateResponse is a template as returned by the API.
type TemplateResponse struct {
	models.PromptTemplate
	HasPlaceholder bool `json:"has_placeholder"`
}

// MoveRequest is the body of a template move call. Index is 0-based and
// clamped to the list bounds.
type MoveRequest struct {
	Index int `json:"index"`
}

func templateResponse(tpl *models.PromptTemplate) TemplateResponse {
	return TemplateResponse{
		PromptTemplate: *tpl,
		HasPlaceholder: prompt.HasPlaceholder(tpl.Content),
	}
}

func (req *TemplateRequest) apply(tpl *models.PromptTemplate) string {
	if req.Title != nil {
		tpl.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		tpl.Content = *req.Content
	}
	if req.Description != nil {
		tpl.Description = strings.TrimSpace(*req.Description)
	}
	switch {
	case tpl.Title == "":
		return "title is required"
	case strings.TrimSpace(tpl.Content) == "":
		return "content is required"
	}
	return ""
}

// handleListTemplates returns templates in display order.
//
//	@Summary		List templates
//	@Tags			templates
//	@Produce		json
//	@Success		200	{array}	TemplateResponse	"Templates"
//	@Router			/templates [get]
func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.templates.List(r.Context())
	if err != nil {
		h.writeStoreError(w, "list templates", err)
		return
	}
	out := make([]TemplateResponse, 0, len(list))
	for i := range list {
		out = append(out, templateResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetTemplate returns one template.
//
//	@Summary		Get template
//	@Tags			templates
//	@Produce		json
//	@Param			id	path	int	true	"Template ID"
//	@Success		200	{object}	TemplateResponse	"Template"
//	@Failure		404	{object}	models.APIProblem	"Not found"
//	@Router			/templates/{id} [get]
func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tpl, err := h.templates.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "get template", err)
		return
	}
	if tpl == nil {
		writeSettingsError(w, http.StatusNotFound, "template not found")
		return
	}
	writeJSON(w, http.StatusOK, templateResponse(tpl))
}

// handleCreateTemplate appends a template at the end of the display order.
//
//	@Summary		Create template
//	@Tags			templates
//	@Accept			json
//	@Produce		json
//	@Param			request	body	TemplateRequest	true	"Template"
//	@Success		201	{object}	TemplateResponse	"Created"
//	@Failure		400	{object}	models.APIProblem	"Invalid request"
//	@Router			/templates [post]
func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var tpl models.PromptTemplate
	if problem := req.apply(&tpl); problem != "" {
		writeSettingsError(w, http.StatusBadRequest, problem)
		return
	}
	if err := h.templates.Insert(r.Context(), &tpl); err != nil {
		h.writeStoreError(w, "create template", err)
		return
	}
	h.logger.Info("template created",
		zap.Int64("template_id", tpl.ID),
		zap.Int("position", tpl.Position),
	)
	writeJSON(w, http.StatusCreated, templateResponse(&tpl))
}

// handleUpdateTemplate applies the fields present in the body.
//
//	@Summary		Update template
//	@Tags			templates
//	@Accept			json
//	@Produce		json
//	@Param			id	path	int	true	"Template ID"
//	@Param			request	body	TemplateRequest	true	"Fields to change"
//	@Success		200	{object}	TemplateResponse	"Updated"
//	@Failure		400	{object}	models.APIProblem	"Invalid request"
//	@Failure		404	{object}	models.APIProblem	"Not found"
//	@Router			/templates/{id} [put]
func (h *Handler) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req TemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tpl, err := h.templates.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "get template", err)
		return
	}
	if tpl == nil {
		writeSettingsError(w, http.StatusNotFound, "template not found")
		return
	}
	if problem := req.apply(tpl); problem != "" {
		writeSettingsError(w, http.StatusBadRequest, problem)
		return
	}
	if err := h.templates.Update(r.Context(), tpl); err != nil {
		h.writeStoreError(w, "update template", err)
		return
	}
	writeJSON(w, http.StatusOK, templateResponse(tpl))
}

// handleDeleteTemplate removes a template and closes the gap in positions.
//
//	@Summary		Delete template
//	@Tags			templates
//	@Param			id	path	int	true	"Template ID"
//	@Success		204	"Deleted"
//	@Failure		404	{object}	models.APIProblem	"Not found"
//	@Router			/templates/{id} [delete]
func (h *Handler) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.templates.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, "delete template", err)
		return
	}
	h.logger.Info("template deleted", zap.Int64("template_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// handleMoveTemplate reorders a template and returns the full list in its
// new order.
//
//	@Summary		Move template
//	@Tags			templates
//	@Accept			json
//	@Produce		json
//	@Param			id	path	int	true	"Template ID"
//	@Param			request	body	MoveRequest	true	"Target index"
//	@Success		200	{array}	TemplateResponse	"Templates"
//	@Failure		404	{object}	models.APIProblem	"Not found"
//	@Router			/templates/{id}/move [post]
func (h *Handler) handleMoveTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.templates.Move(r.Context(), id, req.Index); err != nil {
		h.writeStoreError(w, "move template", err)
		return
	}
	h.handleListTemplates(w, r)
}
