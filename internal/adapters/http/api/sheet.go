package api

import (
	"net/http"
	"strings"

	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/internal/domain/types"
)

// SheetHandler serves field writes and sheet snapshots.
type SheetHandler struct {
	deps Dependencies
}

// NewSheetHandler creates a new sheet handler.
func NewSheetHandler(deps Dependencies) *SheetHandler {
	return &SheetHandler{deps: deps}
}

// HandlePostField handles POST /sheet/field. The response carries the value
// as stored, which clients adopt as their confirmed value.
func (h *SheetHandler) HandlePostField(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	var req types.FieldWrite
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	switch {
	case strings.TrimSpace(req.ResourceID) == "":
		writeError(w, http.StatusBadRequest, "invalid_request", ErrMissingResource)
		return
	case strings.TrimSpace(req.Field) == "":
		writeError(w, http.StatusBadRequest, "invalid_request", ErrMissingField)
		return
	}

	ch := model.NewChange(req.ResourceID, req.Field, req.Value)
	if req.ChangeID != "" {
		ch.ID = req.ChangeID
	}
	stored, err := h.deps.WriteChange(r.Context(), ch)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FieldResult{Value: stored})
}

// HandleGetSheet handles GET /sheet/{resource_id}.
func (h *SheetHandler) HandleGetSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sheet/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", ErrMissingResource)
		return
	}

	fields, err := h.deps.Snapshot(r.Context(), id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.Snapshot{ResourceID: id, Fields: fields})
}
