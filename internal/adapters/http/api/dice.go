package api

import (
	"net/http"

	"github.com/okian/openrpg/internal/domain/sheet"
	"github.com/okian/openrpg/internal/domain/types"
)

// DiceHandler serves dice rolls.
type DiceHandler struct {
	deps Dependencies
}

// NewDiceHandler creates a new dice handler.
func NewDiceHandler(deps Dependencies) *DiceHandler {
	return &DiceHandler{deps: deps}
}

// HandleRoll handles POST /dice with an explicit dice spec.
func (h *DiceHandler) HandleRoll(w http.ResponseWriter, r *http.Request) {
	if !allowPost(w, r) {
		return
	}
	var req types.DiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	roll, err := h.deps.Roll(r.Context(), req.Request())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, roll)
}

// HandleCharacteristic handles POST /dice/characteristic using the
// server's characteristic die.
func (h *DiceHandler) HandleCharacteristic(w http.ResponseWriter, r *http.Request) {
	if !allowPost(w, r) {
		return
	}
	var req types.CharacteristicRollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	roll, err := h.deps.RollCharacteristic(r.Context(), req.Value, req.Modifier, req.Standalone)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, roll)
}

// HandleSkills handles POST /dice/skills: one die per selected skill.
func (h *DiceHandler) HandleSkills(w http.ResponseWriter, r *http.Request) {
	if !allowPost(w, r) {
		return
	}
	var req types.SkillRollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	skills := sheet.FilterSkills(req.Skills, req.Query)
	out, err := h.deps.RollSkills(r.Context(), skills)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.SkillRollResponse{Outcomes: out})
}

func allowPost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	return false
}
