// Package types contains the wire shapes shared by the HTTP API and its client.
package types

import (
	"github.com/okian/openrpg/internal/domain/dice"
	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/internal/domain/sheet"
)

// FieldWrite is the body of POST /sheet/field. ChangeID is optional and
// makes retries idempotent.
type FieldWrite struct {
	ResourceID string `json:"resource_id"`
	Field      string `json:"field"`
	Value      any    `json:"value"`
	ChangeID   string `json:"change_id,omitempty"`
}

// FieldResult carries the value the server stored.
type FieldResult struct {
	Value any `json:"value"`
}

// Snapshot is every stored field of one resource.
type Snapshot struct {
	ResourceID string         `json:"resource_id"`
	Fields     map[string]any `json:"fields"`
}

// DiceRequest is the body of POST /dice.
type DiceRequest struct {
	Faces      int  `json:"faces"`
	Count      int  `json:"count"`
	Reference  int  `json:"reference"`
	Modifier   *int `json:"modifier,omitempty"`
	Branched   bool `json:"branched"`
	Standalone bool `json:"standalone"`
}

// Request converts the wire shape to a roller request.
func (r DiceRequest) Request() dice.Request {
	count := r.Count
	if count == 0 {
		count = 1
	}
	return dice.Request{
		Spec: dice.Spec{
			Faces:     r.Faces,
			Count:     count,
			Reference: r.Reference,
			Modifier:  r.Modifier,
			Branched:  r.Branched,
		},
		Standalone: r.Standalone,
	}
}

// CharacteristicRollRequest is the body of POST /dice/characteristic.
type CharacteristicRollRequest struct {
	Value      int  `json:"value"`
	Modifier   *int `json:"modifier,omitempty"`
	Standalone bool `json:"standalone"`
}

// SkillRollRequest is the body of POST /dice/skills. A non-empty Query
// narrows Skills before rolling.
type SkillRollRequest struct {
	Skills []sheet.Skill `json:"skills"`
	Query  string        `json:"query,omitempty"`
}

// SkillRollResponse lists one outcome per rolled skill.
type SkillRollResponse struct {
	Outcomes []sheet.SkillOutcome `json:"outcomes"`
}

// ChangeEvent is one WebSocket frame on /ws.
type ChangeEvent = model.Change

// Error is the body of every non-2xx response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
