// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Change is a committed field write fanned out to every viewer of a resource.
type Change struct {
	ID         string    `json:"id"`          // unique id for at-most-once application
	ResourceID string    `json:"resource_id"` // owning resource, e.g. a player sheet
	FieldKey   string    `json:"field"`       // field within the resource, e.g. "currency.3"
	Value      any       `json:"value"`       // new confirmed value
	At         time.Time `json:"at"`          // commit time on the server
}

// NewChange stamps a change with a fresh id and the current time.
func NewChange(resourceID, fieldKey string, value any) Change {
	return Change{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		FieldKey:   fieldKey,
		Value:      value,
		At:         time.Now().UTC(),
	}
}

// Field kinds understood by the sheet store.
const (
	KindCurrency       = "currency"
	KindCharacteristic = "characteristic"
	KindSkill          = "skill"
	KindItem           = "item"
	KindSpec           = "spec"
)

// Attributes used in composite field keys.
const (
	AttrValue       = "value"
	AttrModifier    = "modifier"
	AttrName        = "name"
	AttrDescription = "description"
	AttrWeight      = "weight"
	AttrVisible     = "visible"
)

// FieldKey identifies one attribute of one sheet entity, e.g. characteristic 4's modifier.
type FieldKey struct {
	Kind string
	ID   string
	Attr string // empty for single-valued kinds (currency, spec)
}

// String renders the key as "kind.id[.attr]".
func (k FieldKey) String() string {
	if k.Attr == "" {
		return k.Kind + "." + k.ID
	}
	return k.Kind + "." + k.ID + "." + k.Attr
}

// ParseFieldKey splits "kind.id[.attr]" into its parts.
func ParseFieldKey(s string) (FieldKey, error) {
	parts := strings.Split(s, ".")
	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return FieldKey{Kind: parts[0], ID: parts[1]}, nil
	case len(parts) == 3 && parts[0] != "" && parts[1] != "" && parts[2] != "":
		return FieldKey{Kind: parts[0], ID: parts[1], Attr: parts[2]}, nil
	default:
		return FieldKey{}, fmt.Errorf("malformed field key %q", s)
	}
}

// CurrencyKey returns the key of a player's currency balance.
func CurrencyKey(currencyID string) string {
	return FieldKey{Kind: KindCurrency, ID: currencyID}.String()
}

// CharacteristicKey returns the key of a characteristic attribute (value or modifier).
func CharacteristicKey(characteristicID, attr string) string {
	return FieldKey{Kind: KindCharacteristic, ID: characteristicID, Attr: attr}.String()
}

// SkillKey returns the key of a player's skill value.
func SkillKey(skillID string) string {
	return FieldKey{Kind: KindSkill, ID: skillID, Attr: AttrValue}.String()
}

// ItemKey returns the key of an item attribute.
func ItemKey(itemID, attr string) string {
	return FieldKey{Kind: KindItem, ID: itemID, Attr: attr}.String()
}
