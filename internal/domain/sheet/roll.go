package sheet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/openrpg/internal/domain/dice"
)

// DiceConfig selects the die used for a kind of roll.
type DiceConfig struct {
	Faces    int  `json:"faces" koanf:"faces"`
	Branched bool `json:"branched" koanf:"branched"`
}

// ParseDiceConfig reads "20", "d20", "20b" or "d100b".
func ParseDiceConfig(s string) (DiceConfig, error) {
	t := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "d")
	branched := strings.HasSuffix(t, "b")
	t = strings.TrimSuffix(t, "b")
	faces, err := strconv.Atoi(t)
	if err != nil || faces < 2 {
		return DiceConfig{}, fmt.Errorf("%w: %q", ErrInvalidDice, s)
	}
	return DiceConfig{Faces: faces, Branched: branched}, nil
}

func (c DiceConfig) String() string {
	s := "d" + strconv.Itoa(c.Faces)
	if c.Branched {
		s += "b"
	}
	return s
}

// CharacteristicRoll builds the request for rolling against a
// characteristic. A modifier moves the target number before the roll and
// is added to every displayed face after it, floored at 1. A zero modifier
// counts as none.
func CharacteristicRoll(cfg DiceConfig, value int, modifier *int, standalone bool) dice.Request {
	if modifier != nil && *modifier == 0 {
		modifier = nil
	}
	req := dice.Request{
		Spec: dice.Spec{
			Faces:     cfg.Faces,
			Count:     1,
			Reference: dice.Reference(value, modifier),
			Branched:  cfg.Branched,
		},
		Standalone: standalone,
	}
	if modifier != nil {
		req.PostProcess = dice.Chain(dice.AddModifier(*modifier), dice.ClampMin(1))
	}
	return req
}

// SkillOutcome pairs a rolled outcome with the skill it was rolled for.
type SkillOutcome struct {
	Skill   Skill        `json:"skill"`
	Outcome dice.Outcome `json:"outcome"`
}

// SkillRollPlan is a grouped roll for several skills at once.
type SkillRollPlan struct {
	Request dice.Request
	Skills  []Skill
}

// SkillRoll builds one grouped request with an outcome per skill.
func SkillRoll(cfg DiceConfig, skills []Skill) SkillRollPlan {
	return SkillRollPlan{
		Request: dice.Request{
			Spec: dice.Spec{
				Faces:    cfg.Faces,
				Count:    max(1, len(skills)),
				Branched: cfg.Branched,
			},
		},
		Skills: skills,
	}
}

// Pair matches outcomes to skills by position and classifies each against
// its own skill value under the roll's rule.
func (p SkillRollPlan) Pair(reg *dice.Registry, roll dice.Roll) []SkillOutcome {
	rule := reg.Resolve(roll.Key)
	n := min(len(p.Skills), len(roll.Outcomes))
	out := make([]SkillOutcome, n)
	for i := 0; i < n; i++ {
		o := roll.Outcomes[i]
		o.Result = dice.Classify(rule, o.Face, p.Skills[i].Value)
		out[i] = SkillOutcome{Skill: p.Skills[i], Outcome: o}
	}
	return out
}
