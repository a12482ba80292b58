package sheet

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/openrpg/internal/domain/dice"
	"github.com/okian/openrpg/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestParseDiceConfig(t *testing.T) {
	tests := []struct {
		in      string
		want    DiceConfig
		wantErr bool
	}{
		{in: "20", want: DiceConfig{Faces: 20}},
		{in: "d20", want: DiceConfig{Faces: 20}},
		{in: "20b", want: DiceConfig{Faces: 20, Branched: true}},
		{in: " D100B ", want: DiceConfig{Faces: 100, Branched: true}},
		{in: "d1", wantErr: true},
		{in: "b", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDiceConfig(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidDice) {
				t.Errorf("ParseDiceConfig(%q) error = %v, want ErrInvalidDice", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseDiceConfig(%q) = %+v, %v; want %+v", tt.in, got, err, tt.want)
		}
	}
	if s := (DiceConfig{Faces: 20, Branched: true}).String(); s != "d20b" {
		t.Errorf("String() = %q, want d20b", s)
	}
}

func TestCharacteristicRoll(t *testing.T) {
	Convey("Given a d20 characteristic config", t, func() {
		cfg := DiceConfig{Faces: 20}

		Convey("When rolling a characteristic of 12 with a +3 modifier", func() {
			req := CharacteristicRoll(cfg, 12, dice.Mod(3), false)

			Convey("Then the target includes the modifier and faces get it added", func() {
				So(req.Spec.Reference, ShouldEqual, 15)
				So(req.Spec.ResolverKey(), ShouldEqual, "20")
				So(req.Spec.Modifier, ShouldBeNil)
				So(req.PostProcess, ShouldNotBeNil)
				o := req.PostProcess(dice.Outcome{Raw: 10, Face: 10, Result: dice.Good})
				So(o.Face, ShouldEqual, 13)
				So(o.Result, ShouldEqual, dice.Good)
			})
		})

		Convey("When the modifier is strongly negative", func() {
			req := CharacteristicRoll(cfg, 4, dice.Mod(-10), true)

			Convey("Then target and faces are floored at 1", func() {
				So(req.Spec.Reference, ShouldEqual, 1)
				So(req.Standalone, ShouldBeTrue)
				So(req.PostProcess(dice.Outcome{Raw: 3, Face: 3}).Face, ShouldEqual, 1)

				roll := dice.NewRoller(dice.WithSeed(5)).Roll(context.Background(), req)
				So(roll.Outcomes, ShouldHaveLength, 1)
				So(roll.Outcomes[0].Face, ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When the modifier is zero or absent", func() {
			zero := CharacteristicRoll(cfg, 12, dice.Mod(0), false)
			none := CharacteristicRoll(cfg, 12, nil, false)

			Convey("Then both requests are alike", func() {
				So(zero.Spec, ShouldResemble, none.Spec)
				So(zero.PostProcess, ShouldBeNil)
				So(none.PostProcess, ShouldBeNil)
			})
		})

		Convey("When the config is branched", func() {
			req := CharacteristicRoll(DiceConfig{Faces: 20, Branched: true}, 12, nil, false)
			So(req.Spec.ResolverKey(), ShouldEqual, "20b")
		})
	})
}

func TestSkillRoll(t *testing.T) {
	Convey("Given three selected skills", t, func() {
		skills := []Skill{
			{ID: "1", Name: "Stealth", Value: 1},
			{ID: "2", Name: "Climb", Value: 20},
			{ID: "3", Name: "Swim", Value: 10},
		}
		plan := SkillRoll(DiceConfig{Faces: 20, Branched: true}, skills)

		Convey("Then one grouped request asks for an outcome per skill", func() {
			So(plan.Request.Spec.Count, ShouldEqual, 3)
			So(plan.Request.Spec.ResolverKey(), ShouldEqual, "20b")
		})

		Convey("When the roll is paired back", func() {
			roller := dice.NewRoller(dice.WithSeed(9))
			roll := roller.Roll(context.Background(), plan.Request)
			paired := plan.Pair(roller.Registry(), roll)

			Convey("Then outcomes follow skill order and use each skill as target", func() {
				So(paired, ShouldHaveLength, 3)
				for i, p := range paired {
					So(p.Skill.ID, ShouldEqual, skills[i].ID)
					So(p.Outcome.Raw, ShouldEqual, roll.Outcomes[i].Raw)
				}
				// Under the branched d20 rule a target of 20 always succeeds.
				So(paired[1].Outcome.Result, ShouldEqual, dice.Success)
			})
		})
	})
}

func TestFilterSkills(t *testing.T) {
	skills := []Skill{
		{ID: "1", Name: "Stealth"},
		{ID: "2", Name: "Sleight of Hand"},
		{ID: "3", Name: "Climb"},
		{ID: "4", Name: "Persuasion"},
	}

	Convey("Given a player's skills", t, func() {
		Convey("Then an empty query keeps everything", func() {
			So(FilterSkills(skills, "  "), ShouldHaveLength, 4)
		})

		Convey("Then substring search ignores case", func() {
			got := FilterSkills(skills, "sle")
			So(got, ShouldHaveLength, 1)
			So(got[0].ID, ShouldEqual, "2")

			got = FilterSkills(skills, "HAND")
			So(got, ShouldHaveLength, 1)
		})

		Convey("Then a typo falls back to the closest names", func() {
			got := FilterSkills(skills, "stelth")
			So(got, ShouldHaveLength, 1)
			So(got[0].ID, ShouldEqual, "1")

			got = FilterSkills(skills, "climp")
			So(got, ShouldHaveLength, 1)
			So(got[0].ID, ShouldEqual, "3")
		})

		Convey("Then short or distant queries find nothing", func() {
			So(FilterSkills(skills, "zq"), ShouldBeEmpty)
			So(FilterSkills(skills, "arcana"), ShouldBeEmpty)
		})
	})
}
