package model_test

import (
	"testing"

	"github.com/okian/openrpg/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFieldKey(t *testing.T) {
	Convey("Given sheet field keys", t, func() {
		Convey("When building keys with helpers", func() {
			So(model.CurrencyKey("3"), ShouldEqual, "currency.3")
			So(model.CharacteristicKey("4", model.AttrModifier), ShouldEqual, "characteristic.4.modifier")
			So(model.SkillKey("9"), ShouldEqual, "skill.9.value")
			So(model.ItemKey("1", model.AttrVisible), ShouldEqual, "item.1.visible")
		})

		Convey("When parsing a composite key", func() {
			k, err := model.ParseFieldKey("item.12.weight")

			Convey("Then every part should be recovered", func() {
				So(err, ShouldBeNil)
				So(k, ShouldResemble, model.FieldKey{Kind: "item", ID: "12", Attr: "weight"})
				So(k.String(), ShouldEqual, "item.12.weight")
			})
		})

		Convey("When parsing malformed keys", func() {
			for _, s := range []string{"", "currency", "a..b", "a.b.c.d", ".3"} {
				_, err := model.ParseFieldKey(s)
				So(err, ShouldNotBeNil)
			}
		})
	})
}

func TestNewChange(t *testing.T) {
	Convey("Given two changes for the same field", t, func() {
		a := model.NewChange("player-1", "currency.1", 150)
		b := model.NewChange("player-1", "currency.1", 150)

		Convey("Then each should carry its own id and a timestamp", func() {
			So(a.ID, ShouldNotBeEmpty)
			So(a.ID, ShouldNotEqual, b.ID)
			So(a.At.IsZero(), ShouldBeFalse)
			So(a.ResourceID, ShouldEqual, "player-1")
		})
	})
}
