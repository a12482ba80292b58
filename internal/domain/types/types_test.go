package types

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDiceRequest(t *testing.T) {
	Convey("Given a dice request body", t, func() {
		var r DiceRequest
		err := json.Unmarshal([]byte(`{"faces":20,"reference":12,"modifier":-2,"branched":true}`), &r)
		So(err, ShouldBeNil)

		Convey("Then a missing count means one die", func() {
			req := r.Request()
			So(req.Spec.Count, ShouldEqual, 1)
			So(req.Spec.Faces, ShouldEqual, 20)
			So(*req.Spec.Modifier, ShouldEqual, -2)
			So(req.Spec.ResolverKey(), ShouldEqual, "20b")
			So(req.Standalone, ShouldBeFalse)
		})
	})

	Convey("An explicit count is kept", t, func() {
		req := DiceRequest{Faces: 6, Count: 4}.Request()
		So(req.Spec.Count, ShouldEqual, 4)
		So(req.Spec.Modifier, ShouldBeNil)
	})
}

func TestFieldWrite(t *testing.T) {
	Convey("change_id is omitted when empty", t, func() {
		b, err := json.Marshal(FieldWrite{ResourceID: "p1", Field: "currency.gold", Value: 3.0})
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `{"resource_id":"p1","field":"currency.gold","value":3}`)
	})
}
