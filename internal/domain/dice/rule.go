package dice

// Condition selects how a Threshold compares a face.
type Condition int

const (
	// FaceAtMost matches when face <= Value.
	FaceAtMost Condition = iota
	// FaceAtLeast matches when face >= Value.
	FaceAtLeast
	// RefDivisor matches when face <= reference/Value.
	RefDivisor
)

// Threshold is one classification row.
type Threshold struct {
	When   Condition
	Value  int
	Result ResultType
}

func (t Threshold) matches(face, reference int) bool {
	switch t.When {
	case FaceAtMost:
		return face <= t.Value
	case FaceAtLeast:
		return face >= t.Value
	case RefDivisor:
		if t.Value <= 0 {
			return false
		}
		return face <= reference/t.Value
	default:
		return false
	}
}

// Rule is the strategy registered under a resolver key. Thresholds are
// evaluated in order and the first match wins; Otherwise applies when none
// match. RerollAtMost, when positive, rerolls a raw face at or below it once.
type Rule struct {
	Key          string
	Thresholds   []Threshold
	Otherwise    ResultType
	RerollAtMost int
}

// Classify maps an adjusted face to its result type under rule.
func Classify(rule Rule, face, reference int) ResultType {
	for _, t := range rule.Thresholds {
		if t.matches(face, reference) {
			return t.Result
		}
	}
	return rule.Otherwise
}

// underRule builds the roll-under table used by percentile-style dice:
// the top face fumbles, a 1 is critical, and faces at or under fractions of
// the reference grade the success.
func underRule(key string, faces int) Rule {
	return Rule{
		Key: key,
		Thresholds: []Threshold{
			{When: FaceAtLeast, Value: faces, Result: Fumble},
			{When: FaceAtMost, Value: 1, Result: Critical},
			{When: RefDivisor, Value: 5, Result: Extreme},
			{When: RefDivisor, Value: 2, Result: Good},
			{When: RefDivisor, Value: 1, Result: Success},
		},
		Otherwise: Failure,
	}
}

// branchedRule builds the pass/fail table used by branched rolls.
func branchedRule(key string) Rule {
	return Rule{
		Key: key,
		Thresholds: []Threshold{
			{When: RefDivisor, Value: 1, Result: Success},
		},
		Otherwise: Failure,
	}
}
