package dice

import "fmt"

// ResultType is the semantic category of one outcome.
type ResultType int

const (
	Normal ResultType = iota
	Success
	Good
	Extreme
	Failure
	Critical
	Fumble
)

var resultNames = map[ResultType]string{
	Normal:   "normal",
	Success:  "success",
	Good:     "good",
	Extreme:  "extreme",
	Failure:  "failure",
	Critical: "critical",
	Fumble:   "fumble",
}

func (r ResultType) String() string {
	if n, ok := resultNames[r]; ok {
		return n
	}
	return "unknown"
}

// MarshalText encodes the result type by name.
func (r ResultType) MarshalText() ([]byte, error) {
	n, ok := resultNames[r]
	if !ok {
		return nil, fmt.Errorf("unknown result type %d", int(r))
	}
	return []byte(n), nil
}

// UnmarshalText decodes a result type name.
func (r *ResultType) UnmarshalText(b []byte) error {
	for k, n := range resultNames {
		if n == string(b) {
			*r = k
			return nil
		}
	}
	return fmt.Errorf("unknown result type %q", string(b))
}

// Outcome is one classified die result. Raw is the face as rolled; Face is
// the adjusted value shown to the player.
type Outcome struct {
	Raw    int        `json:"raw"`
	Face   int        `json:"face"`
	Result ResultType `json:"result"`
}
