package dice

import "errors"

// ErrInvalidSpec indicates a roll specification is outside 1 <= count <= MaxCount
// or 2 <= faces <= MaxFaces.
var ErrInvalidSpec = errors.New("dice spec must have 1 <= count <= 1000 and 2 <= faces <= 1000")

// ErrEmptyKey indicates a rule was registered without a resolver key.
var ErrEmptyKey = errors.New("resolver key must not be empty")
