package dice

// PostProcessor transforms an outcome after classification. The result
// type is kept; only the displayed face changes.
type PostProcessor func(Outcome) Outcome

// AddModifier adds m to the displayed face.
func AddModifier(m int) PostProcessor {
	return func(o Outcome) Outcome {
		o.Face += m
		return o
	}
}

// ClampMin raises the displayed face to at least floor.
func ClampMin(floor int) PostProcessor {
	return func(o Outcome) Outcome {
		if o.Face < floor {
			o.Face = floor
		}
		return o
	}
}

// Chain applies processors left to right. Nil entries are skipped.
func Chain(ps ...PostProcessor) PostProcessor {
	return func(o Outcome) Outcome {
		for _, p := range ps {
			if p != nil {
				o = p(o)
			}
		}
		return o
	}
}
