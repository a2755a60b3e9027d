package domain

// State is a point-in-time copy of the form used for rendering.
type State struct {
	Phase     Phase
	Filename  string
	HasImage  bool
	Preview   Preview
	Loading   bool
	Error     string
	Processed *Reference
}

func (s State) CanSubmit() bool {
	return s.HasImage && !s.Loading
}

// ProcessedLabel names the phase the displayed result was produced with.
func (s State) ProcessedLabel() string {
	if s.Processed == nil {
		return ""
	}
	return s.Processed.Phase.Label()
}

func (s State) SubmitLabel() string {
	if s.Loading {
		return "Processing..."
	}
	return "Process Image"
}
