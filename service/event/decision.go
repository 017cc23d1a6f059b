package event

// DecisionKind is the verdict of a guard listener.
type DecisionKind int

const (
	// DecisionContinue leaves the requested target unchanged.
	DecisionContinue DecisionKind = iota
	// DecisionCancel aborts the transition.
	DecisionCancel
	// DecisionRedirect replaces the target with Decision.StepID.
	DecisionRedirect
)

// Decision is returned by guard listeners to let a transition proceed, stop
// it, or send it to a different step.
type Decision struct {
	Kind   DecisionKind
	StepID string
}

var (
	// Continue lets the transition proceed.
	Continue = Decision{Kind: DecisionContinue}
	// Cancel stops the transition.
	Cancel = Decision{Kind: DecisionCancel}
)

// RedirectTo sends the transition to stepID.
func RedirectTo(stepID string) Decision {
	return Decision{Kind: DecisionRedirect, StepID: stepID}
}

// IsCancel reports whether d aborts the transition.
func (d Decision) IsCancel() bool { return d.Kind == DecisionCancel }

// IsRedirect reports whether d sends the transition elsewhere.
func (d Decision) IsRedirect() bool { return d.Kind == DecisionRedirect }
