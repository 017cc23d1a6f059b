package model

// TargetKind classifies the outcome of evaluating a navigation edge.
type TargetKind int

const (
	// TargetNone means the edge did not resolve; resolution falls through to array order.
	TargetNone TargetKind = iota
	// TargetEnd means the edge explicitly ends the flow.
	TargetEnd
	// TargetStep means the edge resolved to a step id.
	TargetStep
)

func (k TargetKind) String() string {
	switch k {
	case TargetEnd:
		return "end"
	case TargetStep:
		return "step"
	}
	return "none"
}

// Target is a resolved navigation edge.
type Target struct {
	Kind TargetKind
	ID   string
}

var (
	// NoTarget is an unresolved edge.
	NoTarget = Target{}
	// EndTarget ends the flow.
	EndTarget = Target{Kind: TargetEnd}
)

// StepTarget returns a target pointing at id; an empty id is unresolved.
func StepTarget(id string) Target {
	if id == "" {
		return NoTarget
	}
	return Target{Kind: TargetStep, ID: id}
}

// IsStep reports whether the target names a step.
func (t Target) IsStep() bool { return t.Kind == TargetStep }

// IsEnd reports whether the target ends the flow.
func (t Target) IsEnd() bool { return t.Kind == TargetEnd }

// IsNone reports whether the target is unresolved.
func (t Target) IsNone() bool { return t.Kind == TargetNone }

// Ref is a navigation edge of a step: a literal id, an explicit end or a
// function of the flow context. A nil Ref is an absent edge.
type Ref interface {
	Evaluate(c *Context) Target
}

// Literal is a static step id edge.
type Literal string

// Evaluate returns the literal id.
func (l Literal) Evaluate(*Context) Target { return StepTarget(string(l)) }

type endRef struct{}

func (endRef) Evaluate(*Context) Target { return EndTarget }

// End is an edge that explicitly terminates the flow.
var End Ref = endRef{}

// Dynamic is an edge computed from the flow context.
type Dynamic func(c *Context) Target

// Evaluate calls the underlying function; a nil function is unresolved.
func (d Dynamic) Evaluate(c *Context) Target {
	if d == nil {
		return NoTarget
	}
	return d(c)
}

// Evaluate evaluates ref, treating a nil ref as unresolved.
func Evaluate(ref Ref, c *Context) Target {
	if ref == nil {
		return NoTarget
	}
	return ref.Evaluate(c)
}
