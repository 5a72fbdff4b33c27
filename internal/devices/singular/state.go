package singular

// ContentTypeComposition is the object content type this device projects.
const ContentTypeComposition = "composition"

// Command kinds.
const (
	KindAdded   = "added"
	KindChanged = "changed"
	KindRemoved = "removed"
)

// Animation targets.
const (
	AnimateIn  = "In"
	AnimateOut = "Out"
)

// defaultAction is used when an object specifies no animation.
const defaultAction = "play"

// Animation is how a composition transitions in and out.
type Animation struct {
	Action string
}

// ControlNode is the composition's field payload.
type ControlNode struct {
	Payload map[string]string
}

// Composition is one visible composition and the object that drives it.
type Composition struct {
	OriginID    string
	Animation   Animation
	ControlNode ControlNode
}

// State is the projected device state, keyed by composition name.
type State struct {
	Compositions map[string]Composition
}

// DefaultState returns a state with nothing on air.
func DefaultState() State {
	return State{Compositions: map[string]Composition{}}
}

// Content is the wire form of one control API update.
type Content struct {
	CompositionName string              `json:"compositionName"`
	Animation       *AnimationContent   `json:"animation,omitempty"`
	ControlNode     *ControlNodeContent `json:"controlNode,omitempty"`
}

// AnimationContent triggers a transition.
type AnimationContent struct {
	Action string `json:"action"`
	To     string `json:"to"`
}

// ControlNodeContent pushes field values.
type ControlNodeContent struct {
	Payload map[string]string `json:"payload"`
}
