package singular

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nerrad567/gray-logic-playout/internal/dispatch"
	"github.com/nerrad567/gray-logic-playout/internal/timeline"
)

// Reconciler implements playout.Reconciler[State].
type Reconciler struct{}

// Kind implements playout.Reconciler.
func (Reconciler) Kind() timeline.DeviceKind {
	return timeline.KindSingularLive
}

// Default implements playout.Reconciler.
func (Reconciler) Default() State {
	return DefaultState()
}

// Project collects the compositions deviceID should show. A later layer
// bound to the same composition name replaces an earlier one.
func (Reconciler) Project(snap timeline.Snapshot, mapping timeline.Mapping, deviceID string) State {
	st := DefaultState()

	for _, obj := range snap.Layers {
		entry, ok := mapping.Lookup(obj.Layer)
		if !ok || entry.DeviceID != deviceID || entry.Kind != timeline.KindSingularLive {
			continue
		}
		if typ, _ := obj.String("type"); typ != ContentTypeComposition {
			continue
		}

		comp := Composition{
			OriginID:  obj.ID,
			Animation: Animation{Action: defaultAction},
		}
		if anim, ok := obj.Map("animation"); ok {
			if action, ok := anim["action"].(string); ok && action != "" {
				comp.Animation.Action = action
			}
		}
		if node, ok := obj.Map("controlNode"); ok {
			if payload, ok := node["payload"].(map[string]any); ok {
				comp.ControlNode.Payload = timeline.StringMap(payload)
			}
		}

		st.Compositions[entry.CompositionName] = comp
	}

	return st
}

// Diff returns the commands that move the device from old to new:
//   - a new composition is animated in and gets its payload
//   - a composition whose payload changed gets the new payload
//   - a composition that went away is animated out
//
// Commands are ordered by composition name, and for one composition the
// payload update comes before the animation.
func (Reconciler) Diff(old, new State) []dispatch.Command {
	var cmds []dispatch.Command

	for _, name := range slices.Sorted(maps.Keys(new.Compositions)) {
		comp := new.Compositions[name]
		prev, existed := old.Compositions[name]

		switch {
		case !existed:
			ctx := fmt.Sprintf("added: %s", comp.OriginID)
			cmds = append(cmds,
				dispatch.Command{
					Kind:     KindAdded,
					Key:      name,
					Payload:  animationContent(name, comp.Animation.Action, AnimateIn),
					OriginID: comp.OriginID,
					Context:  ctx,
				},
				dispatch.Command{
					Kind:     KindAdded,
					Key:      name,
					Payload:  controlNodeContent(name, comp.ControlNode.Payload),
					OriginID: comp.OriginID,
					Context:  ctx,
				},
			)
		case !cmp.Equal(prev.ControlNode, comp.ControlNode, cmpopts.EquateEmpty()):
			cmds = append(cmds, dispatch.Command{
				Kind:     KindChanged,
				Key:      name,
				Payload:  controlNodeContent(name, comp.ControlNode.Payload),
				OriginID: comp.OriginID,
				Context:  fmt.Sprintf("changed: %s (previously: %s)", comp.OriginID, prev.OriginID),
			})
		}
	}

	for _, name := range slices.Sorted(maps.Keys(old.Compositions)) {
		if _, ok := new.Compositions[name]; ok {
			continue
		}
		comp := old.Compositions[name]
		cmds = append(cmds, dispatch.Command{
			Kind:     KindRemoved,
			Key:      name,
			Payload:  animationContent(name, comp.Animation.Action, AnimateOut),
			OriginID: comp.OriginID,
			Context:  fmt.Sprintf("removed: %s", comp.OriginID),
		})
	}

	slices.SortStableFunc(cmds, compareCommands)
	return cmds
}

// compareCommands orders by key, then payload updates first.
func compareCommands(a, b dispatch.Command) int {
	if c := strings.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	ap, bp := hasControlNode(a), hasControlNode(b)
	switch {
	case ap && !bp:
		return -1
	case !ap && bp:
		return 1
	default:
		return 0
	}
}

func hasControlNode(cmd dispatch.Command) bool {
	c, ok := cmd.Payload.(Content)
	return ok && c.ControlNode != nil
}

func animationContent(name, action, to string) Content {
	return Content{
		CompositionName: name,
		Animation:       &AnimationContent{Action: action, To: to},
	}
}

func controlNodeContent(name string, payload map[string]string) Content {
	return Content{
		CompositionName: name,
		ControlNode:     &ControlNodeContent{Payload: payload},
	}
}
