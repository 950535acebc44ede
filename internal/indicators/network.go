// Package indicators turns network, battery and call state into the
// Audio-Gateway status indicators reported to an HF.
package indicators

import "github.com/MrWong99/hfpag/pkg/hfp"

// Network tracks the last known network status and reports which indicators
// changed when a new snapshot arrives. The zero value is an empty tracker.
//
// Network is not safe for concurrent use; it is owned by a session.
type Network struct {
	info hfp.NetworkInformation
}

// Apply merges update into the tracked status. A field is taken over only
// when update carries it and its value differs from the tracked one. One
// indicator is returned per changed field, in the order service, signal,
// roam. Applying the same snapshot twice yields nothing the second time.
func (n *Network) Apply(update hfp.NetworkInformation) []hfp.Indicator {
	var out []hfp.Indicator
	if v := update.ServiceAvailable; v != nil && !sameBool(n.info.ServiceAvailable, *v) {
		n.info.ServiceAvailable = hfp.Bool(*v)
		out = append(out, hfp.Service(*v))
	}
	if v := update.SignalStrength; v != nil && (n.info.SignalStrength == nil || *n.info.SignalStrength != *v) {
		n.info.SignalStrength = v.Ptr()
		out = append(out, hfp.Signal(*v))
	}
	if v := update.Roaming; v != nil && !sameBool(n.info.Roaming, *v) {
		n.info.Roaming = hfp.Bool(*v)
		out = append(out, hfp.Roam(*v))
	}
	return out
}

// Snapshot returns a copy of the tracked status. The pointers in the result
// do not alias the tracker's own state.
func (n *Network) Snapshot() hfp.NetworkInformation {
	var out hfp.NetworkInformation
	if v := n.info.ServiceAvailable; v != nil {
		out.ServiceAvailable = hfp.Bool(*v)
	}
	if v := n.info.SignalStrength; v != nil {
		out.SignalStrength = v.Ptr()
	}
	if v := n.info.Roaming; v != nil {
		out.Roaming = hfp.Bool(*v)
	}
	return out
}

func sameBool(have *bool, want bool) bool {
	return have != nil && *have == want
}
