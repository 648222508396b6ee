// Package diffmodel defines the diffraction model enumeration shared by
// the path-search engine (which needs it to coerce search depth) and the
// DSP layer (which needs it to pick a filter implementation).
package diffmodel

// Model selects one of the eight diffraction DSP variants.
type Model int

const (
	Attenuate Model = iota
	LPF
	UDFA
	UDFAI
	NNBest
	NNSmall
	UTD
	BTM
)

// String names the model for logging.
func (m Model) String() string {
	switch m {
	case Attenuate:
		return "attenuate"
	case LPF:
		return "lpf"
	case UDFA:
		return "udfa"
	case UDFAI:
		return "udfa-i"
	case NNBest:
		return "nn-best"
	case NNSmall:
		return "nn-small"
	case UTD:
		return "utd"
	case BTM:
		return "btm"
	default:
		return "unknown"
	}
}

// SupportsFullZone reports whether the model produces DSP for both shadow
// and non-shadow zones, rather than shadow zone only.
func SupportsFullZone(m Model) bool {
	return m == UDFA || m == BTM
}

// SupportsCombinedOrder reports whether the model supports
// specular+diffraction chains of order > 0. Every other model clamps that order to
// zero.
func SupportsCombinedOrder(m Model) bool {
	return m == BTM || m == UDFA
}
