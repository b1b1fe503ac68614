package types

// RecorderState represents the latency recorder lifecycle state.
//
// States follow a single forward progression:
//
//	RecorderIdle → RecorderRecording → RecorderDraining → RecorderClosed
//
// Deliveries are accepted while Recording and Draining. Aggregation is only
// possible once Closed.
type RecorderState int32

const (
	// RecorderIdle is the initial state before Start.
	RecorderIdle RecorderState = iota

	// RecorderRecording indicates deliveries are being accepted.
	RecorderRecording

	// RecorderDraining indicates the observation window ended and in-flight deliveries are settling.
	RecorderDraining

	// RecorderClosed indicates no further deliveries are accepted.
	RecorderClosed
)

// String returns the string representation of the state.
func (s RecorderState) String() string {
	switch s {
	case RecorderIdle:
		return "Idle"
	case RecorderRecording:
		return "Recording"
	case RecorderDraining:
		return "Draining"
	case RecorderClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// AcceptsDeliveries reports whether Record is allowed in this state.
func (s RecorderState) AcceptsDeliveries() bool {
	return s == RecorderRecording || s == RecorderDraining
}
