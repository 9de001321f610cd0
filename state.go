package tensorpipe

import (
	"github.com/dudk/tensorpipe/internal/state"
	"github.com/dudk/tensorpipe/tensor"
)

// State identifies one of the possible states pipeline can be in.
type State = state.State

// states
const (
	Null    = state.Null    // Null means that pipeline isn't running.
	Ready   = state.Ready   // Ready means that pipeline workers are allocated.
	Paused  = state.Paused  // Paused means that pipeline refuses new data.
	Playing = state.Playing // Playing means that pipeline accepts data.
	Unknown = state.Unknown // Unknown means that pipeline failed, see Err.
)

// ErrInvalidState is returned if transition cannot be made from the
// current state.
var ErrInvalidState = state.ErrInvalidState

type (
	// SinkFunc receives sets arrived to the sink. Set is owned by the
	// callback and should be released when it's not needed anymore.
	SinkFunc func(s *tensor.Set, spec tensor.SetSpec)

	// StateFunc receives every state of the pipeline in order of
	// transitions.
	StateFunc func(State)
)
