package agent

import "errors"

// ErrModelUnavailable means the model backend could not be reached or
// errored mid-turn. The turn is aborted and no interaction effect is
// committed; retry policy belongs to the caller.
var ErrModelUnavailable = errors.New("model unavailable")
