package livegraph

import "errors"

// ErrRuntimeClosed is returned by calls made after Close.
var ErrRuntimeClosed = errors.New("livegraph: runtime is closed")

// errNoPortCaller is the cause of INVOCATION_ERROR when the callable
// instance cannot receive port calls.
var errNoPortCaller = errors.New("instance does not implement PortCaller")
