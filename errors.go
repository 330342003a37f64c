package bhtsne

import "errors"

// ErrUnsupportedDimension is returned by New when Config.Dim is not 2 or 3.
var ErrUnsupportedDimension = errors.New("bhtsne: unsupported dimension")

// ErrUninitialized is returned by Step when InitDataDist has not been called.
var ErrUninitialized = errors.New("bhtsne: engine not initialized, call InitDataDist first")
