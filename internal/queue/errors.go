package queue

import "errors"

// ErrUnavailable is returned by consumer-side operations when the underlying
// stream cannot be reached. Producer-side Enqueue never surfaces it: the
// producer contract absorbs failures and reports a boolean instead.
var ErrUnavailable = errors.New("queue unavailable")
