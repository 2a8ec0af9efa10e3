package network

import "errors"

// ErrNetnsIDExhausted is returned if no netns id in [1, 50000] is free
// after a bounded number of attempts (should not happen in practice; see
// spec.md §9's note on retry-on-EEXIST being the only collision handling).
var ErrNetnsIDExhausted = errors.New("no free netns id in [1, 50000]")
