// Package clockx provides a small clock abstraction so timestamp assignment,
// expiry checks, and rate-limit windows can be driven by a fake clock in tests.
package clockx

import "time"

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

// System is the wall-clock implementation used in production.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }
