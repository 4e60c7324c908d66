// Package system provides the wall-clock Clock implementation.
package system

import "time"

// Clock returns real time.
type Clock struct{}

// Now returns the current wall-clock time.
func (Clock) Now() time.Time {
	return time.Now()
}
