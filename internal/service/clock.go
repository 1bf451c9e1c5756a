package service

import "time"

// Clock abstracts wall time so attendance and scheduling logic can be
// tested without depending on the real clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns a Clock backed by time.Now.
func RealClock() Clock { return realClock{} }
