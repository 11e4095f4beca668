package store

import "fmt"

var (
	// ErrSessionExists is returned by CreateSession when the session id is
	// already present. Duplicate creation indicates a logic bug in the caller
	// and is never silently absorbed.
	ErrSessionExists = fmt.Errorf("session already exists")
)
