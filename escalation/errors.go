package escalation

import (
	"fmt"

	"github.com/hupe1980/supportmesh/core"
)

var (
	// ErrQueueEmpty is returned by AssignNext when no session is waiting.
	// Callers treat it as a soft failure, not a fault.
	ErrQueueEmpty = fmt.Errorf("escalation queue is empty")
)

func errUnexpectedPayload(event core.Event) error {
	return fmt.Errorf("%s: unexpected payload type %T", event.Type, event.Payload)
}
