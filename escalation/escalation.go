package escalation

import (
	"sync"
	"time"

	"github.com/hupe1980/supportmesh/bus"
	"github.com/hupe1980/supportmesh/core"
	"github.com/hupe1980/supportmesh/logging"
)

// RecordStatus is the lifecycle state of an escalation record.
type RecordStatus string

const (
	StatusQueued   RecordStatus = "QUEUED"
	StatusAssigned RecordStatus = "ASSIGNED"
	StatusResolved RecordStatus = "RESOLVED"
)

// Record tracks one escalated session from enqueue to resolution. The queue
// owns records; sessions are referenced by id only.
type Record struct {
	SessionID  string         `json:"session_id"`
	Reason     string         `json:"reason"`
	Details    map[string]any `json:"details,omitempty"`
	Priority   core.Priority  `json:"priority"`
	Status     RecordStatus   `json:"status"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	AssignedAt *time.Time     `json:"assigned_at,omitempty"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	OperatorID string         `json:"operator_id,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	Snapshot   *core.Snapshot `json:"snapshot,omitempty"`
}

// WaitSeconds is the derived queue wait, computed at assignment time.
func (r *Record) WaitSeconds() int {
	if r.AssignedAt == nil {
		return 0
	}
	return int(r.AssignedAt.Sub(r.EnqueuedAt).Seconds())
}

// TotalSeconds is the derived handling total from enqueue to resolution (or
// to now while still open).
func (r *Record) TotalSeconds() int {
	end := time.Now().UTC()
	if r.ResolvedAt != nil {
		end = *r.ResolvedAt
	}
	return int(end.Sub(r.EnqueuedAt).Seconds())
}

// avgHandlingSeconds is the per-session estimate used for wait projections
// until enough history exists to derive one.
const avgHandlingSeconds = 300

// Stats are the queue's lifetime counters.
type Stats struct {
	TotalEscalations int64            `json:"total_escalations"`
	Queued           int              `json:"queued"`
	Assigned         int              `json:"assigned"`
	Resolved         int64            `json:"resolved"`
	ByReason         map[string]int64 `json:"by_reason"`
}

// QueueEntry is one waiting session in a status report.
type QueueEntry struct {
	SessionID string        `json:"session_id"`
	Reason    string        `json:"reason"`
	Priority  core.Priority `json:"priority"`
	Position  int           `json:"position"`
}

// QueueStatus is a point-in-time view of the queue for dashboards.
type QueueStatus struct {
	QueueSize         int          `json:"queue_size"`
	ActiveEscalations int          `json:"active_escalations"`
	EstWaitSecs       int          `json:"estimated_wait_time"`
	Queue             []QueueEntry `json:"queue"`
}

// Options configures an Agent.
type Options struct {
	Logger logging.Logger
}

// Agent is the escalation queue component. It consumes the canonical
// escalation event, manages operator assignment and resolution, and emits
// the corresponding result and notification events.
type Agent struct {
	bus    *bus.Bus
	logger logging.Logger
	subs   []*bus.Subscription

	mu       sync.Mutex
	queue    []*Record          // front = index 0
	active   map[string]*Record // outstanding (QUEUED or ASSIGNED) by session id
	resolved int64
	total    int64
	byReason map[string]int64
}

// New constructs the escalation agent and subscribes it to the broker.
func New(b *bus.Bus, optFns ...func(o *Options)) *Agent {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &Agent{
		bus:      b,
		logger:   opts.Logger,
		active:   make(map[string]*Record),
		byReason: make(map[string]int64),
	}

	a.subs = []*bus.Subscription{
		b.Subscribe(core.EventTaskEscalate, a.handleEscalation),
		b.Subscribe(core.EventOperatorAvailable, a.handleOperatorAvailable),
		b.Subscribe(core.EventEscalationResolved, a.handleResolution),
	}

	a.logger.Info("escalation agent subscribed")
	return a
}

// Detach removes every subscription from the broker.
func (a *Agent) Detach() {
	for _, sub := range a.subs {
		a.bus.Unsubscribe(sub)
	}
	a.subs = nil
}

// Enqueue adds a session to the queue and returns its 1-based position. HIGH
// priority inserts at the front; everything else appends at the back. While a
// record for the session is already outstanding the call is a logged no-op
// returning the existing position (0 if already assigned).
func (a *Agent) Enqueue(sessionID, reason string, details map[string]any, priority core.Priority, snapshot *core.Snapshot) int {
	if priority == "" {
		priority = core.PriorityNormal
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.active[sessionID]; ok {
		a.logger.Warn("escalation already outstanding", "session_id", sessionID,
			"status", string(existing.Status), "reason", existing.Reason)
		return a.positionLocked(sessionID)
	}

	rec := &Record{
		SessionID:  sessionID,
		Reason:     reason,
		Details:    details,
		Priority:   priority,
		Status:     StatusQueued,
		EnqueuedAt: time.Now().UTC(),
		Snapshot:   snapshot,
	}

	if priority == core.PriorityHigh {
		a.queue = append([]*Record{rec}, a.queue...)
	} else {
		a.queue = append(a.queue, rec)
	}
	a.active[sessionID] = rec
	a.total++
	a.byReason[reason]++

	return a.positionLocked(sessionID)
}

// positionLocked returns the 1-based queue position of a session, or 0 when
// it is not currently queued. Caller must hold the mutex.
func (a *Agent) positionLocked(sessionID string) int {
	for i, rec := range a.queue {
		if rec.SessionID == sessionID {
			return i + 1
		}
	}
	return 0
}

// AssignNext pops the front of the queue regardless of the priority that
// placed it there and assigns it to the operator. It fails softly with
// ErrQueueEmpty instead of raising when nothing is waiting.
func (a *Agent) AssignNext(operatorID string) (*Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.queue) == 0 {
		return nil, ErrQueueEmpty
	}

	rec := a.queue[0]
	a.queue = a.queue[1:]

	now := time.Now().UTC()
	rec.Status = StatusAssigned
	rec.AssignedAt = &now
	rec.OperatorID = operatorID
	return rec, nil
}

// Resolve closes out an assigned (or still queued) escalation. Resolving an
// unknown session is a logged no-op because duplicate resolutions are a
// legitimate race.
func (a *Agent) Resolve(sessionID, operatorID, notes string) (*Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.active[sessionID]
	if !ok {
		a.logger.Warn("resolve: session not in active escalations", "session_id", sessionID)
		return nil, false
	}
	delete(a.active, sessionID)

	// A resolution can arrive while the session is still queued (operator
	// picked it up out of band); drop it from the waiting line too.
	for i, queued := range a.queue {
		if queued.SessionID == sessionID {
			a.queue = append(a.queue[:i:i], a.queue[i+1:]...)
			break
		}
	}

	now := time.Now().UTC()
	rec.Status = StatusResolved
	rec.ResolvedAt = &now
	rec.Notes = notes
	if rec.OperatorID == "" {
		rec.OperatorID = operatorID
	}
	a.resolved++

	return rec, true
}

// handleEscalation consumes the canonical escalation event.
func (a *Agent) handleEscalation(event core.Event) error {
	payload, ok := event.Payload.(core.EscalateTaskPayload)
	if !ok {
		return a.malformed(event)
	}
	if err := payload.Validate(); err != nil {
		a.logger.Error("escalation payload invalid", "error", err)
		return err
	}

	position := a.Enqueue(payload.SessionID, payload.Reason, payload.Details, payload.Priority, payload.Snapshot)
	a.logger.Warn("session queued for operator", "session_id", payload.SessionID,
		"reason", payload.Reason, "position", position)

	a.bus.Publish(core.EventEscalationComplete, core.EscalationQueuedPayload{
		SessionID:     payload.SessionID,
		Status:        string(StatusQueued),
		QueuePosition: position,
		EstWaitSecs:   a.EstimatedWaitSeconds(),
	})

	a.bus.Publish(core.EventOperatorNotification, core.OperatorNotificationPayload{
		Type:      "NEW_ESCALATION",
		SessionID: payload.SessionID,
		Reason:    payload.Reason,
		Priority:  payload.Priority,
		QueueSize: a.QueueSize(),
	})
	return nil
}

// handleOperatorAvailable assigns the next waiting session to the operator,
// or reports QUEUE_EMPTY.
func (a *Agent) handleOperatorAvailable(event core.Event) error {
	payload, ok := event.Payload.(core.OperatorAvailablePayload)
	if !ok {
		return a.malformed(event)
	}
	if err := payload.Validate(); err != nil {
		a.logger.Error("operator payload invalid", "error", err)
		return err
	}

	name := payload.OperatorName
	if name == "" {
		name = payload.OperatorID
	}

	rec, err := a.AssignNext(payload.OperatorID)
	if err != nil {
		a.logger.Info("no escalations waiting", "operator_id", payload.OperatorID)
		a.bus.Publish(core.EventOperatorAssigned, core.OperatorAssignedPayload{
			OperatorID: payload.OperatorID,
			Assigned:   false,
			Reason:     "QUEUE_EMPTY",
		})
		return nil
	}

	a.logger.Info("assigned session to operator", "session_id", rec.SessionID,
		"operator", name, "wait_seconds", rec.WaitSeconds())

	a.bus.Publish(core.EventOperatorAssigned, core.OperatorAssignedPayload{
		OperatorID:   payload.OperatorID,
		OperatorName: name,
		Assigned:     true,
		SessionID:    rec.SessionID,
		Reason:       rec.Reason,
		Snapshot:     rec.Snapshot,
		WaitSeconds:  rec.WaitSeconds(),
	})
	return nil
}

// handleResolution closes out an escalation reported done by an operator.
func (a *Agent) handleResolution(event core.Event) error {
	payload, ok := event.Payload.(core.EscalationResolvedPayload)
	if !ok {
		return a.malformed(event)
	}
	if err := payload.Validate(); err != nil {
		a.logger.Error("resolution payload invalid", "error", err)
		return err
	}

	rec, ok := a.Resolve(payload.SessionID, payload.OperatorID, payload.ResolutionNotes)
	if !ok {
		return nil
	}

	a.logger.Info("escalation resolved", "session_id", payload.SessionID,
		"operator_id", payload.OperatorID, "total_seconds", rec.TotalSeconds())

	a.bus.Publish(core.EventEscalationResolvedResult, core.EscalationResolvedResultPayload{
		SessionID:        payload.SessionID,
		OperatorID:       payload.OperatorID,
		TotalTimeSeconds: rec.TotalSeconds(),
		ResolutionNotes:  rec.Notes,
	})
	return nil
}

func (a *Agent) malformed(event core.Event) error {
	err := errUnexpectedPayload(event)
	a.logger.Error("malformed payload", "event_type", string(event.Type), "error", err)
	return err
}

// QueueSize returns the number of sessions waiting for an operator.
func (a *Agent) QueueSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// EstimatedWaitSeconds projects the wait for a newly queued session.
func (a *Agent) EstimatedWaitSeconds() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue) * avgHandlingSeconds
}

// Status reports a point-in-time view of the queue.
func (a *Agent) Status() QueueStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries := make([]QueueEntry, 0, len(a.queue))
	for i, rec := range a.queue {
		entries = append(entries, QueueEntry{
			SessionID: rec.SessionID,
			Reason:    rec.Reason,
			Priority:  rec.Priority,
			Position:  i + 1,
		})
	}
	return QueueStatus{
		QueueSize:         len(a.queue),
		ActiveEscalations: len(a.active),
		EstWaitSecs:       len(a.queue) * avgHandlingSeconds,
		Queue:             entries,
	}
}

// Stats returns the queue's lifetime counters.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	assigned := 0
	for _, rec := range a.active {
		if rec.Status == StatusAssigned {
			assigned++
		}
	}
	byReason := make(map[string]int64, len(a.byReason))
	for k, v := range a.byReason {
		byReason[k] = v
	}
	return Stats{
		TotalEscalations: a.total,
		Queued:           len(a.queue),
		Assigned:         assigned,
		Resolved:         a.resolved,
		ByReason:         byReason,
	}
}
