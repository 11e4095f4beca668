// Package escalation manages the hand-off of conversations to human
// operators. It owns the escalation records and the queue of sessions
// awaiting assignment.
//
// The backing structure is a double-ended FIFO with a two-level priority
// scheme: HIGH priority inserts at the front, every other priority appends at
// the back. Within the same priority class order is strictly arrival order;
// the queue is intentionally not a fully ordered priority queue.
//
// At most one record per session is outstanding (QUEUED or ASSIGNED) at a
// time. Assigning from an empty queue and resolving an unknown session are
// soft failures: a duplicate resolution notification is a legitimate race
// (operator UI double-click, retried message), not an error. Wait and
// handling times are derived from recorded timestamps at assignment and
// resolution time, never tracked incrementally.
package escalation
