// Package bus implements the synchronous, in-process publish/subscribe broker
// that connects every SupportMesh component.
//
// Delivery semantics:
//
//   - Publish delivers synchronously, inside the publisher's call stack, to a
//     snapshot of the subscriber list taken at dispatch time. Subscribe and
//     Unsubscribe calls issued from within a handler never affect the
//     in-flight delivery.
//   - Delivery is at-most-once per subscriber per Publish call, FIFO by
//     subscription order. There is no queueing, no retry, and no ordering
//     guarantee across different event types.
//   - A handler error (returned or recovered from a panic) is counted and
//     logged but never stops delivery to the remaining subscribers.
//   - Re-entrant Publish from inside a handler is legal and common: gate
//     handlers publish the task that the next gate responds to. The broker
//     never holds its lock across a handler invocation, so re-entrancy cannot
//     deadlock it.
//
// The broker is volatile and process-local; durability and distribution are
// explicitly out of scope.
package bus
