// Package transcript persists finished conversations. A Recorder observes
// the broker, appends agent replies to the live session, and on conversation
// end evicts the session from the registry and hands its final snapshot to a
// Writer. Persistence is write-at-end only; active conversations live solely
// in the registry.
package transcript
