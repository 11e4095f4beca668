// Package classify provides the classification collaborators that plug into
// the workflow through the task/result event pair. The core never calls a
// classifier directly: the coordinator publishes TASK_RECOGNIZE_SENTIMENT /
// TASK_RECOGNIZE_INTENT and consumes the corresponding result events, so any
// implementation of Classifier can be swapped in without touching the gates.
//
// The built-in classifiers are rule based (keyword, phrase and pattern
// matching with confidence scoring). They are fast, dependency free and good
// enough for the hot path. LLM-backed implementations live in the openai and
// anthropic subpackages and satisfy the same Classifier interface.
//
// A classifier failure is never fatal: agents report it as an AGENT_ERROR
// event and the coordinator escalates the session to a human.
package classify
