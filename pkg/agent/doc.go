// Package agent drives the command loop: ask the backend for a shell command,
// run it, feed the transcript back and repeat until the model reports the task
// complete.
//
// Invariants:
// - The loop owns the conversation; collaborators never mutate it.
// - The conversation is persisted after every successful backend exchange.
// - Cancellation persists the conversation with a detached context before
//   the loop reports ErrInterrupted.
//
// Usage:
//
//	a, _ := agent.New(agent.Config{Backend: failover, Executor: exec})
//	result, err := a.Run(ctx, conv, "install nginx and start it")
//	_ = result
package agent
