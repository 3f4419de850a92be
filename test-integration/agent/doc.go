// Package integration provides end-to-end tests for the fieldsync agent.
// The agent runs in process against a fake sync server and is driven
// through its control API, covering the push, pull and trigger paths.
package integration
