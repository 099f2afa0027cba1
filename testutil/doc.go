// Package testutil provides shared helpers for intake tests: timeout
// contexts, a manually-advanced fake clock, and tool argument builders.
// It must only be imported from _test.go files.
package testutil
