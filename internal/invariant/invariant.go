// Package invariant provides a debug-only assertion used at the internal
// seams the spec calls "programming bugs, not submission errors" — e.g. a
// balance ledger operation invoked with an already-violated precondition.
// Checks are no-ops unless EnableDebug has been called (this package's own
// test does so; no other test suite enables it), matching spec.md §7's "assertions in debug,
// undefined-behavior-free failure in release" recovery policy without
// reaching for a cgo-only assert facility.
package invariant

import "fmt"

var debug bool

// EnableDebug turns on invariant panics. Intended for test binaries only.
func EnableDebug() { debug = true }

// Check panics with a formatted message if cond is false and debug mode is
// enabled; otherwise it does nothing.
func Check(cond bool, format string, args ...any) {
	if !debug || cond {
		return
	}
	panic(fmt.Sprintf(format, args...))
}
