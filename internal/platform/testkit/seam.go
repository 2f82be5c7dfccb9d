package testkit

import "testing"

// Swap swaps a package-level variable for the duration of the test and restores it after
// Tests that use it must not run in parallel with other users of the same seam
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	orig := *target
	*target = replacement
	t.Cleanup(func() { *target = orig })
}
