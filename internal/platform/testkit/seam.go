package testkit

import "testing"

// Swap replaces a package-level seam for the duration of the test
// tests that swap the same seam must not run in parallel
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	orig := *target
	*target = replacement
	t.Cleanup(func() { *target = orig })
}
