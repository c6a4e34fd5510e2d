package testutil

import "testing"

// Given, When and Then nest subtests so a failing router scenario reads as a
// sentence in `go test -v` output.
func Given(t *testing.T, precondition string, fn func(t *testing.T)) bool {
	t.Helper()
	return t.Run("given "+precondition, fn)
}

func When(t *testing.T, action string, fn func(t *testing.T)) bool {
	t.Helper()
	return t.Run("when "+action, fn)
}

func Then(t *testing.T, outcome string, fn func(t *testing.T)) bool {
	t.Helper()
	return t.Run("then "+outcome, fn)
}
