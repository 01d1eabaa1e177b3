package shutdown

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stubExit(t *testing.T) *[]int {
	t.Helper()
	var codes []int
	old := ExitFunc
	ExitFunc = func(code int) { codes = append(codes, code) }
	Reset()
	t.Cleanup(func() {
		ExitFunc = old
		Reset()
	})
	return &codes
}

func TestShutdownRunsHooksInReverse(t *testing.T) {
	codes := stubExit(t)

	var order []string
	Register(func() { order = append(order, "first") })
	Register(func() { order = append(order, "second") })

	Shutdown()

	assert.Equal(t, []string{"second", "first"}, order)
	assert.Equal(t, []int{0}, *codes)
}

func TestShutdownWithErrorExitsNonZero(t *testing.T) {
	codes := stubExit(t)

	released := 0
	Register(func() { released++ })

	ShutdownWithError(errors.New("pinctrl: permission denied"), "Failed to drive relay")
	// a second fatal error must not release twice
	ShutdownWithError(errors.New("again"), "Failed again")

	assert.Equal(t, 1, released)
	assert.Equal(t, []int{1, 1}, *codes)
}

func TestReleaseDoesNotExit(t *testing.T) {
	codes := stubExit(t)

	released := false
	Register(func() { released = true })
	Release()

	assert.True(t, released)
	assert.Empty(t, *codes)
}
