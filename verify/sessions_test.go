package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionsLifecycle(t *testing.T) {
	s := NewSessions()

	_, ok := s.GetPending(1)
	assert.False(t, ok)

	s.SetPending(1, "123456789")
	uid, ok := s.GetPending(1)
	assert.True(t, ok)
	assert.Equal(t, "123456789", uid)

	// A newer claim replaces the old one.
	s.SetPending(1, "987654321")
	uid, _ = s.GetPending(1)
	assert.Equal(t, "987654321", uid)

	// Users do not share state.
	_, ok = s.GetPending(2)
	assert.False(t, ok)

	s.ClearPending(1)
	_, ok = s.GetPending(1)
	assert.False(t, ok)
}
