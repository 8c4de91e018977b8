package gate_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-ead/internal/gate"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestNewRecordIsOpen(t *testing.T) {
	r := gate.New("enr", "mod")
	assert.Equal(t, gate.StateNotAttempted, r.State())
	assert.NoError(t, r.CanEnter(2, t0))
}

func TestFailureLocksTemporarily(t *testing.T) {
	r := gate.New("enr", "mod").Apply(5, false, 3, 24*time.Hour, t0)
	assert.Equal(t, gate.StateLockedTemporary, r.State())
	assert.Equal(t, gate.StatusLocked, r.Status)
	assert.Equal(t, 1, r.Attempts)
	require.NotNil(t, r.LockUntil)
	assert.Equal(t, t0.Add(24*time.Hour), *r.LockUntil)
}

func TestTemporaryLockExpiry(t *testing.T) {
	const h = 24 * time.Hour
	r := gate.New("enr", "mod").Apply(5, false, 3, h, t0)

	err := r.CanEnter(3, t0.Add(h-time.Millisecond))
	var le *gate.LockedError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, t0.Add(h), le.Until)
	assert.True(t, gate.IsDenied(err))

	assert.NoError(t, r.CanEnter(3, t0.Add(h)))
	assert.NoError(t, r.CanEnter(3, t0.Add(h+time.Millisecond)))
}

func TestPermanentLockThreshold(t *testing.T) {
	r := gate.New("enr", "mod")
	now := t0
	for i := 0; i < 3; i++ {
		require.NoError(t, r.CanEnter(3, now))
		r = r.Apply(1, false, 3, time.Hour, now)
		now = now.Add(2 * time.Hour)
	}
	assert.Equal(t, gate.StateLockedPermanent, r.State())
	assert.Nil(t, r.LockUntil)
	assert.ErrorIs(t, r.CanEnter(3, now.Add(10*365*24*time.Hour)), gate.ErrLockedPermanent)
}

func TestApprovalIsTerminal(t *testing.T) {
	r := gate.New("enr", "mod").Apply(5, false, 3, time.Hour, t0)
	r = r.Apply(9, true, 3, time.Hour, t0.Add(2*time.Hour))
	assert.Equal(t, gate.StateApproved, r.State())
	assert.Equal(t, gate.StatusUnlocked, r.Status)
	assert.Nil(t, r.LockUntil)

	// a later failing verdict, even one that reaches the limit, keeps approval
	r = r.Apply(0, false, 3, time.Hour, t0.Add(3*time.Hour))
	assert.Equal(t, gate.StateApproved, r.State())
	assert.Equal(t, 3, r.Attempts)
	assert.Equal(t, 0.0, r.Score)
	assert.ErrorIs(t, r.CanEnter(3, t0.Add(4*time.Hour)), gate.ErrAlreadyApproved)
}

func TestUnlimitedAttempts(t *testing.T) {
	r := gate.New("enr", "mod")
	for i := 0; i < 10; i++ {
		r = r.Apply(0, false, 0, 0, t0)
	}
	assert.Equal(t, gate.StateLockedTemporary, r.State())
	assert.NoError(t, r.CanEnter(0, t0))
}

func TestPolicyLimit(t *testing.T) {
	p := gate.Policy{MaxAttempts: 3}
	assert.Equal(t, 2, p.Limit(2))
	assert.Equal(t, 3, p.Limit(0))
}

func TestWorkedScenario(t *testing.T) {
	const block = 24 * time.Hour
	r := gate.New("enr", "mod")

	require.NoError(t, r.CanEnter(2, t0))
	r = r.Apply(5, false, 2, block, t0)
	assert.Equal(t, gate.StateLockedTemporary, r.State())

	err := r.CanEnter(2, t0.Add(time.Hour))
	var le *gate.LockedError
	assert.True(t, errors.As(err, &le))

	later := t0.Add(25 * time.Hour)
	require.NoError(t, r.CanEnter(2, later))
	r = r.Apply(8, true, 2, block, later)
	assert.Equal(t, gate.StateApproved, r.State())
	assert.ErrorIs(t, r.CanEnter(2, later.Add(time.Hour)), gate.ErrAlreadyApproved)
}
