package chord

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	subscribes int
	closes     int
	handler    Handler
	err        error
}

func (s *fakeSource) Subscribe(h Handler) (Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.subscribes++
	s.handler = h
	return s, nil
}

func (s *fakeSource) Close() error {
	s.closes++
	return nil
}

func counter() (*int, func()) {
	n := 0
	return &n, func() { n++ }
}

func TestEdgeTriggerIgnoresRepeatedPress(t *testing.T) {
	m := New()
	n, cb := counter()
	_, err := m.Add([]string{"A", "B"}, cb)
	require.NoError(t, err)

	m.Press("A")
	require.Equal(t, 0, *n)
	m.Press("B")
	require.Equal(t, 1, *n)

	// key repeat
	m.Press("B")
	m.Press("A")
	m.Press("B")
	require.Equal(t, 1, *n)
}

func TestReleaseRearmsChord(t *testing.T) {
	m := New()
	n, cb := counter()
	_, err := m.Add([]string{"A", "B"}, cb)
	require.NoError(t, err)

	m.Press("A")
	m.Press("B")
	m.Release("A")
	require.Equal(t, 1, *n)
	m.Press("A")
	require.Equal(t, 2, *n)
	m.Press("A")
	require.Equal(t, 2, *n)
}

func TestOverlappingChordsAreIndependent(t *testing.T) {
	releaseAll := func(m *Manager) {
		for _, k := range []string{"A", "B", "C"} {
			m.Release(k)
		}
	}

	m := New()
	ab, cbAB := counter()
	ac, cbAC := counter()
	_, err := m.Add([]string{"A", "B"}, cbAB)
	require.NoError(t, err)
	_, err = m.Add([]string{"A", "C"}, cbAC)
	require.NoError(t, err)

	m.Press("A")
	m.Press("B")
	require.Equal(t, 1, *ab)
	require.Equal(t, 0, *ac)
	releaseAll(m)

	m.Press("A")
	m.Press("C")
	require.Equal(t, 1, *ab)
	require.Equal(t, 1, *ac)
	releaseAll(m)

	for _, order := range [][]string{{"A", "B", "C"}, {"A", "C", "B"}, {"C", "B", "A"}} {
		*ab, *ac = 0, 0
		for _, k := range order {
			m.Press(k)
		}
		require.Equal(t, 1, *ab, "order %v", order)
		require.Equal(t, 1, *ac, "order %v", order)
		releaseAll(m)
	}
}

func TestAddRejectsInvalidInput(t *testing.T) {
	m := New()
	_, cb := counter()

	cases := []struct {
		name string
		keys []string
		cb   func()
	}{
		{"empty sequence", []string{}, cb},
		{"nil sequence", nil, cb},
		{"empty key", []string{"", "x"}, cb},
		{"nil callback", []string{"A"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := m.Add(tc.keys, tc.cb)
			require.ErrorIs(t, err, ErrInvalidInput)
			require.Equal(t, InvalidID, id)
			require.Equal(t, 0, m.Len())
		})
	}

	id, err := m.AddKey("", cb)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Equal(t, InvalidID, id)

	// a rejected Add must not consume an id
	id, err = m.AddKey("A", cb)
	require.NoError(t, err)
	require.Equal(t, ID(1), id)
}

func TestRemoveIsIdempotent(t *testing.T) {
	m := New()
	n, cb := counter()
	id, err := m.Add([]string{"A", "B"}, cb)
	require.NoError(t, err)

	require.True(t, m.Remove(id))
	require.False(t, m.Remove(id))
	require.False(t, m.Remove(InvalidID))
	require.False(t, m.Remove(-3))
	require.False(t, m.Remove(99))

	m.Press("A")
	m.Press("B")
	m.Release("A")
	m.Press("A")
	require.Equal(t, 0, *n)
	require.Equal(t, 0, m.Len())
}

func TestDuplicateKeysCollapse(t *testing.T) {
	m := New()
	n, cb := counter()
	id, err := m.Add([]string{"A", "A"}, cb)
	require.NoError(t, err)

	keys, ok := m.Keys(id)
	require.True(t, ok)
	require.Equal(t, []string{"A"}, keys)

	m.Press("A")
	require.Equal(t, 1, *n)
}

func TestIDsAreMonotonic(t *testing.T) {
	m := New()
	_, cb := counter()

	var last ID
	for i := 0; i < 5; i++ {
		id, err := m.AddKey("A", cb)
		require.NoError(t, err)
		require.Greater(t, id, last)
		if i%2 == 0 {
			require.True(t, m.Remove(id))
		}
		last = id
	}
	m.Clear()
	id, err := m.AddKey("A", cb)
	require.NoError(t, err)
	require.Equal(t, ID(6), id)
}

func TestKeysAreCaseSensitive(t *testing.T) {
	m := New()
	n, cb := counter()
	_, err := m.Add([]string{"Shift", "a"}, cb)
	require.NoError(t, err)

	m.Press("SHIFT")
	m.Press("A")
	m.Press("a")
	require.Equal(t, 0, *n)
	m.Press("Shift")
	require.Equal(t, 1, *n)
}

func TestUnknownKeysAreIgnored(t *testing.T) {
	m := New()
	n, cb := counter()
	_, err := m.Add([]string{"A"}, cb)
	require.NoError(t, err)

	require.Equal(t, 0, m.Press("Z"))
	require.Equal(t, 0, m.Release("Z"))
	require.Equal(t, 0, *n)
}

func TestPanickingCallbackDoesNotStopPass(t *testing.T) {
	var panicked []ID
	var values []any
	m := New(WithPanicHandler(func(id ID, value any, stack []byte) {
		panicked = append(panicked, id)
		values = append(values, value)
	}))

	bad, err := m.AddKey("A", func() { panic("boom") })
	require.NoError(t, err)
	n, cb := counter()
	_, err = m.AddKey("A", cb)
	require.NoError(t, err)

	require.Equal(t, 2, m.Press("A"))
	require.Equal(t, 1, *n)
	require.Equal(t, []ID{bad}, panicked)
	require.Equal(t, []any{"boom"}, values)

	// the latch of the panicking chord is still set
	m.Press("A")
	require.Len(t, panicked, 1)
}

func TestCallbacksRunInRegistrationOrder(t *testing.T) {
	m := New()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		_, err := m.Add([]string{"X", "Y"}, func() { order = append(order, i) })
		require.NoError(t, err)
	}
	m.Press("Y")
	m.Press("X")
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestMutationDuringPassAffectsLaterNotifications(t *testing.T) {
	m := New()
	var second ID
	secondFired := 0
	addedFired := 0

	mutated := false
	_, err := m.AddKey("A", func() {
		if mutated {
			return
		}
		mutated = true
		m.Remove(second)
		_, _ = m.AddKey("A", func() { addedFired++ })
	})
	require.NoError(t, err)
	second, err = m.AddKey("A", func() { secondFired++ })
	require.NoError(t, err)

	m.Press("A")
	require.Equal(t, 1, secondFired, "removed during the pass but still part of it")
	require.Equal(t, 0, addedFired, "added during the pass, not part of it")

	m.Release("A")
	m.Press("A")
	require.Equal(t, 1, secondFired)
	require.Equal(t, 1, addedFired)
}

func TestReleaseAllRearms(t *testing.T) {
	m := New()
	n, cb := counter()
	_, err := m.Add([]string{"A", "B"}, cb)
	require.NoError(t, err)

	m.Press("A")
	m.Press("B")
	m.ReleaseAll()
	m.Press("A")
	require.Equal(t, 1, *n)
	m.Press("B")
	require.Equal(t, 2, *n)
}

func TestSourceSubscribedOnceLazily(t *testing.T) {
	src := &fakeSource{}
	m := New(WithSource(src))
	require.Equal(t, 0, src.subscribes)

	_, err := m.Add(nil, func() {})
	require.Error(t, err)
	require.Equal(t, 0, src.subscribes)

	n, cb := counter()
	id, err := m.AddKey("A", cb)
	require.NoError(t, err)
	_, err = m.AddKey("B", cb)
	require.NoError(t, err)
	require.Equal(t, 1, src.subscribes)

	src.handler.Press("A")
	require.Equal(t, 1, *n)

	m.Clear()
	require.False(t, m.Remove(id))
	_, err = m.AddKey("C", cb)
	require.NoError(t, err)
	require.Equal(t, 1, src.subscribes)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	require.Equal(t, 1, src.closes)

	_, err = m.AddKey("D", cb)
	require.ErrorIs(t, err, ErrClosed)
}

func TestSubscribeFailureLeavesNoState(t *testing.T) {
	boom := errors.New("no input device")
	src := &fakeSource{err: boom}
	m := New(WithSource(src))

	id, err := m.AddKey("A", func() {})
	require.ErrorIs(t, err, boom)
	require.Equal(t, InvalidID, id)
	require.Equal(t, 0, m.Len())

	src.err = nil
	id, err = m.AddKey("A", func() {})
	require.NoError(t, err)
	require.Equal(t, ID(1), id)
}
