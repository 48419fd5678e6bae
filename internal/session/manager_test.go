package session

import (
	"context"
	"testing"
	"time"

	"github.com/railzwaylabs/plexsource/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManagerGetAndDiscard(t *testing.T) {
	m := NewManager(Deps{
		Authorizer: &scriptedAuthorizer{},
		Discovery:  &recordingDiscoverer{},
		Flows:      &fakeFlows{},
		Sources:    &mockSources{},
		Clock:      clock.NewFake(time.Now()),
		Log:        zap.NewNop(),
	}, 0)
	m.newID = func() (string, error) { return "cid", nil }
	defer m.Close()

	s, err := m.Open(context.Background(), "", nil)
	require.NoError(t, err)

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Discard(s.ID()))
	assert.ErrorIs(t, m.Discard(s.ID()), ErrSessionNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestManagerSweepExpiresIdleSessions(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	m := NewManager(Deps{
		Authorizer: &scriptedAuthorizer{},
		Discovery:  &recordingDiscoverer{},
		Flows:      &fakeFlows{},
		Sources:    &mockSources{},
		Clock:      clk,
		Log:        zap.NewNop(),
	}, 10*time.Minute)
	m.newID = func() (string, error) { return "cid", nil }
	defer m.Close()

	stale, err := m.Open(context.Background(), "", nil)
	require.NoError(t, err)

	clk.Set(time.Date(2026, 3, 1, 12, 8, 0, 0, time.UTC))
	fresh, err := m.Open(context.Background(), "", nil)
	require.NoError(t, err)

	clk.Set(time.Date(2026, 3, 1, 12, 12, 0, 0, time.UTC))
	assert.Equal(t, 1, m.Sweep(context.Background()))

	_, err = m.Get(stale.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(fresh.ID())
	assert.NoError(t, err)
}

func TestManagerCloseDiscardsAll(t *testing.T) {
	m := NewManager(Deps{
		Authorizer: &scriptedAuthorizer{},
		Discovery:  &recordingDiscoverer{},
		Flows:      &fakeFlows{},
		Sources:    &mockSources{},
		Clock:      clock.NewFake(time.Now()),
		Log:        zap.NewNop(),
	}, 0)
	m.newID = func() (string, error) { return "cid", nil }

	a, err := m.Open(context.Background(), "", nil)
	require.NoError(t, err)
	_, err = m.Open(context.Background(), "", nil)
	require.NoError(t, err)

	m.Close()
	assert.Equal(t, 0, m.Len())
	_, err = a.Authorize(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}
