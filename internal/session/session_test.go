package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/railzwaylabs/plexsource/internal/clock"
	"github.com/railzwaylabs/plexsource/internal/config"
	flowdomain "github.com/railzwaylabs/plexsource/internal/flow/domain"
	plexdomain "github.com/railzwaylabs/plexsource/internal/plex/domain"
	"github.com/railzwaylabs/plexsource/internal/plex/presenter"
	plexservice "github.com/railzwaylabs/plexsource/internal/plex/service"
	sourcedomain "github.com/railzwaylabs/plexsource/internal/source/domain"
	sourceservice "github.com/railzwaylabs/plexsource/internal/source/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	mu        sync.Mutex
	approveAt int
	checks    int
	resources map[string][]plexdomain.Resource
	lookups   []string
}

func (p *fakeProvider) CreatePin(_ context.Context, clientID string) (plexdomain.Pin, error) {
	return plexdomain.Pin{ID: 1, Code: "code-" + clientID}, nil
}

func (p *fakeProvider) CheckPin(context.Context, string, int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks++
	if p.approveAt > 0 && p.checks >= p.approveAt {
		return "token-1", nil
	}
	return "", nil
}

func (p *fakeProvider) Resources(_ context.Context, _ string, token string) ([]plexdomain.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups = append(p.lookups, token)
	return p.resources[token], nil
}

func (p *fakeProvider) AuthorizationURL(clientID string, pin plexdomain.Pin) string {
	return "https://app.plex.tv/auth#?code=" + pin.Code
}

func (p *fakeProvider) checkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checks
}

func (p *fakeProvider) lookupTokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lookups...)
}

type fakeFlows struct {
	catalogs map[flowdomain.Designation][]flowdomain.Flow
	err      error
}

func (f *fakeFlows) List(_ context.Context, d flowdomain.Designation) ([]flowdomain.Flow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.catalogs[d], nil
}

type mockSources struct {
	mock.Mock
}

func (m *mockSources) Get(ctx context.Context, slug string) (*sourcedomain.Source, error) {
	args := m.Called(ctx, slug)
	src, _ := args.Get(0).(*sourcedomain.Source)
	return src, args.Error(1)
}

func (m *mockSources) Save(ctx context.Context, persistedSlug string, src sourcedomain.Source, token string) (*sourceservice.SaveResult, error) {
	args := m.Called(ctx, persistedSlug, src, token)
	res, _ := args.Get(0).(*sourceservice.SaveResult)
	return res, args.Error(1)
}

type harness struct {
	provider *fakeProvider
	sources  *mockSources
	manager  *Manager
}

func newHarness(t *testing.T, plex config.PlexConfig, clk clock.Clock) *harness {
	t.Helper()
	provider := &fakeProvider{resources: map[string][]plexdomain.Resource{
		"token-1": {
			{ClientIdentifier: "A", Name: "Alpha", Provides: "server"},
			{ClientIdentifier: "B", Name: "Beta", Provides: "server"},
			{ClientIdentifier: "C", Name: "Gamma", Provides: "server"},
			{ClientIdentifier: "P", Name: "Phone", Provides: "player"},
		},
	}}
	if plex.PollInterval == 0 {
		plex.PollInterval = time.Millisecond
	}
	log := zap.NewNop()
	sources := &mockSources{}

	m := NewManager(Deps{
		Authorizer: plexservice.NewAuthorizer(plexservice.AuthorizerParams{
			Config: config.Config{Plex: plex}, Provider: provider, Clock: clk, Log: log,
		}),
		Discovery: plexservice.NewDiscovery(plexservice.DiscoveryParams{Provider: provider, Log: log}),
		Flows: &fakeFlows{catalogs: map[flowdomain.Designation][]flowdomain.Flow{
			flowdomain.DesignationAuthentication: authFlows,
			flowdomain.DesignationEnrollment:     enrollFlows,
		}},
		Sources: sources,
		Clock:   clk,
		Log:     log,
	}, 0)
	m.newID = func() (string, error) { return "generated-client-id", nil }
	t.Cleanup(m.Close)

	return &harness{provider: provider, sources: sources, manager: m}
}

func waitIdle(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestOpenNewSessionLoadsReferences(t *testing.T) {
	h := newHarness(t, config.PlexConfig{}, clock.NewFake(time.Now()))

	s, err := h.manager.Open(context.Background(), "", nil)
	require.NoError(t, err)
	waitIdle(t, s)

	v := s.View()
	assert.False(t, v.Persisted)
	assert.Equal(t, "generated-client-id", v.Form.ClientID)
	assert.False(t, v.Flows[flowdomain.DesignationAuthentication].Loading)
	assert.Equal(t, []string{"f2"}, selected(v.Flows[flowdomain.DesignationAuthentication].Options))
	assert.Equal(t, []string{"e1"}, selected(v.Flows[flowdomain.DesignationEnrollment].Options))
	assert.Len(t, v.UserMatchingModes, 5)
}

func TestOpenExistingSessionHasNoCredential(t *testing.T) {
	h := newHarness(t, config.PlexConfig{}, clock.NewFake(time.Now()))
	src := persistedSource()
	h.sources.On("Get", mock.Anything, "plex").Return(&src, nil)

	s, err := h.manager.Open(context.Background(), "plex", nil)
	require.NoError(t, err)
	waitIdle(t, s)

	v := s.View()
	assert.True(t, v.Persisted)
	assert.False(t, v.Authorized)
	assert.Empty(t, s.Credential())
	assert.Equal(t, "stored-client-id", v.Form.ClientID)
	assert.Equal(t, []string{"f1"}, selected(v.Flows[flowdomain.DesignationAuthentication].Options))
}

func TestOpenMissingSource(t *testing.T) {
	h := newHarness(t, config.PlexConfig{}, clock.NewFake(time.Now()))
	h.sources.On("Get", mock.Anything, "missing").Return(nil, sourcedomain.ErrNotFound)

	_, err := h.manager.Open(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, sourcedomain.ErrNotFound)
	assert.Equal(t, 0, h.manager.Len())
}

func TestAuthorizeDiscoversAndMarksSelection(t *testing.T) {
	h := newHarness(t, config.PlexConfig{MaxAttempts: 10}, clock.NewFake(time.Now()))
	h.provider.approveAt = 2
	src := persistedSource()
	h.sources.On("Get", mock.Anything, "plex").Return(&src, nil)

	s, err := h.manager.Open(context.Background(), "plex", nil)
	require.NoError(t, err)

	auth, err := s.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, plexdomain.StatePending, auth.State)
	assert.Equal(t, "https://app.plex.tv/auth#?code=code-stored-client-id", auth.AuthorizationURL)
	waitIdle(t, s)

	v := s.View()
	assert.True(t, v.Authorized)
	assert.Equal(t, plexdomain.StateCompleted, v.Authorization.State)
	require.Len(t, v.Resources, 3)
	assert.Equal(t, []string{"B"}, SelectedResources(v.Resources))
	assert.Equal(t, "token-1", s.Credential())
}

func TestAuthorizeTimeoutStopsPollingWithoutDiscovery(t *testing.T) {
	h := newHarness(t, config.PlexConfig{MaxAttempts: 3}, clock.NewFake(time.Now()))

	s, err := h.manager.Open(context.Background(), "", nil)
	require.NoError(t, err)
	_, err = s.Authorize(context.Background())
	require.NoError(t, err)
	waitIdle(t, s)

	v := s.View()
	assert.Equal(t, plexdomain.StateAbandoned, v.Authorization.State)
	assert.Contains(t, v.Authorization.Error, plexdomain.ErrAuthorizationTimedOut.Error())
	assert.Equal(t, 3, h.provider.checkCount())
	assert.Empty(t, h.provider.lookupTokens())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, h.provider.checkCount())
}

func TestCloseWindowStopsPollingWithoutDiscovery(t *testing.T) {
	h := newHarness(t, config.PlexConfig{PollInterval: 2 * time.Millisecond, Timeout: time.Minute}, clock.SystemClock{})

	s, err := h.manager.Open(context.Background(), "", nil)
	require.NoError(t, err)
	_, err = s.Authorize(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.provider.checkCount() >= 2 }, 2*time.Second, time.Millisecond)
	v := s.View()
	require.NotNil(t, v.Authorization.Window)
	assert.Equal(t, "plex auth", v.Authorization.Window.Title)

	assert.True(t, s.CloseWindow())
	waitIdle(t, s)

	v = s.View()
	assert.Equal(t, plexdomain.StateAbandoned, v.Authorization.State)
	assert.Contains(t, v.Authorization.Error, plexdomain.ErrAuthorizationCancelled.Error())
	assert.False(t, v.Authorized)
	assert.Empty(t, h.provider.lookupTokens())

	checks := h.provider.checkCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, checks, h.provider.checkCount())
}

func TestDiscardStopsPollingAndClosesWindow(t *testing.T) {
	h := newHarness(t, config.PlexConfig{PollInterval: 2 * time.Millisecond, Timeout: time.Minute}, clock.SystemClock{})
	remote := presenter.NewRemote()

	s, err := h.manager.Open(context.Background(), "", remote)
	require.NoError(t, err)
	_, err = s.Authorize(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.provider.checkCount() >= 1 }, 2*time.Second, time.Millisecond)

	require.NoError(t, h.manager.Discard(s.ID()))

	_, _, open := remote.Pending()
	assert.False(t, open)
	checks := h.provider.checkCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, checks, h.provider.checkCount())

	_, err = h.manager.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.Authorize(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

type scriptedAuthorizer struct {
	mu       sync.Mutex
	begins   int
	beginErr func(n int) error
	complete func(ctx context.Context, n int) (string, error)
}

func (a *scriptedAuthorizer) Begin(_ context.Context, clientID string) (*plexdomain.AuthorizationSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.begins++
	if a.beginErr != nil {
		if err := a.beginErr(a.begins); err != nil {
			return nil, err
		}
	}
	return &plexdomain.AuthorizationSession{ClientID: clientID, Pin: plexdomain.Pin{ID: int64(a.begins)}, State: plexdomain.StatePending}, nil
}

func (a *scriptedAuthorizer) Complete(ctx context.Context, sess *plexdomain.AuthorizationSession, _ plexdomain.Presenter) (string, error) {
	return a.complete(ctx, int(sess.Pin.ID))
}

type recordingDiscoverer struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (d *recordingDiscoverer) fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *recordingDiscoverer) ListResources(_ context.Context, _ string, token string) ([]plexdomain.Resource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens = append(d.tokens, token)
	if d.err != nil {
		return nil, d.err
	}
	return []plexdomain.Resource{{ClientIdentifier: "srv-" + token, Provides: "server"}}, nil
}

func TestLaterAuthorizationWins(t *testing.T) {
	authorizer := &scriptedAuthorizer{complete: func(ctx context.Context, n int) (string, error) {
		if n == 1 {
			<-ctx.Done()
			return "", errors.Join(plexdomain.ErrAuthorizationCancelled, ctx.Err())
		}
		return "token-2", nil
	}}
	discovery := &recordingDiscoverer{}
	m := NewManager(Deps{
		Authorizer: authorizer,
		Discovery:  discovery,
		Flows:      &fakeFlows{},
		Sources:    &mockSources{},
		Clock:      clock.NewFake(time.Now()),
		Log:        zap.NewNop(),
	}, 0)
	m.newID = func() (string, error) { return "cid", nil }
	defer m.Close()

	s, err := m.Open(context.Background(), "", nil)
	require.NoError(t, err)

	_, err = s.Authorize(context.Background())
	require.NoError(t, err)
	_, err = s.Authorize(context.Background())
	require.NoError(t, err)
	waitIdle(t, s)

	v := s.View()
	assert.Equal(t, "token-2", s.Credential())
	assert.Equal(t, plexdomain.StateCompleted, v.Authorization.State)
	assert.Empty(t, v.Authorization.Error)
	assert.Equal(t, []string{"token-2"}, discovery.tokens)
	require.Len(t, v.Resources, 1)
	assert.Equal(t, "srv-token-2", v.Resources[0].ID)
}

func TestFailedReauthorizationAbandonsPrevious(t *testing.T) {
	authorizer := &scriptedAuthorizer{
		beginErr: func(n int) error {
			if n == 2 {
				return plexdomain.ErrProviderUnavailable
			}
			return nil
		},
		complete: func(ctx context.Context, n int) (string, error) {
			<-ctx.Done()
			return "", errors.Join(plexdomain.ErrAuthorizationCancelled, ctx.Err())
		},
	}
	m := NewManager(Deps{
		Authorizer: authorizer,
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

	_, err = s.Authorize(context.Background())
	require.NoError(t, err)
	_, err = s.Authorize(context.Background())
	require.ErrorIs(t, err, plexdomain.ErrProviderUnavailable)
	waitIdle(t, s)

	v := s.View()
	require.NotNil(t, v.Authorization)
	assert.Equal(t, plexdomain.StateAbandoned, v.Authorization.State)
	assert.Contains(t, v.Authorization.Error, plexdomain.ErrProviderUnavailable.Error())

	_, err = s.Submit(context.Background(), nil)
	assert.NotErrorIs(t, err, ErrAuthorizationInProgress)
}

func TestFailedRediscoveryKeepsResources(t *testing.T) {
	discovery := &recordingDiscoverer{}
	m := NewManager(Deps{
		Authorizer: &scriptedAuthorizer{complete: func(context.Context, int) (string, error) { return "token-1", nil }},
		Discovery:  discovery,
		Flows:      &fakeFlows{},
		Sources:    &mockSources{},
		Clock:      clock.NewFake(time.Now()),
		Log:        zap.NewNop(),
	}, 0)
	m.newID = func() (string, error) { return "cid", nil }
	defer m.Close()

	s, err := m.Open(context.Background(), "", nil)
	require.NoError(t, err)
	_, err = s.Authorize(context.Background())
	require.NoError(t, err)
	waitIdle(t, s)
	require.Len(t, s.View().Resources, 1)

	discovery.fail(plexdomain.ErrDiscoveryFailed)
	require.ErrorIs(t, s.Discover(context.Background()), plexdomain.ErrDiscoveryFailed)

	v := s.View()
	require.Len(t, v.Resources, 1)
	assert.Equal(t, "srv-token-1", v.Resources[0].ID)
	assert.NotEmpty(t, v.DiscoveryError)
	assert.Equal(t, "token-1", s.Credential())
}

func TestSubmitReplacesSelectionAndSendsCredential(t *testing.T) {
	h := newHarness(t, config.PlexConfig{MaxAttempts: 10}, clock.NewFake(time.Now()))
	h.provider.approveAt = 1
	src := persistedSource()
	h.sources.On("Get", mock.Anything, "plex").Return(&src, nil)

	s, err := h.manager.Open(context.Background(), "plex", nil)
	require.NoError(t, err)
	_, err = s.Authorize(context.Background())
	require.NoError(t, err)
	waitIdle(t, s)

	stored := persistedSource()
	stored.AllowedServers = []string{"A", "C"}
	h.sources.On("Save", mock.Anything, "plex", mock.MatchedBy(func(p sourcedomain.Source) bool {
		return assert.ObjectsAreEqual([]string{"A", "C"}, p.AllowedServers)
	}), "token-1").Return(&sourceservice.SaveResult{Source: &stored, Message: sourceservice.MessageUpdated}, nil)

	res, err := s.Submit(context.Background(), []string{"A", "C"})
	require.NoError(t, err)
	assert.Equal(t, sourceservice.MessageUpdated, res.Message)
	h.sources.AssertExpectations(t)

	assert.Equal(t, []string{"A", "C"}, SelectedResources(s.View().Resources))
}

func TestSubmitDefaultsToRenderedSelection(t *testing.T) {
	h := newHarness(t, config.PlexConfig{MaxAttempts: 10}, clock.NewFake(time.Now()))
	h.provider.approveAt = 1
	src := persistedSource()
	h.sources.On("Get", mock.Anything, "plex").Return(&src, nil)

	s, err := h.manager.Open(context.Background(), "plex", nil)
	require.NoError(t, err)
	_, err = s.Authorize(context.Background())
	require.NoError(t, err)
	waitIdle(t, s)

	h.sources.On("Save", mock.Anything, "plex", mock.MatchedBy(func(p sourcedomain.Source) bool {
		return assert.ObjectsAreEqual([]string{"B"}, p.AllowedServers)
	}), "token-1").Return(&sourceservice.SaveResult{Source: &src}, nil)

	_, err = s.Submit(context.Background(), nil)
	require.NoError(t, err)
	h.sources.AssertExpectations(t)
}

func TestSubmitRejectedWithoutNetworkCall(t *testing.T) {
	h := newHarness(t, config.PlexConfig{}, clock.NewFake(time.Now()))

	s, err := h.manager.Open(context.Background(), "", nil)
	require.NoError(t, err)
	waitIdle(t, s)

	name, slug := "Plex", "plex"
	mode := sourcedomain.UserMatchingIdentifier
	_, err = s.Edit(Edit{Name: &name, Slug: &slug, UserMatchingMode: &mode})
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), []string{})
	var verr *sourcedomain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "allowed_servers")
	h.sources.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	empty := ""
	_, err = s.Edit(Edit{Name: &empty})
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), []string{"A"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	h.sources.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitCreatesThenUpdates(t *testing.T) {
	h := newHarness(t, config.PlexConfig{}, clock.NewFake(time.Now()))

	s, err := h.manager.Open(context.Background(), "", nil)
	require.NoError(t, err)
	waitIdle(t, s)

	name, slug := "Plex", "plex"
	mode := sourcedomain.UserMatchingIdentifier
	_, err = s.Edit(Edit{Name: &name, Slug: &slug, UserMatchingMode: &mode})
	require.NoError(t, err)

	stored := sourcedomain.Source{
		PK: "pk-9", Slug: "plex", Name: "Plex", ClientID: "generated-client-id",
		UserMatchingMode: mode, AllowedServers: []string{"A"}, AuthenticationFlow: "f2", EnrollmentFlow: "e1",
	}
	h.sources.On("Save", mock.Anything, "", mock.MatchedBy(func(p sourcedomain.Source) bool {
		return p.ClientID == "generated-client-id" && p.AuthenticationFlow == "f2" && p.EnrollmentFlow == "e1"
	}), "").Return(&sourceservice.SaveResult{Source: &stored, Created: true, Message: sourceservice.MessageCreated}, nil).Once()

	res, err := s.Submit(context.Background(), []string{"A"})
	require.NoError(t, err)
	assert.True(t, res.Created)

	v := s.View()
	assert.True(t, v.Persisted)
	assert.Equal(t, "plex", v.Form.PersistedSlug)

	h.sources.On("Save", mock.Anything, "plex", mock.Anything, "").
		Return(&sourceservice.SaveResult{Source: &stored, Message: sourceservice.MessageUpdated}, nil).Once()
	res, err = s.Submit(context.Background(), []string{"A"})
	require.NoError(t, err)
	assert.False(t, res.Created)
}

func TestEditRejectsClientIDOnUpdate(t *testing.T) {
	h := newHarness(t, config.PlexConfig{}, clock.NewFake(time.Now()))
	src := persistedSource()
	h.sources.On("Get", mock.Anything, "plex").Return(&src, nil)

	s, err := h.manager.Open(context.Background(), "plex", nil)
	require.NoError(t, err)

	other := "new-id"
	_, err = s.Edit(Edit{ClientID: &other})
	assert.ErrorIs(t, err, ErrReadOnlyField)
	assert.Equal(t, "stored-client-id", s.View().Form.ClientID)
}

func TestFailedCatalogStaysLoading(t *testing.T) {
	m := NewManager(Deps{
		Authorizer: &scriptedAuthorizer{},
		Discovery:  &recordingDiscoverer{},
		Flows:      &fakeFlows{err: flowdomain.ErrReferenceLoadFailed},
		Sources:    &mockSources{},
		Clock:      clock.NewFake(time.Now()),
		Log:        zap.NewNop(),
	}, 0)
	m.newID = func() (string, error) { return "cid", nil }
	defer m.Close()

	s, err := m.Open(context.Background(), "", nil)
	require.NoError(t, err)
	waitIdle(t, s)

	v := s.View()
	for _, d := range flowdomain.Designations {
		assert.True(t, v.Flows[d].Loading)
		assert.NotEmpty(t, v.Flows[d].Error)
		assert.Empty(t, v.Flows[d].Options)
	}

	err = s.LoadReferences(context.Background())
	assert.ErrorIs(t, err, flowdomain.ErrReferenceLoadFailed)
}
