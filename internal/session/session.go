package session

import (
	"context"
	"sync"
	"time"

	"github.com/railzwaylabs/plexsource/internal/clock"
	flowdomain "github.com/railzwaylabs/plexsource/internal/flow/domain"
	plexdomain "github.com/railzwaylabs/plexsource/internal/plex/domain"
	"github.com/railzwaylabs/plexsource/internal/plex/presenter"
	sourcedomain "github.com/railzwaylabs/plexsource/internal/source/domain"
	sourceservice "github.com/railzwaylabs/plexsource/internal/source/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Authorizer interface {
	Begin(ctx context.Context, clientID string) (*plexdomain.AuthorizationSession, error)
	Complete(ctx context.Context, sess *plexdomain.AuthorizationSession, p plexdomain.Presenter) (string, error)
}

type Discoverer interface {
	ListResources(ctx context.Context, clientID, credential string) ([]plexdomain.Resource, error)
}

type FlowLoader interface {
	List(ctx context.Context, designation flowdomain.Designation) ([]flowdomain.Flow, error)
}

type SourceStore interface {
	Get(ctx context.Context, slug string) (*sourcedomain.Source, error)
	Save(ctx context.Context, persistedSlug string, src sourcedomain.Source, token string) (*sourceservice.SaveResult, error)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Authorizer Authorizer
	Discovery  Discoverer
	Flows      FlowLoader
	Sources    SourceStore
	Clock      clock.Clock
	Log        *zap.Logger
}

type catalog struct {
	flows  []flowdomain.Flow
	loaded bool
	err    error
}

// Session is one form session. It owns the authorization handshake, the
// credential and the discovered resources; none of them outlive it.
type Session struct {
	id        string
	deps      Deps
	presenter plexdomain.Presenter

	root   context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	form         Form
	auth         *plexdomain.AuthorizationSession
	authErr      error
	credential   string
	resources    []plexdomain.Resource
	discovered   bool
	discoveryErr error
	catalogs     map[flowdomain.Designation]*catalog
	generation   uint64
	chainCancel  context.CancelFunc
	lastActive   time.Time

	inflight int
	idle     chan struct{}
}

func newSession(id string, form Form, p plexdomain.Presenter, d Deps) *Session {
	root, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		deps:       d,
		presenter:  p,
		root:       root,
		cancel:     cancel,
		form:       form,
		catalogs:   make(map[flowdomain.Designation]*catalog, len(flowdomain.Designations)),
		lastActive: d.Clock.Now(root),
	}
	for _, des := range flowdomain.Designations {
		s.catalogs[des] = &catalog{}
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Authorize starts a new handshake and returns once the pin exists. Polling
// and discovery continue in the background. A running handshake is
// superseded.
func (s *Session) Authorize(ctx context.Context) (plexdomain.AuthorizationSession, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return plexdomain.AuthorizationSession{}, ErrSessionClosed
	}
	if s.chainCancel != nil {
		s.chainCancel()
	}
	if s.auth != nil && s.auth.State == plexdomain.StatePending {
		s.auth.State = plexdomain.StateAbandoned
	}
	s.generation++
	gen := s.generation
	clientID := s.form.ClientID
	chainCtx, cancel := context.WithCancel(s.root)
	s.chainCancel = cancel
	s.touch()
	s.mu.Unlock()

	auth, err := s.deps.Authorizer.Begin(ctx, clientID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		cancel()
		return plexdomain.AuthorizationSession{}, ErrSessionClosed
	}
	if gen != s.generation {
		cancel()
		return plexdomain.AuthorizationSession{}, ErrAuthorizationInProgress
	}
	if err != nil {
		cancel()
		s.authErr = err
		return plexdomain.AuthorizationSession{}, err
	}

	s.auth = auth
	s.authErr = nil
	s.startLocked()
	go s.runChain(chainCtx, gen, *auth)
	return *auth, nil
}

// runChain waits for the credential and then discovers resources. Results
// of a superseded generation are dropped.
func (s *Session) runChain(ctx context.Context, gen uint64, auth plexdomain.AuthorizationSession) {
	defer s.finish()
	log := s.deps.Log.With(zap.String("session_id", s.id), zap.Int64("pin_id", auth.Pin.ID))

	token, err := s.deps.Authorizer.Complete(ctx, &auth, s.presenter)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.auth.State = plexdomain.StateAbandoned
		s.authErr = err
		s.mu.Unlock()
		log.Info("authorization ended without credential", zap.Error(err))
		return
	}
	s.auth.State = plexdomain.StateCompleted
	s.authErr = nil
	s.credential = token
	s.resources = nil
	s.discovered = false
	s.discoveryErr = nil
	clientID := s.form.ClientID
	s.mu.Unlock()

	resources, err := s.deps.Discovery.ListResources(ctx, clientID, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.discovered = true
	s.resources = resources
	s.discoveryErr = err
	if err != nil {
		log.Warn("resource discovery failed", zap.Error(err))
	}
}

// CloseWindow reports that the user closed the approval window.
func (s *Session) CloseWindow() bool {
	s.mu.Lock()
	s.touch()
	s.mu.Unlock()

	if r, ok := s.presenter.(*presenter.Remote); ok {
		return r.Abandon()
	}
	return false
}

// Discover re-runs resource discovery with the current credential.
func (s *Session) Discover(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	gen := s.generation
	token := s.credential
	clientID := s.form.ClientID
	s.touch()
	s.mu.Unlock()

	resources, err := s.deps.Discovery.ListResources(ctx, clientID, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || token == "" {
		return err
	}
	s.discovered = true
	s.discoveryErr = err
	if err == nil {
		s.resources = resources
	}
	return err
}

// LoadReferences loads both flow catalogs concurrently. A failed catalog
// keeps its previous state and the error is recorded for the view.
func (s *Session) LoadReferences(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.startLocked()
	s.mu.Unlock()
	defer s.finish()

	return s.loadReferences(ctx)
}

func (s *Session) loadReferences(ctx context.Context) error {
	var g errgroup.Group
	for _, des := range flowdomain.Designations {
		g.Go(func() error {
			flows, err := s.deps.Flows.List(ctx, des)

			s.mu.Lock()
			defer s.mu.Unlock()
			c := s.catalogs[des]
			c.err = err
			if err == nil {
				c.flows = flows
				c.loaded = true
			}
			return err
		})
	}
	return g.Wait()
}

func (s *Session) loadReferencesAsync() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.startLocked()
	s.mu.Unlock()

	go func() {
		defer s.finish()
		if err := s.loadReferences(s.root); err != nil {
			s.deps.Log.Warn("flow catalogs not loaded", zap.String("session_id", s.id), zap.Error(err))
		}
	}()
}

// Edit applies a partial edit to the form.
func (s *Session) Edit(e Edit) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrSessionClosed
	}
	s.touch()

	next, err := s.form.Apply(e)
	if err != nil {
		return View{}, err
	}
	s.form = next
	return s.viewLocked(), nil
}

// Submit sends the form. A nil selection submits the rendered resource
// selection. The payload is validated before anything is sent.
func (s *Session) Submit(ctx context.Context, selection []string) (*sourceservice.SaveResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.auth != nil && s.auth.State == plexdomain.StatePending {
		s.mu.Unlock()
		return nil, ErrAuthorizationInProgress
	}
	s.touch()
	if selection == nil {
		selection = s.renderedSelectionLocked()
	}
	payload := Payload(s.form, selection, s.catalogFlowsLocked())
	token := s.credential
	persistedSlug := s.form.PersistedSlug
	s.mu.Unlock()

	if err := Validate(payload); err != nil {
		return nil, err
	}

	res, err := s.deps.Sources.Save(ctx, persistedSlug, payload, token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if res.Source != nil {
		s.form = FormFromSource(*res.Source)
	}
	return res, nil
}

// Wait blocks until no background work is running.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.inflight == 0 {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Discard stops polling, closes an open approval window and waits for
// background work to end.
func (s *Session) Discard() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.credential = ""
	if s.auth != nil && s.auth.State == plexdomain.StatePending {
		s.auth.State = plexdomain.StateAbandoned
	}
	s.mu.Unlock()

	s.cancel()
	if r, ok := s.presenter.(*presenter.Remote); ok {
		r.Abandon()
	}
	_ = s.Wait(context.Background())
}

// View returns a snapshot for rendering.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Credential returns the in-memory credential, empty until authorized.
func (s *Session) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.lastActive = s.deps.Clock.Now(s.root)
}

func (s *Session) startLocked() {
	if s.inflight == 0 {
		s.idle = make(chan struct{})
	}
	s.inflight++
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 {
		close(s.idle)
	}
}

func (s *Session) renderedSelectionLocked() []string {
	if !s.discovered {
		return append([]string{}, s.form.AllowedServers...)
	}
	return SelectedResources(ResourceOptions(s.resources, s.form.AllowedServers))
}

func (s *Session) catalogFlowsLocked() map[flowdomain.Designation][]flowdomain.Flow {
	out := make(map[flowdomain.Designation][]flowdomain.Flow, len(s.catalogs))
	for des, c := range s.catalogs {
		out[des] = c.flows
	}
	return out
}
