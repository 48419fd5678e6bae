package session

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/railzwaylabs/plexsource/internal/clock"
	"github.com/railzwaylabs/plexsource/internal/config"
	flowservice "github.com/railzwaylabs/plexsource/internal/flow/service"
	plexdomain "github.com/railzwaylabs/plexsource/internal/plex/domain"
	"github.com/railzwaylabs/plexsource/internal/plex/presenter"
	plexservice "github.com/railzwaylabs/plexsource/internal/plex/service"
	"github.com/railzwaylabs/plexsource/internal/random"
	sourceservice "github.com/railzwaylabs/plexsource/internal/source/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Config     config.Config
	Authorizer *plexservice.Authorizer
	Discovery  *plexservice.Discovery
	Flows      *flowservice.Loader
	Sources    *sourceservice.Service
	Clock      clock.Clock
	Log        *zap.Logger
}

// Manager is the registry of live form sessions.
type Manager struct {
	deps    Deps
	newID   IDGenerator
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	stop     chan struct{}
	stopOnce sync.Once
}

func New(p Params) *Manager {
	m := NewManager(Deps{
		Authorizer: p.Authorizer,
		Discovery:  p.Discovery,
		Flows:      p.Flows,
		Sources:    p.Sources,
		Clock:      p.Clock,
		Log:        p.Log.Named("session.manager"),
	}, p.Config.Session.IdleTTL)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			m.startSweeper()
			return nil
		},
		OnStop: func(context.Context) error {
			m.Close()
			return nil
		},
	})
	return m
}

// NewManager builds a manager from explicit collaborators.
func NewManager(d Deps, idleTTL time.Duration) *Manager {
	return &Manager{
		deps:     d,
		newID:    random.ClientID,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
}

// Open starts a session for the source stored under slug, or for a new
// source when slug is empty. A nil presenter hands the approval URL to a
// remote front-end. Flow catalogs start loading in the background.
func (m *Manager) Open(ctx context.Context, slug string, p plexdomain.Presenter) (*Session, error) {
	var form Form
	if slug == "" {
		f, err := NewForm(m.newID)
		if err != nil {
			return nil, err
		}
		form = f
	} else {
		src, err := m.deps.Sources.Get(ctx, slug)
		if err != nil {
			return nil, err
		}
		form = FormFromSource(*src)
	}

	if p == nil {
		p = presenter.NewRemote()
	}
	s := newSession(ulid.Make().String(), form, p, m.deps)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.deps.Log.Info("session opened", zap.String("session_id", s.id), zap.Bool("persisted", form.Persisted()))
	s.loadReferencesAsync()
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Discard ends a session and removes it from the registry.
func (m *Manager) Discard(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.Discard()
	m.deps.Log.Info("session discarded", zap.String("session_id", id))
	return nil
}

// Sweep discards sessions idle for longer than the idle TTL.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.deps.Clock.Now(ctx).Add(-m.idleTTL)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Discard()
		m.deps.Log.Info("idle session expired", zap.String("session_id", s.id))
	}
	return len(expired)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close discards every session and stops the sweeper.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Discard()
		}()
	}
	wg.Wait()
}

func (m *Manager) startSweeper() {
	if m.idleTTL <= 0 {
		return
	}
	interval := m.idleTTL / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	go func() {
		for {
			select {
			case <-m.stop:
				return
			case <-m.deps.Clock.After(interval):
				m.Sweep(context.Background())
			}
		}
	}()
}
