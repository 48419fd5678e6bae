package presenter

import (
	"context"
	"sync"

	"github.com/railzwaylabs/plexsource/internal/plex/domain"
)

// Remote hands the approval URL to a remote front-end which opens the
// window itself and reports its closure through Abandon.
type Remote struct {
	mu     sync.Mutex
	url    string
	spec   domain.WindowSpec
	window *window
}

func NewRemote() *Remote {
	return &Remote{}
}

func (r *Remote) Present(_ context.Context, url string, spec domain.WindowSpec) (domain.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.window != nil {
		_ = r.window.Close()
	}
	r.url = url
	r.spec = spec
	r.window = newWindow()
	return r.window, nil
}

// Pending returns the URL and size of the open window, if any.
func (r *Remote) Pending() (string, domain.WindowSpec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.window == nil {
		return "", domain.WindowSpec{}, false
	}
	select {
	case <-r.window.Closed():
		return "", domain.WindowSpec{}, false
	default:
		return r.url, r.spec, true
	}
}

// Abandon reports that the user closed the window. It returns false when no
// window was open.
func (r *Remote) Abandon() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.window == nil {
		return false
	}
	select {
	case <-r.window.Closed():
		return false
	default:
	}
	_ = r.window.Close()
	return true
}
