package presenter

import (
	"context"
	"io"

	"github.com/pkg/browser"
	"github.com/railzwaylabs/plexsource/internal/plex/domain"
)

// Browser opens the approval URL in the system browser. The opened tab is
// not observable, so the returned window only reports closure requested
// through Close.
type Browser struct {
	open func(url string) error
}

func NewBrowser() *Browser {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return &Browser{open: browser.OpenURL}
}

func (b *Browser) Present(_ context.Context, url string, _ domain.WindowSpec) (domain.Window, error) {
	if err := b.open(url); err != nil {
		return nil, err
	}
	return newWindow(), nil
}
