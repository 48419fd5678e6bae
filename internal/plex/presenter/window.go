package presenter

import "sync"

// window is a Window whose Closed channel fires once, on Close.
type window struct {
	once   sync.Once
	closed chan struct{}
}

func newWindow() *window {
	return &window{closed: make(chan struct{})}
}

func (w *window) Closed() <-chan struct{} {
	return w.closed
}

func (w *window) Close() error {
	w.once.Do(func() { close(w.closed) })
	return nil
}
