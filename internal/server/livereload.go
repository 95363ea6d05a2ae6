package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/pongopress/pongopress/internal/host"
	"github.com/pongopress/pongopress/internal/watcher"
)

// LiveReloadFunction is the host function that prints the live reload client.
const LiveReloadFunction = "livereload_script"

const liveReloadScript = `<script>(function(){var p=location.protocol==="https:"?"wss://":"ws://";` +
	`var s=new WebSocket(p+location.host+"` + LiveReloadPath + `");` +
	`s.onmessage=function(){location.reload();};})();</script>`

// reloadHub fans reload signals out to connected browsers.
type reloadHub struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newReloadHub() *reloadHub {
	return &reloadHub{subs: make(map[chan struct{}]struct{})}
}

func (h *reloadHub) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *reloadHub) unsubscribe(ch chan struct{}) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *reloadHub) clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// broadcast signals every subscriber without blocking; a subscriber that
// already has a signal pending keeps just the one.
func (h *reloadHub) broadcast() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *reloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = c.CloseNow() }()

	ctx := c.CloseRead(r.Context())
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, []byte("reload"))
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// EnableLiveReload exposes the live reload endpoint and adds the client
// script to the global functions. Call it before Handler.
func (s *Server) EnableLiveReload() {
	if s.reload != nil {
		return
	}
	s.reload = newReloadHub()
	s.site.RegisterFunction(LiveReloadFunction, func(_ *host.Request, w io.Writer, _ ...any) error {
		_, err := io.WriteString(w, liveReloadScript)
		return err
	})
	s.hooks.GlobalFunctions.Add(func(list []any) []any {
		return append(list, LiveReloadFunction)
	})
}

// WatchAndReload broadcasts a reload to connected browsers whenever w reports
// a change. It returns once ctx is done.
func (s *Server) WatchAndReload(ctx context.Context, w *watcher.Watcher) error {
	s.EnableLiveReload()
	return w.Run(ctx, func(paths []string) {
		s.logger.Info("theme changed, reloading browsers", "files", len(paths), "clients", s.reload.clients())
		s.reload.broadcast()
	})
}
