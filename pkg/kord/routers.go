package kord

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// RouteHandler serves one plugin HTTP route.
type RouteHandler func(w http.ResponseWriter, r *http.Request)

// Routers is the plugin route table served under the configured router
// path of the webhook server. Routes are scope-bound like every other
// registration.
type Routers struct {
	mu     sync.RWMutex
	routes map[string]map[string]RouteHandler
}

func newRouters(root *Context) *Routers {
	rt := &Routers{routes: make(map[string]map[string]RouteHandler)}
	root.app.routers = rt

	// Liveness route, mirrors the webhook server being reachable.
	_ = rt.register(root, http.MethodGet, "/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "kord routers are working")
	})
	return rt
}

// register adds a route; a path can hold one handler per method.
func (rt *Routers) register(c *Context, method, path string, handler RouteHandler) error {
	method = strings.ToLower(method)

	rt.mu.Lock()
	byPath := rt.routes[method]
	if byPath == nil {
		byPath = make(map[string]RouteHandler)
		rt.routes[method] = byPath
	}
	if _, exists := byPath[path]; exists {
		rt.mu.Unlock()
		return fmt.Errorf("route %s %s already registered", method, path)
	}
	byPath[path] = handler
	rt.mu.Unlock()

	c.scope.AddDisposable(func() {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		delete(rt.routes[method], path)
	})
	return nil
}

func (rt *Routers) lookup(method, path string) (RouteHandler, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	handler, ok := rt.routes[strings.ToLower(method)][path]
	return handler, ok
}
