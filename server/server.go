// Package server hosts the loopback HTTP endpoint the identity provider
// redirects back to, plus a small status route for local collaborators.
package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/rulehub/rulehub-client/authsession"
	"github.com/rulehub/rulehub-client/authsession/sessionstore"
	"github.com/rulehub/rulehub-client/internal/config"
)

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config config.Config
	auth   *authsession.Manager
	store  sessionstore.Store

	// callbackLock serialises nonce compare-and-clear so a second callback
	// can never observe a not-yet-consumed nonce.
	callbackLock sync.Mutex
}

func New(config config.Config, auth *authsession.Manager, store sessionstore.Store) (*Server, error) {
	if auth == nil {
		return nil, fmt.Errorf("[Server New] auth manager is required")
	}
	if store == nil {
		return nil, fmt.Errorf("[Server New] store is required")
	}

	s := &Server{
		mux:    http.NewServeMux(),
		config: config,
		auth:   auth,
		store:  store,
	}
	s.env = config.GetEnv()

	s.initRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}
