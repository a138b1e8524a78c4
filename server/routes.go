package server

const (
	RouteCallback = "/auth/callback"
	RouteStatus   = "/auth/status"
	RouteHealth   = "/healthz"
)

func (s *Server) initRoutes() {
	// The provider may deliver the redirect as GET (query params) or POST
	// (form_post response mode).
	s.RegisterRouteFunc("GET "+RouteCallback, ChainMiddleware(s.AuthCallbackHandler(), s.LoggingMiddleware, s.RecoverMiddleware))
	s.RegisterRouteFunc("POST "+RouteCallback, ChainMiddleware(s.AuthCallbackHandler(), s.LoggingMiddleware, s.RecoverMiddleware))

	s.RegisterRouteFunc("GET "+RouteStatus, ChainMiddleware(s.StatusHandler(), s.LoggingMiddleware, s.RecoverMiddleware))
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
