package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("POST "+RouteMessage, ChainMiddleware(s.MessageHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
