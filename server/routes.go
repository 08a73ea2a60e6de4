package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.MeHandler(), s.HTMLMiddleware(s.RequireSession())...))
}
