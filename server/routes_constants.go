package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteHome     = "/"
	RouteLogin    = "/login"
	RouteCallback = "/auth/callback"
	RouteLogout   = "/auth/logout"
	RouteMe       = "/me"
)
