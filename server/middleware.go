package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/existflow/quizdesk/internal/auth"
	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/internal/tokenstore"
)

// DashboardPath is where signed-in users are sent from the public-only pages
const DashboardPath = "/dashboard"

var (
	protectedPrefixes  = []string{"/dashboard", "/questions", "/tests", "/reports", "/profile", "/logout"}
	publicOnlyPrefixes = []string{"/login", "/register", "/forgot-password", "/reset-password"}
	bypassPrefixes     = []string{"/api", "/_next/static", "/_next/image", "/favicon.ico", "/public"}
)

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// gate redirects page requests based on the accessToken cookie
func (s *Server) gate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		if hasPrefix(path, bypassPrefixes) {
			return next(c)
		}

		var token string
		if ck, err := c.Cookie(tokenstore.AccessTokenKey); err == nil {
			token = ck.Value
		}

		if hasPrefix(path, protectedPrefixes) {
			if token == "" {
				return c.Redirect(http.StatusFound, auth.Redirect{Path: auth.LoginPath, From: path}.URL())
			}
			if !s.checker.IsValid(c.Request().Context(), token) {
				logger.Debug("Gate rejected token", logger.F("path", path))
				return c.Redirect(http.StatusFound, auth.Redirect{Path: auth.LoginPath, From: path, Expired: true}.URL())
			}
			return next(c)
		}

		if token != "" && hasPrefix(path, publicOnlyPrefixes) && s.checker.IsValid(c.Request().Context(), token) {
			return c.Redirect(http.StatusFound, DashboardPath)
		}
		return next(c)
	}
}
