package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/david/tender-matcher/internal/auth"
)

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}

	resp, err := s.Auth.Signup(c.Request().Context(), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}

	resp, err := s.Auth.Login(c.Request().Context(), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Watchlist

func (s *Server) handleSaveTender(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	tenderID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid tender id")
	}
	if err := s.Store.SaveTender(c.Request().Context(), userID, tenderID); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleUnsaveTender(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	tenderID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid tender id")
	}
	if err := s.Store.UnsaveTender(c.Request().Context(), userID, tenderID); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "unsaved"})
}

func (s *Server) handleGetSavedTenders(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	tenders, err := s.Store.ListSavedTenders(c.Request().Context(), userID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, tenders)
}
