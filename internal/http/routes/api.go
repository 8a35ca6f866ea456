package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/xui-console/internal/auth"
	"github.com/briangreenhill/xui-console/internal/db"
	appmw "github.com/briangreenhill/xui-console/internal/http/middleware"
)

// handleAuthCheck always answers 200; a missing or stale session is simply
// not authenticated.
func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := appmw.AdminID(r)
	if !ok {
		appmw.WriteJSON(w, http.StatusOK, auth.Status{Authenticated: false})
		return
	}

	user, err := s.Auth.GetUser(r.Context(), id)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			hlog.FromRequest(r).Error().Err(err).Msg("auth check lookup failed")
		}
		appmw.WriteJSON(w, http.StatusOK, auth.Status{Authenticated: false})
		return
	}

	appmw.WriteJSON(w, http.StatusOK, auth.Status{Authenticated: true, User: user})
}

func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		appmw.WriteJSON(w, http.StatusBadRequest, appmw.ErrorBody{Message: "invalid request body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		appmw.WriteJSON(w, http.StatusBadRequest, appmw.ErrorBody{Message: "username and password are required"})
		return
	}

	resp, err := s.Auth.Login(r.Context(), req)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("login failed")
		appmw.WriteJSON(w, http.StatusInternalServerError, appmw.ErrorBody{Message: "login failed"})
		return
	}
	if !resp.Success {
		hlog.FromRequest(r).Info().Str("username", req.Username).Msg("rejected login")
		appmw.WriteJSON(w, http.StatusUnauthorized, resp)
		return
	}

	if err := s.Sess.RenewToken(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("renew session token failed")
		appmw.WriteJSON(w, http.StatusInternalServerError, appmw.ErrorBody{Message: "login failed"})
		return
	}
	s.Sess.Put(r.Context(), sessAdminID, resp.User.ID.String())
	s.Sess.Put(r.Context(), sessUsername, resp.User.Username)

	appmw.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Sess.Destroy(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("destroy session failed")
		appmw.WriteJSON(w, http.StatusInternalServerError, appmw.ErrorBody{Message: "logout failed"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := appmw.AdminID(r)
	user, err := s.Auth.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			appmw.WriteJSON(w, http.StatusUnauthorized, appmw.ErrorBody{Message: "unauthorized"})
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("load admin failed")
		appmw.WriteJSON(w, http.StatusInternalServerError, appmw.ErrorBody{Message: "could not load user"})
		return
	}
	appmw.WriteJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		appmw.WriteJSON(w, http.StatusBadRequest, appmw.ErrorBody{Message: "invalid request body"})
		return
	}

	id, _ := appmw.AdminID(r)
	err := s.Auth.ChangePassword(r.Context(), id, req.OldPassword, req.NewPassword)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, auth.ErrInvalidOldPassword), errors.Is(err, auth.ErrWeakPassword):
		appmw.WriteJSON(w, http.StatusBadRequest, appmw.ErrorBody{Message: err.Error()})
	case errors.Is(err, db.ErrNotFound):
		appmw.WriteJSON(w, http.StatusUnauthorized, appmw.ErrorBody{Message: "unauthorized"})
	default:
		hlog.FromRequest(r).Error().Err(err).Str("admin_id", id.String()).Msg("change password failed")
		appmw.WriteJSON(w, http.StatusInternalServerError, appmw.ErrorBody{Message: "could not change password"})
	}
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.Nodes.ListNodes(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list nodes failed")
		appmw.WriteJSON(w, http.StatusInternalServerError, appmw.ErrorBody{Message: "could not load nodes"})
		return
	}
	if nodes == nil {
		nodes = []db.Node{}
	}
	appmw.WriteJSON(w, http.StatusOK, nodes)
}

