package server

import (
	"net/http"
	"strconv"

	"github.com/jrsteele09/oamanage-auth/auth"
	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/jrsteele09/oamanage-auth/internal/utils"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/rs/zerolog/log"
)

// GetProfileHandler returns the stored identity of the caller.
func (s *Server) GetProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := IdentityFromContext(r.Context())
		s.writeIdentity(w, r, caller.ID)
	}
}

// UpdateProfileHandler applies nickname and email changes to the caller's identity.
func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		caller, _ := IdentityFromContext(ctx)

		var update auth.ProfileUpdate
		if err := decodeBody(w, r, &update); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Request body must be JSON.")
			return
		}
		if err := update.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}

		if _, err := s.deps.Users.FindByID(ctx, caller.ID); err != nil {
			s.writeLookupError(w, err, caller.ID)
			return
		}

		updated, err := s.deps.Users.Upsert(ctx, &users.Identity{
			ID:       caller.ID,
			Nickname: utils.Value(update.Nickname),
			Email:    update.Email,
		})
		if err != nil {
			log.Err(err).Int64("identity_id", caller.ID).Msg("profile update failed")
			writeError(w, http.StatusInternalServerError, codeInternal, "Profile update failed.")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": updated})
	}
}

// AdminIdentityHandler returns any identity by id.
func (s *Server) AdminIdentityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Identity id must be a positive number.")
			return
		}
		s.writeIdentity(w, r, id)
	}
}

func (s *Server) writeIdentity(w http.ResponseWriter, r *http.Request, id int64) {
	identity, err := s.deps.Users.FindByID(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": identity})
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error, id int64) {
	if errors.Is(err, errors.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "User not found.")
		return
	}
	log.Err(err).Int64("identity_id", id).Msg("identity lookup failed")
	writeError(w, http.StatusInternalServerError, codeInternal, "Identity lookup failed.")
}
