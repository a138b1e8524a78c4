package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/rulehub/rulehub-client/internal/errors"
)

// AuthCallbackHandler receives the provider's redirect. The state parameter
// must match the single pending nonce recorded when the login was initiated;
// anything else is rejected before the session is touched.
func (s *Server) AuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue covers both GET query params and POST form data
		state := r.FormValue("state")
		accessToken := r.FormValue("access_token")
		refreshToken := r.FormValue("refresh_token")

		if state == "" {
			log.Warn().Msg("Callback rejected: no state parameter")
			s.renderCallbackError(w, http.StatusBadRequest, "This login link is invalid. Please start the login again.")
			return
		}

		// Compare-and-clear must be one uninterrupted step: a replayed or
		// concurrent callback may not see the nonce before it is consumed.
		s.callbackLock.Lock()
		pending, err := s.store.LoadPendingState(r.Context())
		if err != nil {
			s.callbackLock.Unlock()
			log.Err(err).Msg("Callback failed: could not read pending login state")
			s.renderCallbackError(w, http.StatusInternalServerError, "Login could not be completed. Please try again.")
			return
		}
		if pending == "" || subtle.ConstantTimeCompare([]byte(pending), []byte(state)) != 1 {
			s.callbackLock.Unlock()
			// Nothing is mutated or consumed on a mismatch: the pending
			// nonce stays valid for the login that actually owns it.
			log.Warn().Err(apperrors.ErrInvalidState).Msg("Callback rejected: state does not match pending login")
			s.renderCallbackError(w, http.StatusBadRequest, "This login attempt is no longer valid. Please start the login again.")
			return
		}
		if err := s.store.ClearPendingState(r.Context()); err != nil {
			s.callbackLock.Unlock()
			log.Err(err).Msg("Callback failed: could not consume pending login state")
			s.renderCallbackError(w, http.StatusInternalServerError, "Login could not be completed. Please try again.")
			return
		}
		s.callbackLock.Unlock()

		if accessToken == "" {
			log.Warn().Err(apperrors.ErrMissingToken).Msg("Callback rejected: no access token")
			s.renderCallbackError(w, http.StatusBadRequest, "The login response was incomplete. Please start the login again.")
			return
		}

		if err := s.auth.SetSessionFromTokens(r.Context(), accessToken, refreshToken); err != nil {
			log.Err(err).Msg("Callback failed: provider rejected the tokens")
			s.renderCallbackError(w, http.StatusBadGateway, "The login could not be verified. Please try again.")
			return
		}

		s.renderCallbackSuccess(w)
	}
}
