package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"codestash/auth"
	"codestash/internal/apperrors"
	"codestash/projects"
)

// projectResponse is the editor-facing shape of a project.
type projectResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	WorkspacePath string    `json:"workspacePath"`
	Files         []string  `json:"files"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// sessionResponse reports who is signed in, if anyone.
type sessionResponse struct {
	SignedIn  bool       `json:"signedIn"`
	UserID    string     `json:"userId,omitempty"`
	Email     string     `json:"email,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	State     string     `json:"state"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type savedResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// MessageHandler dispatches one tagged command to the owning service.
func (s *Server) MessageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid message body"})
			return
		}
		if err := msg.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		ctx := r.Context()
		switch msg.Command {
		case CommandLogin:
			session, err := s.auth.Login(ctx)
			if err != nil {
				s.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, sessionPayload(session, s.auth.State()))

		case CommandLogout:
			s.auth.Logout()
			writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})

		case CommandListProjects:
			list, err := s.projects.List(ctx)
			if err != nil {
				s.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, projectsPayload(list))

		case CommandSaveProject:
			id, err := s.projects.Save(ctx, msg.Name)
			if err != nil {
				s.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, savedResponse{ID: id})

		case CommandUpdateProject:
			if err := s.projects.Rename(ctx, msg.ProjectID, msg.Name); err != nil {
				s.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})

		case CommandDeleteProject:
			if err := s.projects.Delete(ctx, msg.ProjectID); err != nil {
				s.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})

		case CommandSyncProject:
			if err := s.projects.Sync(ctx, msg.ProjectID); err != nil {
				s.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
		}
	}
}

// SessionHandler reports the current session without mutating anything.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sessionPayload(s.auth.Current(), s.auth.State()))
	}
}

// HealthHandler is the liveness probe for the host editor.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	}
}

func sessionPayload(session *auth.Session, state auth.State) sessionResponse {
	resp := sessionResponse{State: state.String()}
	if session != nil {
		resp.SignedIn = true
		resp.UserID = session.UserID
		resp.Email = session.Email
		if !session.ExpiresAt.IsZero() {
			expires := session.ExpiresAt
			resp.ExpiresAt = &expires
		}
	}
	return resp
}

func projectsPayload(list []projects.Project) []projectResponse {
	out := make([]projectResponse, 0, len(list))
	for _, p := range list {
		out = append(out, projectResponse{
			ID:            p.ID,
			Name:          p.Name,
			WorkspacePath: p.WorkspacePath,
			Files:         p.Files,
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
		})
	}
	return out
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Warn().Err(err).Msg("command failed")
	writeJSON(w, statusForError(err), errorResponse{Error: err.Error()})
}

// statusForError maps service failures onto the bridge's HTTP surface.
func statusForError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrPathNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrCancelled), errors.Is(err, apperrors.ErrLoginInFlight):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrCallbackTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperrors.ErrInvalidState), errors.Is(err, apperrors.ErrExchangeFailed):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
