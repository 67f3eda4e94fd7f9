package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"lakeboard/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses. Collaborator failures
// surface as 502 with a generic message so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	var (
		authErr    *domain.AuthenticationError
		denied     *domain.AccessDeniedError
		cfgErr     *domain.ConfigurationError
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
		collab     *domain.CollaboratorError
	)
	switch {
	case errors.As(err, &authErr):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: authErr.Message})
	case errors.As(err, &denied):
		writeJSON(w, http.StatusForbidden, errorBody{Error: denied.Message})
	case errors.As(err, &cfgErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: cfgErr.Message})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validation.Message})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: notFound.Message})
	case errors.As(err, &collab):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "upstream dependency unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
