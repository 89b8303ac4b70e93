package handlers

import (
	"errors"
	"net/http"

	"github.com/kozaktomas/face-sorter/internal/database"
	"github.com/kozaktomas/face-sorter/internal/facematch"
)

// PeopleHandler lists enrolled people
type PeopleHandler struct {
	references database.ReferenceReader
}

// NewPeopleHandler creates a new people handler
func NewPeopleHandler(refs database.ReferenceReader) *PeopleHandler {
	return &PeopleHandler{references: refs}
}

// List returns the enrolled people with their reference counts
func (h *PeopleHandler) List(w http.ResponseWriter, r *http.Request) {
	people, err := h.references.ListPeople(r.Context())
	if errors.Is(err, facematch.ErrDatabaseNotFound) {
		respondJSON(w, http.StatusOK, map[string]any{"people": []database.PersonSummary{}, "count": 0})
		return
	}
	if err != nil {
		log.Errorf("web: failed to list people: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list people")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"people": people, "count": len(people)})
}
