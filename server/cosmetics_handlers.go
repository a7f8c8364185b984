package server

import (
	"net/http"
	"strconv"
)

func (s *Server) handleCosmeticsSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		badRequest(w, "q is required")
		return
	}
	itemType := r.URL.Query().Get("type")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := s.deps.Cosmetics.Search(r.Context(), query, itemType, limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}
