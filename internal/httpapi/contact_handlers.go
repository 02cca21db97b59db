package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumierelabs/prewedding-api/internal/repository"
	"github.com/lumierelabs/prewedding-api/internal/service"
)

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var input service.ContactInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	contact, err := s.contacts.Create(r.Context(), input)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			s.badRequest(w, err)
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"id":      contact.ID,
		"message": "Thank you for reaching out. We will get back to you shortly.",
	})
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	filter := repository.ListFilter{Limit: 50}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	if v := q.Get("is_read"); v != "" {
		b := v == "true"
		filter.IsRead = &b
	}
	if v := q.Get("is_responded"); v != "" {
		b := v == "true"
		filter.IsResponded = &b
	}

	list, err := s.contacts.List(r.Context(), filter)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	contact, err := s.contacts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrContactNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, contact)
}

type contactUpdateRequest struct {
	IsRead      *bool   `json:"is_read"`
	IsResponded *bool   `json:"is_responded"`
	AdminNotes  *string `json:"admin_notes"`
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req contactUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.IsRead == nil && req.IsResponded == nil && req.AdminNotes == nil {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}

	contact, err := s.contacts.UpdateStatus(r.Context(), id, repository.StatusUpdate{
		IsRead:      req.IsRead,
		IsResponded: req.IsResponded,
		AdminNotes:  req.AdminNotes,
	})
	if err != nil {
		if errors.Is(err, service.ErrContactNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, contact)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := s.contacts.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrContactNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "inquiry deleted"})
}

func (s *Server) handleContactStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.contacts.Stats(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
