package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumierelabs/prewedding-api/internal/models"
	"github.com/lumierelabs/prewedding-api/internal/repository"
	"github.com/lumierelabs/prewedding-api/internal/service"
)

type userResponse struct {
	ID                   int64      `json:"id"`
	Email                string     `json:"email"`
	FullName             string     `json:"full_name"`
	AuthProvider         string     `json:"auth_provider"`
	ProfilePicture       string     `json:"profile_picture,omitempty"`
	IsAdmin              bool       `json:"is_admin"`
	IsVerified           bool       `json:"is_verified"`
	FreeCreditsRemaining int        `json:"free_credits_remaining"`
	IsSubscribed         bool       `json:"is_subscribed"`
	SubscriptionExpiry   *time.Time `json:"subscription_expiry,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:                   u.ID,
		Email:                u.Email,
		FullName:             u.FullName,
		AuthProvider:         string(u.AuthProvider),
		ProfilePicture:       u.ProfilePicture,
		IsAdmin:              u.IsAdmin,
		IsVerified:           u.IsVerified,
		FreeCreditsRemaining: u.FreeCreditsRemaining,
		IsSubscribed:         u.IsSubscribed,
		SubscriptionExpiry:   u.SubscriptionExpiry,
		CreatedAt:            u.CreatedAt,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Email == "" || len(req.Password) < 8 {
		http.Error(w, "email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	user, token, err := s.authSvc.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"user":         toUserResponse(user),
		"access_token": token,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	user, token, err := s.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"user":         toUserResponse(user),
		"access_token": token,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

type profileUpdateRequest struct {
	FullName       string `json:"full_name"`
	ProfilePicture string `json:"profile_picture"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	user := userFromContext(r.Context())
	updated, err := s.authSvc.UpdateProfile(r.Context(), user.ID, req.FullName, req.ProfilePicture)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.ListActive(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	template, err := s.templates.GetByID(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if template == nil {
		http.Error(w, "template not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, template)
}

type templateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PreviewURL  string `json:"preview_url"`
	Prompt      string `json:"prompt"`
	IsFree      *bool  `json:"is_free"`
	IsActive    *bool  `json:"is_active"`
	PriceMinor  int    `json:"price_minor_units"`
	Currency    string `json:"currency"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Prompt == "" {
		http.Error(w, "name and prompt are required", http.StatusBadRequest)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	free := false
	if req.IsFree != nil {
		free = *req.IsFree
	}
	currency := req.Currency
	if currency == "" {
		currency = s.cfg.PaymentCurrency
	}
	template, err := s.templates.Create(r.Context(), &models.Template{
		Name:        req.Name,
		Description: req.Description,
		PreviewURL:  req.PreviewURL,
		Prompt:      req.Prompt,
		IsFree:      free,
		IsActive:    active,
		PriceMinor:  req.PriceMinor,
		Currency:    currency,
	})
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, template)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	existing, err := s.templates.GetByID(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if existing == nil {
		http.Error(w, "template not found", http.StatusNotFound)
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Description != "" {
		existing.Description = req.Description
	}
	if req.PreviewURL != "" {
		existing.PreviewURL = req.PreviewURL
	}
	if req.Prompt != "" {
		existing.Prompt = req.Prompt
	}
	if req.Currency != "" {
		existing.Currency = req.Currency
	}
	if req.PriceMinor > 0 {
		existing.PriceMinor = req.PriceMinor
	}
	if req.IsFree != nil {
		existing.IsFree = *req.IsFree
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if err := s.templates.Update(r.Context(), existing); err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, existing)
}

type generateRequest struct {
	TemplateID  int64    `json:"template_id"`
	AspectRatio string   `json:"aspect_ratio"`
	InputURLs   []string `json:"input_urls"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.TemplateID <= 0 {
		http.Error(w, "template_id is required", http.StatusBadRequest)
		return
	}

	user := userFromContext(r.Context())
	result, err := s.generation.Generate(r.Context(), user, service.GenerationRequest{
		TemplateID:  req.TemplateID,
		AspectRatio: req.AspectRatio,
		InputURLs:   req.InputURLs,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTemplateNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, service.ErrNoEntitlement):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
		default:
			s.internalError(w, err)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"generation_id": result.Generation.ID,
		"image_url":     result.ImageURL,
		"source":        result.Source,
	})
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := parseID(v); err == nil {
			limit = int(parsed)
		}
	}
	gens, total, err := s.generation.History(r.Context(), user.ID, limit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"generations": gens,
		"total":       total,
	})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	templateID, err := parseID(r.URL.Query().Get("template_id"))
	if err != nil || templateID <= 0 {
		http.Error(w, "template_id is required", http.StatusBadRequest)
		return
	}
	user := userFromContext(r.Context())
	tokens, err := s.payments.ListTokens(r.Context(), user.ID, templateID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleTokenUsage(w http.ResponseWriter, r *http.Request) {
	templateID, err := parseID(r.URL.Query().Get("template_id"))
	if err != nil || templateID <= 0 {
		http.Error(w, "template_id is required", http.StatusBadRequest)
		return
	}
	user := userFromContext(r.Context())
	usage, err := s.entitlement.Usage(r.Context(), user.ID, templateID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, usage)
}

type checkoutRequest struct {
	TemplateID int64 `json:"template_id"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	user := userFromContext(r.Context())
	result, err := s.payments.Checkout(r.Context(), user, req.TemplateID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTemplateNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, service.ErrFreeTemplate):
			s.badRequest(w, err)
		default:
			s.internalError(w, err)
		}
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	if err := s.payments.HandleWebhook(r.Context(), body, r.Header.Get("Stripe-Signature")); err != nil {
		s.log.Error("payment webhook", "err", err)
		http.Error(w, "webhook rejected", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type refundRequest struct {
	TokenID int64  `json:"token_id"`
	Reason  string `json:"reason"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.TokenID <= 0 {
		http.Error(w, "token_id is required", http.StatusBadRequest)
		return
	}

	token, err := s.payments.Refund(r.Context(), req.TokenID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTokenNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, repository.ErrAlreadyRefunded):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			s.internalError(w, err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, token)
}
