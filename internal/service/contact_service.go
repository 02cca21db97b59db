package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/lumierelabs/prewedding-api/internal/models"
	"github.com/lumierelabs/prewedding-api/internal/repository"
)

var ErrContactNotFound = errors.New("contact inquiry not found")

// ContactInput is the public inquiry form. Validation mirrors the landing
// page rules: name and a reachable email/phone are required, the event date
// is free-form DD-MM-YYYY text.
type ContactInput struct {
	Name      string `json:"name" validate:"required,min=2,max=255"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,min=7,max=32"`
	EventDate string `json:"eventDate" validate:"omitempty,max=16"`
	Message   string `json:"message" validate:"omitempty,max=4000"`
}

// ContactService is the admin inquiry inbox. It is deliberately independent
// of the entitlement ledger and shares no entities with it.
type ContactService struct {
	contacts *repository.ContactRepository
	validate *validator.Validate
}

func NewContactService(contacts *repository.ContactRepository) *ContactService {
	return &ContactService{
		contacts: contacts,
		validate: validator.New(),
	}
}

// Create records a public inquiry. No authentication involved.
func (s *ContactService) Create(ctx context.Context, input ContactInput) (*models.Contact, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	contact := &models.Contact{
		Name:      input.Name,
		Email:     input.Email,
		Phone:     input.Phone,
		EventDate: input.EventDate,
		Message:   input.Message,
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, err
	}
	return s.contacts.GetByID(ctx, contact.ID)
}

type ContactList struct {
	Contacts []models.Contact `json:"contacts"`
	Total    int              `json:"total"`
	Unread   int              `json:"unread_count"`
}

func (s *ContactService) List(ctx context.Context, filter repository.ListFilter) (*ContactList, error) {
	contacts, total, err := s.contacts.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	unread, err := s.contacts.CountUnread(ctx)
	if err != nil {
		return nil, err
	}
	return &ContactList{Contacts: contacts, Total: total, Unread: unread}, nil
}

// Get returns one inquiry and marks it read on first view.
func (s *ContactService) Get(ctx context.Context, id int64) (*models.Contact, error) {
	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}
	if !contact.IsRead {
		if err := s.contacts.MarkRead(ctx, id); err != nil {
			return nil, err
		}
		contact.IsRead = true
	}
	return contact, nil
}

func (s *ContactService) UpdateStatus(ctx context.Context, id int64, update repository.StatusUpdate) (*models.Contact, error) {
	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}
	if err := s.contacts.UpdateStatus(ctx, id, update); err != nil {
		return nil, err
	}
	return s.contacts.GetByID(ctx, id)
}

func (s *ContactService) Delete(ctx context.Context, id int64) error {
	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if contact == nil {
		return ErrContactNotFound
	}
	return s.contacts.Delete(ctx, id)
}

func (s *ContactService) Stats(ctx context.Context) (*repository.ContactStats, error) {
	return s.contacts.Stats(ctx)
}
