package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lumierelabs/prewedding-api/internal/imagegen"
	"github.com/lumierelabs/prewedding-api/internal/models"
	"github.com/lumierelabs/prewedding-api/internal/repository"
	"github.com/lumierelabs/prewedding-api/internal/watermark"
)

// ErrTemplateNotFound is returned when a generation targets an unknown or
// inactive template.
var ErrTemplateNotFound = errors.New("template not found")

// ImageGenerator is the opaque external model invocation.
type ImageGenerator interface {
	Generate(ctx context.Context, opts imagegen.Options) (*imagegen.Artifact, error)
}

// Watermarker stamps an output image and returns the encoded result.
type Watermarker interface {
	Apply(ctx context.Context, src string, mode watermark.Mode) ([]byte, string, error)
}

// ArtifactStore persists the final image and returns its public URL.
type ArtifactStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

type GenerationService struct {
	log         *slog.Logger
	templates   *repository.TemplateRepository
	tokens      *repository.TokenRepository
	generations *repository.GenerationRepository
	entitlement *EntitlementService
	generator   ImageGenerator
	watermarker Watermarker
	store       ArtifactStore
}

type GenerationRequest struct {
	TemplateID  int64
	AspectRatio string
	InputURLs   []string // couple reference photos
}

type GenerationResult struct {
	Generation *models.Generation
	Source     models.EntitlementSource
	ImageURL   string
}

func NewGenerationService(
	log *slog.Logger,
	templates *repository.TemplateRepository,
	tokens *repository.TokenRepository,
	generations *repository.GenerationRepository,
	entitlement *EntitlementService,
	generator ImageGenerator,
	watermarker Watermarker,
	store ArtifactStore,
) *GenerationService {
	return &GenerationService{
		log:         log,
		templates:   templates,
		tokens:      tokens,
		generations: generations,
		entitlement: entitlement,
		generator:   generator,
		watermarker: watermarker,
		store:       store,
	}
}

// Generate runs the full pipeline: entitlement check, external model call,
// ledger debit (paid templates only, atomic with the generation record),
// watermarking, and artifact upload.
//
// The debit commits before watermarking. A watermark or upload failure after
// a committed debit does not refund the use: the use pays for the generation
// attempt itself, not for the cosmetic post-processing.
func (s *GenerationService) Generate(ctx context.Context, user *models.User, req GenerationRequest) (*GenerationResult, error) {
	template, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if template == nil || !template.IsActive {
		return nil, ErrTemplateNotFound
	}

	decision, err := s.entitlement.CanGenerate(ctx, user, template)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, ErrNoEntitlement
	}

	artifact, err := s.generator.Generate(ctx, imagegen.Options{
		Prompt:      template.Prompt,
		AspectRatio: req.AspectRatio,
		InputURLs:   req.InputURLs,
	})
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}

	gen := &models.Generation{
		UserID:     user.ID,
		TemplateID: template.ID,
		Source:     decision.Source,
		Prompt:     template.Prompt,
		ImageURL:   artifact.URL,
	}

	mode := watermark.ModeDiagonalTile
	if decision.Source == models.SourcePaidToken {
		mode = watermark.ModeCornerLogo
		// Debit and generation record commit together; the caller must
		// never see a generation without its paired debit or vice versa.
		if err := s.tokens.Consume(ctx, decision.Token.ID, gen); err != nil {
			if errors.Is(err, repository.ErrInvalidTokenState) {
				// Lost a race for the last use. Internal-only error: report
				// a denial without leaking ledger state.
				s.log.Error("token debit lost race", "token_id", decision.Token.ID, "user_id", user.ID)
				return nil, ErrNoEntitlement
			}
			return nil, err
		}
	} else {
		if err := s.generations.Insert(ctx, gen); err != nil {
			return nil, err
		}
	}

	data, contentType, err := s.watermarker.Apply(ctx, artifact.URL, mode)
	if err != nil {
		return nil, fmt.Errorf("watermark output: %w", err)
	}

	publicURL, err := s.store.Upload(ctx, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("store output: %w", err)
	}

	if err := s.generations.UpdateImageURL(ctx, gen.ID, publicURL); err != nil {
		s.log.Error("failed to update generation image url", "generation_id", gen.ID, "err", err)
	}
	gen.ImageURL = publicURL

	return &GenerationResult{
		Generation: gen,
		Source:     decision.Source,
		ImageURL:   publicURL,
	}, nil
}

func (s *GenerationService) History(ctx context.Context, userID int64, limit int) ([]models.Generation, int, error) {
	gens, err := s.generations.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.generations.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return gens, total, nil
}
