package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/k1rl3s/chess-bot-go/internal/domain"
)

var ErrInvalidUserID = errors.New("user id is required")

// Repository is the slice of the store the registry needs. Absent rows
// come back as (nil, nil).
type Repository interface {
	CreateUserWithSettings(ctx context.Context, user *domain.User, settings *domain.Settings) (bool, error)
	User(ctx context.Context, id string) (*domain.User, error)
	Settings(ctx context.Context, userID string) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, userID string, patch domain.SettingsPatch) (bool, error)
}

// LimitsClient supplies parameter defaults and clamps from the engine
// service.
type LimitsClient interface {
	Limits(ctx context.Context) (map[string]domain.ParamLimit, error)
	Defaults(ctx context.Context) (map[string]int, error)
}

type Service struct {
	repo   Repository
	limits LimitsClient
	logger *zap.Logger
}

func NewService(repo Repository, limits LimitsClient, logger *zap.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if limits == nil {
		return nil, fmt.Errorf("limits client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, limits: limits, logger: logger}, nil
}

// EnsureUser creates the user and its settings row on first contact.
// Defaults are fetched as plain data, merged with the overrides, and
// persisted in one unit of work. Calling it again for the same id is a
// no-op.
func (s *Service) EnsureUser(ctx context.Context, id, name string, overrides domain.SettingsPatch) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidUserID
	}

	existing, err := s.repo.User(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	defaults, err := s.limits.Defaults(ctx)
	if err != nil {
		return fmt.Errorf("fetch settings defaults: %w", err)
	}
	settings := settingsFromDefaults(id, defaults, overrides)

	created, err := s.repo.CreateUserWithSettings(ctx, &domain.User{ID: id, Name: strings.TrimSpace(name)}, settings)
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("user registered", zap.String("user_id", id))
	}
	return nil
}

// User returns the user's projection, (nil, nil) when unknown.
func (s *Service) User(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.User(ctx, strings.TrimSpace(id))
}

// Settings returns the user's settings row, (nil, nil) when the user
// has none.
func (s *Service) Settings(ctx context.Context, userID string) (*domain.Settings, error) {
	return s.repo.Settings(ctx, strings.TrimSpace(userID))
}

// UpdateSettings clamps each supplied parameter into the [min,max]
// range the limits service reports for it and applies the result as a
// single update. Parameters the limits service does not know about
// pass through untouched. The returned patch is what was actually
// written; (nil, nil) signals the user has no settings row.
func (s *Service) UpdateSettings(ctx context.Context, userID string, patch domain.SettingsPatch) (*domain.SettingsPatch, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if patch.IsEmpty() {
		existing, err := s.repo.Settings(ctx, userID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, nil
		}
		return &domain.SettingsPatch{}, nil
	}

	limits, err := s.limits.Limits(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch settings limits: %w", err)
	}
	applied := clampPatch(patch, limits)

	ok, err := s.repo.UpdateSettings(ctx, userID, applied)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &applied, nil
}

func clampPatch(patch domain.SettingsPatch, limits map[string]domain.ParamLimit) domain.SettingsPatch {
	out := patch
	for name, field := range out.IntFields() {
		if field == nil {
			continue
		}
		limit, ok := limits[name]
		if !ok {
			continue
		}
		v := clamp(*field, limit.Min, limit.Max)
		switch name {
		case domain.ParamMinTime:
			out.MinTime = &v
		case domain.ParamMaxTime:
			out.MaxTime = &v
		case domain.ParamThreads:
			out.Threads = &v
		case domain.ParamDepth:
			out.Depth = &v
		case domain.ParamRAMHash:
			out.RAMHash = &v
		case domain.ParamSkillLevel:
			out.SkillLevel = &v
		case domain.ParamElo:
			out.Elo = &v
		case domain.ParamSize:
			out.Size = &v
		}
	}
	return out
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func settingsFromDefaults(userID string, defaults map[string]int, overrides domain.SettingsPatch) *domain.Settings {
	s := &domain.Settings{
		UserID:     userID,
		MinTime:    defaults[domain.ParamMinTime],
		MaxTime:    defaults[domain.ParamMaxTime],
		Threads:    defaults[domain.ParamThreads],
		Depth:      defaults[domain.ParamDepth],
		RAMHash:    defaults[domain.ParamRAMHash],
		SkillLevel: defaults[domain.ParamSkillLevel],
		Elo:        defaults[domain.ParamElo],
		Size:       defaults[domain.ParamSize],
		WithCoords: true,
	}
	for name, v := range overrides.IntFields() {
		if v == nil {
			continue
		}
		switch name {
		case domain.ParamMinTime:
			s.MinTime = *v
		case domain.ParamMaxTime:
			s.MaxTime = *v
		case domain.ParamThreads:
			s.Threads = *v
		case domain.ParamDepth:
			s.Depth = *v
		case domain.ParamRAMHash:
			s.RAMHash = *v
		case domain.ParamSkillLevel:
			s.SkillLevel = *v
		case domain.ParamElo:
			s.Elo = *v
		case domain.ParamSize:
			s.Size = *v
		}
	}
	if overrides.Colors != nil {
		s.Colors = *overrides.Colors
	}
	if overrides.WithCoords != nil {
		s.WithCoords = *overrides.WithCoords
	}
	return s
}
