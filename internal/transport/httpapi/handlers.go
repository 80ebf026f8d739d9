package httpapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/k1rl3s/chess-bot-go/internal/domain"
	"github.com/k1rl3s/chess-bot-go/internal/engineapi"
	"github.com/k1rl3s/chess-bot-go/internal/service/game"
	"github.com/k1rl3s/chess-bot-go/internal/service/rank"
	"github.com/k1rl3s/chess-bot-go/internal/service/user"
	"github.com/k1rl3s/chess-bot-go/pkg/gamedto"
)

var validate = validator.New()

type Handler struct {
	users *user.Service
	games *game.Service
	ranks *rank.Service
	log   *zap.Logger
}

func NewHandler(users *user.Service, games *game.Service, ranks *rank.Service, log *zap.Logger) (*Handler, error) {
	if users == nil || games == nil || ranks == nil {
		return nil, fmt.Errorf("all services are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{users: users, games: games, ranks: ranks, log: log}, nil
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handler) RegisterUser(c *fiber.Ctx) error {
	var req gamedto.RegisterUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	overrides := domain.SettingsPatch{}
	if req.Overrides != nil {
		overrides = patchFromDTO(*req.Overrides)
	}
	if err := h.users.EnsureUser(c.Context(), req.ID, req.Name, overrides); err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": req.ID})
}

func (h *Handler) GetSettings(c *fiber.Ctx) error {
	s, err := h.users.Settings(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if s == nil {
		return notFound(c, "settings")
	}
	return c.JSON(settingsToDTO(s))
}

func (h *Handler) PatchSettings(c *fiber.Ctx) error {
	var req gamedto.SettingsPatch
	if err := parseBody(c, &req); err != nil {
		return err
	}
	applied, err := h.users.UpdateSettings(c.Context(), c.Params("id"), patchFromDTO(req))
	if err != nil {
		return h.fail(c, err)
	}
	if applied == nil {
		return notFound(c, "settings")
	}
	s, err := h.users.Settings(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if s == nil {
		return notFound(c, "settings")
	}
	return c.JSON(settingsToDTO(s))
}

func (h *Handler) GetStats(c *fiber.Ctx) error {
	u, err := h.users.User(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if u == nil {
		return notFound(c, "user")
	}
	return c.JSON(gamedto.StatsSummary{
		UserID:  u.ID,
		Name:    u.Name,
		Games:   u.Counters.Games,
		Wins:    u.Counters.Wins,
		Defeats: u.Counters.Defeats,
		Draws:   u.Counters.Draws,
		WinRate: u.Counters.WinRate(),
	})
}

func (h *Handler) StartSession(c *fiber.Ctx) error {
	var req gamedto.StartSessionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	userID := c.Params("id")
	displaced, err := h.games.StartSession(c.Context(), userID, domain.Color(req.Orientation))
	if err != nil {
		return h.fail(c, err)
	}
	g, err := h.games.ActiveSession(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(gamedto.StartSessionResponse{
		State:     gameToDTO(g),
		Displaced: displaced,
	})
}

func (h *Handler) ActiveSession(c *fiber.Ctx) error {
	g, err := h.games.ActiveSession(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if g == nil {
		return notFound(c, "active session")
	}
	return c.JSON(gameToDTO(g))
}

func (h *Handler) AdvanceSession(c *fiber.Ctx) error {
	var req gamedto.AdvanceSessionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ok, err := h.games.AdvanceSession(c.Context(), c.Params("id"), domain.MoveUpdate{
		PrevMoves: req.PrevMoves,
		LastMove:  req.LastMove,
		Check:     req.Check,
		FEN:       req.FEN,
	})
	if err != nil {
		return h.fail(c, err)
	}
	if !ok {
		return notFound(c, "active session")
	}
	g, err := h.games.ActiveSession(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(gameToDTO(g))
}

func (h *Handler) StopSession(c *fiber.Ctx) error {
	resign := strings.EqualFold(c.Query("resign"), "true")
	res, err := h.games.StopSession(c.Context(), c.Params("id"), resign)
	if err != nil {
		return h.fail(c, err)
	}
	if res == nil {
		return notFound(c, "active session")
	}
	var winner *string
	if res.Winner != nil {
		w := string(*res.Winner)
		winner = &w
	}
	return c.JSON(gamedto.StopSessionResponse{
		State:  gameToDTO(res.Game),
		Winner: winner,
		Draw:   res.Winner == nil,
	})
}

func (h *Handler) Leaderboard(c *fiber.Ctx) error {
	board, err := h.ranks.Global(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	out := gamedto.LeaderboardResponse{
		Entries:     make([]gamedto.LeaderboardEntry, 0, len(board.Entries)),
		Text:        board.Text,
		GeneratedAt: board.GeneratedAt,
	}
	for _, e := range board.Entries {
		out.Entries = append(out.Entries, gamedto.LeaderboardEntry{
			UserID:  e.UserID,
			Name:    e.Name,
			Wins:    e.Wins,
			Draws:   e.Draws,
			Defeats: e.Defeats,
			Games:   e.Games,
			WinRate: e.WinRate,
		})
	}
	return c.JSON(out)
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(gamedto.DomainError{
			Code:    "invalid_body",
			Message: err.Error(),
		})
	}
	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		msg := err.Error()
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = fmt.Sprintf("%s failed %s validation", verrs[0].Field(), verrs[0].Tag())
		}
		return c.Status(fiber.StatusBadRequest).JSON(gamedto.DomainError{
			Code:    "validation_failed",
			Message: msg,
		})
	}
	return nil
}

func notFound(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusNotFound).JSON(gamedto.DomainError{
		Code:    "not_found",
		Message: what + " not found",
	})
}

// fail translates service errors to HTTP statuses. Upstream engine
// failures surface as 502 so the frontend can tell them apart from
// our own faults.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var apiErr *engineapi.APIError
	switch {
	case errors.Is(err, game.ErrInvalidOrientation),
		errors.Is(err, game.ErrInvalidPosition),
		errors.Is(err, user.ErrInvalidUserID):
		return c.Status(fiber.StatusBadRequest).JSON(gamedto.DomainError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.As(err, &apiErr):
		h.log.Warn("engine upstream failure", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(gamedto.DomainError{
			Code:    "engine_unavailable",
			Message: err.Error(),
		})
	default:
		h.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(gamedto.DomainError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

func gameToDTO(g *domain.Game) *gamedto.SessionState {
	if g == nil {
		return nil
	}
	var whoWin *string
	if g.WhoWin != nil {
		w := string(*g.WhoWin)
		whoWin = &w
	}
	return &gamedto.SessionState{
		UUID:        g.UUID,
		UserID:      g.UserID,
		Orientation: string(g.Orientation),
		IsActive:    g.IsActive,
		PrevMoves:   g.PrevMoves,
		LastMove:    g.LastMove,
		Check:       g.Check,
		FEN:         g.FEN,
		WhoWin:      whoWin,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func settingsToDTO(s *domain.Settings) gamedto.Settings {
	return gamedto.Settings{
		UserID:     s.UserID,
		MinTime:    s.MinTime,
		MaxTime:    s.MaxTime,
		Threads:    s.Threads,
		Depth:      s.Depth,
		RAMHash:    s.RAMHash,
		SkillLevel: s.SkillLevel,
		Elo:        s.Elo,
		Colors:     s.Colors,
		WithCoords: s.WithCoords,
		Size:       s.Size,
		ModifiedAt: s.ModifiedAt,
	}
}

func patchFromDTO(p gamedto.SettingsPatch) domain.SettingsPatch {
	return domain.SettingsPatch{
		MinTime:    p.MinTime,
		MaxTime:    p.MaxTime,
		Threads:    p.Threads,
		Depth:      p.Depth,
		RAMHash:    p.RAMHash,
		SkillLevel: p.SkillLevel,
		Elo:        p.Elo,
		Colors:     p.Colors,
		WithCoords: p.WithCoords,
		Size:       p.Size,
	}
}
