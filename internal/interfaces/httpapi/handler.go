package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/streetlift/meet-engine/internal/domain/grouping"
	"github.com/streetlift/meet-engine/internal/domain/meet"
	"github.com/streetlift/meet-engine/internal/domain/registration"
	"github.com/streetlift/meet-engine/internal/platform/logging"
	"github.com/streetlift/meet-engine/internal/usecase"
)

type Handler struct {
	meetRepo     meet.Repository
	regRepo      registration.Repository
	groupingRepo grouping.Repository
	ranking      *usecase.RankingService
	logger       *logging.Logger
}

func NewHandler(
	meetRepo meet.Repository,
	regRepo registration.Repository,
	groupingRepo grouping.Repository,
	ranking *usecase.RankingService,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		meetRepo:     meetRepo,
		regRepo:      regRepo,
		groupingRepo: groupingRepo,
		ranking:      ranking,
		logger:       logger,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

type meetSummaryResponse struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Date          string `json:"date"`
	Level         string `json:"level"`
	Registrations int    `json:"registrations"`
	Flights       int    `json:"flights"`
	Lifts         int    `json:"lifts"`
}

// MeetSummary backs the director console header at session join.
func (h *Handler) MeetSummary(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.MeetSummary")
	defer span.End()

	code := strings.TrimSpace(r.PathValue("code"))
	m, exists, err := h.meetRepo.ByCode(ctx, code)
	if err != nil {
		h.logger.ErrorContext(ctx, "get meet", "error", err)
		writeError(ctx, w, err)
		return
	}
	if !exists {
		writeError(ctx, w, fmt.Errorf("%w: meet=%s", usecase.ErrNotFound, code))
		return
	}

	regs, err := h.regRepo.ForMeet(ctx, m.ID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	flights, err := h.groupingRepo.FlightsForMeet(ctx, m.ID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	lifts, err := h.meetRepo.Lifts(ctx, m.MeetTypeID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, meetSummaryResponse{
		Code:          m.Code,
		Name:          m.Name,
		Date:          m.Date.Format("2006-01-02"),
		Level:         m.Level,
		Registrations: len(regs),
		Flights:       len(flights),
		Lifts:         len(lifts),
	})
}

// Rankings serves the current standings to public displays over plain HTTP;
// live clients receive the same data as ranking.update events.
func (h *Handler) Rankings(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Rankings")
	defer span.End()

	code := strings.TrimSpace(r.PathValue("code"))
	m, exists, err := h.meetRepo.ByCode(ctx, code)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if !exists {
		writeError(ctx, w, fmt.Errorf("%w: meet=%s", usecase.ErrNotFound, code))
		return
	}

	set, err := h.ranking.Rankings(ctx, m.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "compute rankings", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, set)
}
