package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-racer/internal/availability"
	"course-racer/internal/history"
	"course-racer/internal/model"
	"course-racer/internal/status"
)

// Dropper withdraws a selection through the active protocol.
type Dropper interface {
	TypeCode(bucket string) (model.CourseTypeCode, bool)
	Drop(ctx context.Context, code model.CourseTypeCode, rec model.ClassRecord) (model.Outcome, error)
}

// Handler holds shared dependencies for API handlers. History, DB and WebPush are optional;
// the endpoints that need them answer 503 when they are missing.
type Handler struct {
	board   *status.Board
	avail   *availability.Store
	history history.Store
	db      *gorm.DB
	dropper Dropper
	webpush *webpush.Options
	log     *zap.Logger
}

// Deps lists what the handlers read from.
type Deps struct {
	Board        *status.Board
	Availability *availability.Store
	History      history.Store
	DB           *gorm.DB
	Dropper      Dropper
	WebPush      *webpush.Options
	Logger       *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Board == nil {
		d.Board = status.NewBoard()
	}
	if d.Availability == nil {
		d.Availability = availability.NewStore()
	}
	return &Handler{
		board:   d.Board,
		avail:   d.Availability,
		history: d.History,
		db:      d.DB,
		dropper: d.Dropper,
		webpush: d.WebPush,
		log:     d.Logger.With(zap.String("component", "api")),
	}
}
