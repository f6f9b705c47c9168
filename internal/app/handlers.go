package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App wires the HTTP handlers to the scheduling core.
type App struct {
	Resolver *AvailabilityResolver
	Bookings *BookingCoordinator
	Health   Pinger
	Logger   *zap.Logger
}

// GET /users/:username/availability?date=YYYY-MM-DD&timezoneOffset=minutes
func (a *App) AvailabilityHandler(c *gin.Context) {
	q := AvailabilityQuery{Date: c.Query("date")}

	if raw := strings.TrimSpace(c.Query("timezoneOffset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "timezoneOffset: must be an integer number of minutes"})
			return
		}
		q.TimezoneOffset = &offset
	}

	availability, err := a.Resolver.Resolve(c.Request.Context(), c.Param("username"), q)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, availability)
}

type createBookingReq struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Observations string `json:"observations"`
	Date         string `json:"date"` // RFC3339
}

// POST /users/:username/schedule
func (a *App) CreateBookingHandler(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	booking, err := a.Bookings.CreateBooking(c.Request.Context(), c.Param("username"), BookingRequest{
		Name:         req.Name,
		Email:        req.Email,
		Observations: req.Observations,
		Date:         req.Date,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GET /health
func (a *App) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := a.Health.Ping(ctx); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// writeError maps core errors to responses. Every expected condition is a
// 400; anything else is an infrastructure fault and its detail is only logged.
func (a *App) writeError(c *gin.Context, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"message": ve.Error()})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"message": "user does not exist"})
	case errors.Is(err, ErrPastDate):
		c.JSON(http.StatusBadRequest, gin.H{"message": "date is in the past."})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusBadRequest, gin.H{"message": "There is another scheduling at the same time."})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
	}
}
