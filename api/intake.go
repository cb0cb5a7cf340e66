// Package api exposes the booking intake contract over HTTP: an
// external intake process posts fully populated bookings here, which
// enter the store in status New for the relay to discover.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avoronin/rentdesk/internal/domain"
	"github.com/avoronin/rentdesk/internal/registry"
)

type IntakeHandler struct {
	registry *registry.Registry
	log      *zap.Logger
}

type createBookingRequest struct {
	BookingID   string `json:"booking_id"`
	RequesterID int64  `json:"requester_id" binding:"required"`
	Scooter     string `json:"scooter" binding:"required"`
	Days        int    `json:"days" binding:"required"`
	Total       int64  `json:"total" binding:"required"`
	Name        string `json:"name"`
	Contact     string `json:"contact"`
	Location    string `json:"location"`
	Risk        string `json:"risk"`
}

type bookingResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Scooter   string `json:"scooter"`
	Days      int    `json:"days"`
	Total     int64  `json:"total"`
	Operator  string `json:"operator,omitempty"`
	Deposit   string `json:"deposit,omitempty"`
	CreatedAt string `json:"created_at"`
}

func NewIntakeHandler(reg *registry.Registry, log *zap.Logger) *IntakeHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &IntakeHandler{registry: reg, log: log}
}

func (h *IntakeHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:id", h.get)
}

func (h *IntakeHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record := &domain.BookingRecord{
		BookingID:   req.BookingID,
		RequesterID: req.RequesterID,
		Subject: domain.SubjectFields{
			Scooter:  req.Scooter,
			Days:     req.Days,
			Total:    req.Total,
			Name:     req.Name,
			Contact:  req.Contact,
			Location: req.Location,
		},
		RiskAnnotation: req.Risk,
	}

	id, err := h.registry.CreateIntakeRecord(c.Request.Context(), record)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "booking already exists"})
			return
		}
		h.log.Error("intake failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toResponse(record))
	h.log.Info("booking accepted", zap.String("booking_id", id))
}

func (h *IntakeHandler) get(c *gin.Context) {
	record, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toResponse(record))
}

func toResponse(record *domain.BookingRecord) bookingResponse {
	return bookingResponse{
		BookingID: record.BookingID,
		Status:    string(record.Status),
		Scooter:   record.Subject.Scooter,
		Days:      record.Subject.Days,
		Total:     record.Subject.Total,
		Operator:  record.OperatorRef,
		Deposit:   record.DepositAmount,
		CreatedAt: record.CreatedAt.Format(time.RFC3339),
	}
}
