// Package handler exposes the attendance service over HTTP with gin.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/receipt"
	"rollcall/internal/sentinel"
)

// Attendance is the part of attendance.Service the HTTP layer uses.
type Attendance interface {
	RegisterProfessional(ctx context.Context, in attendance.NewProfessional) (attendance.Professional, error)
	ProfessionalByCode(ctx context.Context, code string) (attendance.Professional, error)
	ListProfessionals(ctx context.Context) ([]attendance.Professional, error)
	CreateSession(ctx context.Context, in attendance.NewSession) (attendance.Session, error)
	Session(ctx context.Context, id string) (attendance.Session, error)
	ListSessions(ctx context.Context) ([]attendance.Session, error)
	CompleteSession(ctx context.Context, id string) (string, error)
	RecordCheckin(ctx context.Context, sessionID, code string) (attendance.CheckinView, error)
	ListCheckins(ctx context.Context, sessionID string) ([]attendance.CheckinView, error)
	BuildRoster(ctx context.Context, sessionID string, capacity int) (attendance.Roster, error)
}

// Reports renders the attendance sheet of a session.
type Reports interface {
	PDF(ctx context.Context, sessionID string) ([]byte, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

type Handler struct {
	svc      Attendance
	reports  Reports
	receipts *receipt.Issuer // nil disables receipts
	health   map[string]HealthCheck
	logger   *slog.Logger
}

func New(svc Attendance, reports Reports, receipts *receipt.Issuer, health map[string]HealthCheck, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, reports: reports, receipts: receipts, health: health, logger: logger}
}

// Routes registers the API on api. checkin middleware applies only to the
// check-in endpoint.
func (h *Handler) Routes(api *gin.RouterGroup, checkin ...gin.HandlerFunc) {
	api.GET("/", h.Root)

	api.POST("/professionals", h.RegisterProfessional)
	api.GET("/professionals", h.ListProfessionals)
	api.GET("/professionals/by-code/:code", h.ProfessionalByCode)

	api.POST("/attendance-lists", h.CreateSession)
	api.GET("/attendance-lists", h.ListSessions)
	api.GET("/attendance-lists/:id", h.GetSession)
	api.PUT("/attendance-lists/:id/complete", h.CompleteSession)
	api.GET("/attendance-lists/:id/roster", h.Roster)
	api.GET("/attendance-lists/:id/pdf", h.PDF)

	api.POST("/attendance-records", append(checkin, h.RecordCheckin)...)
	api.GET("/attendance-records/list/:id", h.ListCheckins)

	if h.receipts != nil {
		api.GET("/receipts/verify", receipt.RequireReceipt(h.receipts), h.VerifyReceipt)
	}
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "API de Lista de Presença Biométrica"})
}

// Healthz reports every configured dependency; any failure is a 503.
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.health {
		ok := check(ctx)
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

type professionalRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Profession string `json:"profession"`
	Company    string `json:"company"`
}

func (h *Handler) RegisterProfessional(c *gin.Context) {
	var req professionalRequest
	if !h.bind(c, &req) {
		return
	}
	p, err := h.svc.RegisterProfessional(c.Request.Context(), attendance.NewProfessional{
		Code:       req.Code,
		Name:       req.Name,
		Email:      req.Email,
		Profession: req.Profession,
		Employer:   req.Company,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListProfessionals(c *gin.Context) {
	ps, err := h.svc.ListProfessionals(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(ps))
}

func (h *Handler) ProfessionalByCode(c *gin.Context) {
	p, err := h.svc.ProfessionalByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type sessionRequest struct {
	InstallationName        string `json:"installation_name"`
	MeetingDate             string `json:"meeting_date"`
	MeetingTime             string `json:"meeting_time"`
	CourseTitle             string `json:"course_title"`
	CourseContent           string `json:"course_content"`
	InstructorName          string `json:"instructor_name"`
	InstructorRole          string `json:"instructor_role"`
	InstructorQualification string `json:"instructor_qualification"`
	Location                string `json:"location"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.svc.CreateSession(c.Request.Context(), attendance.NewSession{
		FacilityName:            req.InstallationName,
		MeetingDate:             req.MeetingDate,
		MeetingTime:             req.MeetingTime,
		CourseTitle:             req.CourseTitle,
		CourseContent:           req.CourseContent,
		InstructorName:          req.InstructorName,
		InstructorRole:          req.InstructorRole,
		InstructorQualification: req.InstructorQualification,
		Location:                req.Location,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) ListSessions(c *gin.Context) {
	ss, err := h.svc.ListSessions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(ss))
}

func (h *Handler) GetSession(c *gin.Context) {
	s, err := h.svc.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) CompleteSession(c *gin.Context) {
	d, err := h.svc.CompleteSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Lista finalizada com sucesso", "duration": d})
}

type checkinRequest struct {
	ListID string `json:"list_id"`
	Code   string `json:"code"`
}

type checkinResponse struct {
	attendance.CheckinView
	Receipt          string     `json:"receipt,omitempty"`
	ReceiptExpiresAt *time.Time `json:"receipt_expires_at,omitempty"`
}

func (h *Handler) RecordCheckin(c *gin.Context) {
	var req checkinRequest
	if !h.bind(c, &req) {
		return
	}
	v, err := h.svc.RecordCheckin(c.Request.Context(), req.ListID, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := checkinResponse{CheckinView: v}
	if h.receipts != nil {
		// The check-in is committed; a signing failure only loses the receipt.
		token, exp, err := h.receipts.Issue(v)
		if err != nil {
			h.logger.ErrorContext(c.Request.Context(), "issue receipt", "record_id", v.ID, "error", err)
		} else {
			resp.Receipt, resp.ReceiptExpiresAt = token, &exp
		}
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListCheckins(c *gin.Context) {
	vs, err := h.svc.ListCheckins(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(vs))
}

func (h *Handler) Roster(c *gin.Context) {
	capacity := 0
	if v := c.Query("capacity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.fail(c, sentinel.Newf(sentinel.ErrInvalidInput, "capacity must be a positive integer"))
			return
		}
		capacity = n
	}
	r, err := h.svc.BuildRoster(c.Request.Context(), c.Param("id"), capacity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) PDF(c *gin.Context) {
	id := c.Param("id")
	data, err := h.reports.PDF(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=lista_presenca_"+id+".pdf")
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *Handler) VerifyReceipt(c *gin.Context) {
	claims, _ := c.Get(receipt.ContextKey)
	rc, _ := claims.(receipt.Claims)
	c.JSON(http.StatusOK, gin.H{
		"valid":           true,
		"list_id":         rc.SessionID,
		"professional_id": rc.ProfessionalID,
		"record_id":       rc.RecordID,
		"row_number":      rc.Sequence,
		"entry_time":      rc.EnteredAt,
		"expires_at":      rc.ExpiresAt,
	})
}

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, sentinel.Newf(sentinel.ErrInvalidInput, "malformed request body"))
		return false
	}
	return true
}

// fail maps err to a status. Unexpected errors were already logged with
// context by the service; the client only sees a generic message.
func (h *Handler) fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, sentinel.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, sentinel.ErrInvalidState):
		status, code = http.StatusUnprocessableEntity, "invalid_state"
	case errors.Is(err, sentinel.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, sentinel.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "unavailable"
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		}
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
