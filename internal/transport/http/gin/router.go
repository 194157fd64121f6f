package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	redisrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/redis"
	"github.com/ThisaraGit99/artists-management-core/internal/service"
	"github.com/ThisaraGit99/artists-management-core/internal/service/approval"
	"github.com/ThisaraGit99/artists-management-core/internal/service/dispute"
	"github.com/ThisaraGit99/artists-management-core/internal/service/payments"
	"github.com/ThisaraGit99/artists-management-core/internal/service/query"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/bookings/:id", handleGetBooking(svcs))
	r.GET("/bookings/:id/ledger", handleGetLedger(svcs))

	r.POST("/bookings/:id/capture", handleCapture(svcs))
	r.POST("/bookings/:id/cancel", handleCancel(svcs))

	r.POST("/bookings/:id/disputes", handleOpenDispute(svcs))
	r.GET("/disputes/:id", handleGetDispute(svcs))

	r.POST("/applications/:id/approve", handleApprove(svcs, idem))
	r.POST("/applications/:id/reject", handleReject(svcs))

	// Admin-API
	// TODO: add admin middleware
	admin := r.Group("/admin")
	{
		admin.POST("/disputes/:id/resolve", handleResolveDispute(svcs))
		admin.GET("/disputes/overdue", handleOverdueDisputes(svcs))
		admin.POST("/bookings/:id/release", handleManualRelease(svcs))
		admin.POST("/sweeps/completion", handleRunSweep(svcs, "completion"))
		admin.POST("/sweeps/release", handleRunSweep(svcs, "release"))
		admin.GET("/reconciliation", handleReconciliation(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {object}  domain.Booking
// @Failure  404  {object}  ErrorResponse
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		b, err := svcs.Query.GetBooking(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, b, "private, max-age=15", true)
	}
}

// @Summary  Get booking ledger
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {array}   domain.PaymentTransaction
// @Router   /bookings/{id}/ledger [get]
func handleGetLedger(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		entries, err := svcs.Query.LedgerForBooking(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, entries, "private, max-age=15", true)
	}
}

// @Summary  Record payment capture
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {object}  domain.Booking
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "not awaiting payment / already processed"
// @Router   /bookings/{id}/capture [post]
func handleCapture(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		b, err := svcs.Payments.Capture(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Cancel booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {object}  domain.Booking
// @Failure  409  {object}  ErrorResponse "past the cancellable window"
// @Router   /bookings/{id}/cancel [post]
func handleCancel(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		b, err := svcs.Payments.Cancel(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Open dispute
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  OpenDisputeRequest true "payload"
// @Success  201 {object} OpenDisputeResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already disputed / already released"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /bookings/{id}/disputes [post]
func handleOpenDispute(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req OpenDisputeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		kind := domain.DisputeKind(req.Kind)
		switch kind {
		case domain.DisputeNonDelivery, domain.DisputeQuality, domain.DisputeCancellation:
		default:
			badRequest(c, "invalid kind")
			return
		}

		rlKey := "ip:" + c.ClientIP()

		d, err := svcs.Disputes.Open(
			c.Request.Context(),
			bookingID,
			req.ReporterID,
			kind,
			req.Description,
			req.Evidence,
			rlKey,
		)
		if err != nil {
			if errors.Is(err, dispute.ErrRateLimited) {
				c.Header("Retry-After", "60")
				c.JSON(
					http.StatusTooManyRequests,
					ErrorResponse{Error: "rate limited"},
				)
				return
			}
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, OpenDisputeResponse{DisputeID: d.ID.String()})
	}
}

// @Summary  Get dispute
// @Param    id  path  string  true  "Dispute ID (uuid)"
// @Success  200 {object} domain.Dispute
// @Router   /disputes/{id} [get]
func handleGetDispute(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		disputeID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		d, err := svcs.Query.GetDispute(c.Request.Context(), disputeID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// @Summary  Approve application (idempotent)
// @Param    id  path  int  true  "Application ID"
// @Param    req body  DecideApplicationRequest true "payload"
// @Header   200 {string} Idempotency-Key "echo"
// @Success  200 {object} ApproveResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already decided / idem in progress"
// @Router   /applications/{id}/approve [post]
func handleApprove(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		applicationID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req DecideApplicationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemApprove(applicationID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusOK,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusOK,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		result, err := svcs.Approvals.Approve(
			c.Request.Context(),
			applicationID,
			req.Response,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := ApproveResponse{
			ApplicationID:         result.ApplicationID,
			PendingReconciliation: result.PendingReconciliation,
		}
		if result.BookingID != nil {
			s := result.BookingID.String()
			resp.BookingID = &s
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Reject application
// @Param    id  path  int  true  "Application ID"
// @Param    req body  DecideApplicationRequest true "payload"
// @Success  204
// @Failure  409 {object} ErrorResponse "already decided"
// @Router   /applications/{id}/reject [post]
func handleReject(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		applicationID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req DecideApplicationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Approvals.Reject(
			c.Request.Context(),
			applicationID,
			req.Response,
		); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Resolve dispute
// @Param    id  path  string  true  "Dispute ID (uuid)"
// @Param    req body  ResolveDisputeRequest true "payload"
// @Success  204
// @Failure  400 {object} ErrorResponse "unknown decision"
// @Failure  409 {object} ErrorResponse "already resolved"
// @Router   /admin/disputes/{id}/resolve [post]
func handleResolveDispute(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		disputeID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req ResolveDisputeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Disputes.Resolve(
			c.Request.Context(),
			disputeID,
			domain.DisputeDecision(req.Decision),
			req.Notes,
		); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  List overdue disputes
// @Param    limit  query  int  false  "page size"
// @Success  200 {array} domain.Dispute
// @Router   /admin/disputes/overdue [get]
func handleOverdueDisputes(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := parseIntDefault(c.Query("limit"), 100)
		ds, err := svcs.Disputes.ListOverdue(c.Request.Context(), limit)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ds)
	}
}

// @Summary  Manually release held funds
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.Booking
// @Failure  409 {object} ErrorResponse "not in the releasable window"
// @Router   /admin/bookings/{id}/release [post]
func handleManualRelease(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		b, err := svcs.Payments.Release(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Trigger a sweep pass
// @Param    name  path  string  true  "completion or release"
// @Success  200 {object} SweepResponse
// @Router   /admin/sweeps/{name} [post]
func handleRunSweep(svcs *service.Services, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			scanned      int
			transitioned int
			failures     int
		)
		switch name {
		case "completion":
			rep, err := svcs.CompletionSweep.Run(c.Request.Context())
			if err != nil {
				respondErr(c, err)
				return
			}
			scanned, transitioned, failures = rep.Scanned, rep.Transitioned, len(rep.Failures)
		case "release":
			rep, err := svcs.ReleaseSweep.Run(c.Request.Context())
			if err != nil {
				respondErr(c, err)
				return
			}
			scanned, transitioned, failures = rep.Scanned, rep.Transitioned, len(rep.Failures)
		default:
			badRequest(c, "unknown sweep")
			return
		}
		c.JSON(http.StatusOK, SweepResponse{
			Scanned:      scanned,
			Transitioned: transitioned,
			Failures:     failures,
		})
	}
}

// @Summary  List failed booking-creation tasks
// @Param    limit  query  int  false  "page size"
// @Success  200 {array} domain.BookingTask
// @Router   /admin/reconciliation [get]
func handleReconciliation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := parseIntDefault(c.Query("limit"), 100)
		tasks, err := svcs.Approvals.FailedTasks(c.Request.Context(), limit)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// payments service
	case errors.Is(err, payments.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, payments.ErrNotPayable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking is not awaiting payment"})
		return
	case errors.Is(err, payments.ErrNotReleasable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking funds are not releasable"})
		return
	case errors.Is(err, payments.ErrNotCancellable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking can no longer be cancelled"})
		return
	case errors.Is(err, payments.ErrAlreadyProcessed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking already processed"})
		return
	// dispute service
	case errors.Is(err, dispute.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, dispute.ErrDisputeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "dispute not found"})
		return
	case errors.Is(err, dispute.ErrAlreadyReleased):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "funds already released"})
		return
	case errors.Is(err, dispute.ErrOpenDisputeExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "dispute already open"})
		return
	case errors.Is(err, dispute.ErrNotDisputable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking is not in the dispute window"})
		return
	case errors.Is(err, dispute.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "dispute already resolved"})
		return
	case errors.Is(err, dispute.ErrUnknownDecision):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown decision"})
		return
	// approval service
	case errors.Is(err, approval.ErrApplicationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "application not found"})
		return
	case errors.Is(err, approval.ErrAlreadyDecided):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "application already decided"})
		return
	// query service
	case errors.Is(err, query.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, query.ErrDisputeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "dispute not found"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
