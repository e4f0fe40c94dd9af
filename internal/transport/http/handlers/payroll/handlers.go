package payrollhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/platform/jobs"
	"hrpay/internal/platform/metrics"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

const (
	endpointRun  = "payroll.run"
	entitySlip   = "salary_slip"
	entityRun    = "payroll_run"
	defaultLimit = 50
	maxLimit     = 200
)

type Handler struct {
	Service     *payroll.Service
	Jobs        *jobs.Service
	Audit       audit.Recorder
	Idempotency middleware.IdempotencyStore
	Metrics     *metrics.Collector
}

func NewHandler(service *payroll.Service, jobSvc *jobs.Service, recorder audit.Recorder, idem middleware.IdempotencyStore, collector *metrics.Collector) *Handler {
	if recorder == nil {
		recorder = audit.LogRecorder{}
	}
	return &Handler{Service: service, Jobs: jobSvc, Audit: recorder, Idempotency: idem, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.Post("/runs", h.handleRunPayroll)
		r.Get("/runs/{runID}", h.handleGetRun)
		r.Post("/slips", h.handleGenerateSlip)
		r.Get("/slips", h.handleListSlips)
		r.Get("/slips/reference/{reference}", h.handleGetSlipByReference)
		r.Get("/slips/{slipID}", h.handleGetSlip)
		r.Post("/slips/{slipID}/pay", h.handleMarkPaid)
		r.Post("/slips/{slipID}/cancel", h.handleCancelSlip)
		r.Get("/slips/{slipID}/pdf", h.handleDownloadSlip)
		r.Get("/periods/{period}/summary", h.handlePeriodSummary)
		r.Get("/periods/{period}/register", h.handleExportRegister)
		r.Post("/tax/preview", h.handleTaxPreview)
	})
}

type runPayload struct {
	EmployeeIDs []int64 `json:"employeeIds"`
	Period      string  `json:"period"`
	Month       int     `json:"month"`
	Year        int     `json:"year"`
	AllActive   bool    `json:"allActive"`
	Async       bool    `json:"async"`
}

type runResponse struct {
	RunID   string             `json:"runId,omitempty"`
	Status  string             `json:"status"`
	Summary string             `json:"summary,omitempty"`
	Result  *payroll.RunResult `json:"result,omitempty"`
}

type slipPayload struct {
	EmployeeID int64  `json:"employeeId"`
	Period     string `json:"period"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
}

type taxPreviewPayload struct {
	Income json.Number `json:"income"`
	Basis  string      `json:"basis"`
}

func (h *Handler) handleRunPayroll(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var payload runPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid payload", reqID)
		return
	}

	v := shared.NewValidator()
	period, _ := v.Period("period", payload.Period, payload.Month, payload.Year)
	if !payload.AllActive && len(payload.EmployeeIDs) == 0 {
		v.Add("employeeIds", "is required unless allActive is set")
	}
	for _, id := range payload.EmployeeIDs {
		if id <= 0 {
			v.Add("employeeIds", "must contain positive ids")
			break
		}
	}
	if v.Reject(w, reqID) {
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader))
	requestHash := middleware.RequestHash(body)
	if idempotencyKey != "" && h.Idempotency != nil {
		stored, found, err := h.Idempotency.Check(r.Context(), endpointRun, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different payload", reqID)
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err, "requestId", reqID)
		}
		if found {
			api.WriteJSON(w, stored.StatusCode, api.Envelope{Success: true, Data: stored.Body, RequestID: reqID})
			return
		}
	}

	req := payroll.BatchRequest{EmployeeIDs: payload.EmployeeIDs, Period: period, AllActive: payload.AllActive}
	ip := r.RemoteAddr
	run := func(ctx context.Context) (any, error) {
		result, err := h.Service.RunPayroll(ctx, req)
		if err != nil {
			return nil, err
		}
		if h.Metrics != nil {
			h.Metrics.RecordRun(result.SucceededCount, result.FailedCount, len(result.Warnings))
		}
		h.record(ctx, audit.Entry{
			Action:     audit.ActionRun,
			EntityType: entityRun,
			EntityID:   period.String(),
			RequestID:  reqID,
			IP:         ip,
			After: map[string]any{
				"requested": result.RequestedCount,
				"succeeded": result.SucceededCount,
				"failed":    result.FailedCount,
			},
		})
		return result, nil
	}

	if payload.Async {
		runID, err := h.Jobs.Enqueue(r.Context(), payroll.JobPayrollRun, run)
		if errors.Is(err, jobs.ErrQueueFull) {
			api.Fail(w, http.StatusServiceUnavailable, "queue_full", "payroll run queue is full", reqID)
			return
		}
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "payroll_run_failed", "failed to queue payroll run", reqID)
			return
		}
		h.respondRun(w, r, idempotencyKey, requestHash, http.StatusAccepted, runResponse{RunID: runID, Status: jobs.StatusQueued})
		return
	}

	runID, details, err := h.Jobs.RunNow(r.Context(), payroll.JobPayrollRun, run)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, _ := details.(payroll.RunResult)
	h.respondRun(w, r, idempotencyKey, requestHash, http.StatusOK, runResponse{
		RunID:   runID,
		Status:  jobs.StatusCompleted,
		Summary: result.Summary(),
		Result:  &result,
	})
}

func (h *Handler) respondRun(w http.ResponseWriter, r *http.Request, key, requestHash string, status int, response runResponse) {
	reqID := middleware.GetRequestID(r.Context())
	if key != "" && h.Idempotency != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			var kept middleware.StoredResponse
			kept, err = h.Idempotency.Save(r.Context(), endpointRun, key, requestHash, middleware.StoredResponse{StatusCode: status, Body: payload})
			if err == nil {
				// kept differs from payload when a concurrent request saved first.
				api.WriteJSON(w, kept.StatusCode, api.Envelope{Success: true, Data: kept.Body, RequestID: reqID})
				return
			}
		}
		slog.Warn("idempotency save failed", "err", err, "requestId", reqID)
	}
	api.WriteJSON(w, status, api.Envelope{Success: true, Data: response, RequestID: reqID})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	run, err := h.Jobs.Get(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, jobs.ErrRunNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "payroll run not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "payroll_run_failed", "failed to load payroll run", reqID)
		return
	}
	api.Success(w, run, reqID)
}

func (h *Handler) handleGenerateSlip(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload slipPayload
	if !decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	period, _ := v.Period("period", payload.Period, payload.Month, payload.Year)
	if payload.EmployeeID <= 0 {
		v.Add("employeeId", "must be a positive id")
	}
	if v.Reject(w, reqID) {
		return
	}

	slip, err := h.Service.GenerateSlip(r.Context(), payload.EmployeeID, period)
	if err != nil {
		if h.Metrics != nil {
			h.Metrics.RecordSlips(0, 1, 0)
		}
		h.fail(w, r, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordSlips(1, 0, len(slip.Warnings))
	}
	h.record(r.Context(), audit.Entry{
		Action:     audit.ActionSlipGenerate,
		EntityType: entitySlip,
		EntityID:   slip.ID,
		RequestID:  reqID,
		IP:         r.RemoteAddr,
		After:      map[string]any{"reference": slip.Reference, "netPayable": slip.NetPayable},
	})
	api.Created(w, slip, reqID)
}

func (h *Handler) handleListSlips(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()
	v := shared.NewValidator()

	var filter payroll.SlipFilter
	if raw := query.Get("period"); raw != "" {
		filter.Period, _ = v.Period("period", raw, 0, 0)
	}
	if raw := query.Get("employeeId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			v.Add("employeeId", "must be a positive id")
		}
		filter.EmployeeID = id
	}
	filter.Status = strings.ToLower(strings.TrimSpace(query.Get("status")))
	v.Enum("status", filter.Status, []string{payroll.SlipStatusGenerated, payroll.SlipStatusPaid, payroll.SlipStatusCancelled}, "must be generated, paid or cancelled")
	if v.Reject(w, reqID) {
		return
	}

	page := shared.ParsePagination(r, defaultLimit, maxLimit)
	slips, total, err := h.Service.ListSlips(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Page(w, slips, page.Meta(total), reqID)
}

func (h *Handler) handleGetSlip(w http.ResponseWriter, r *http.Request) {
	slip, err := h.Service.GetSlip(r.Context(), chi.URLParam(r, "slipID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, slip, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetSlipByReference(w http.ResponseWriter, r *http.Request) {
	slip, err := h.Service.GetSlipByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, slip, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.MarkPaid)
}

func (h *Handler) handleCancelSlip(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) (payroll.SalarySlip, error)) {
	reqID := middleware.GetRequestID(r.Context())
	slipID := chi.URLParam(r, "slipID")
	slip, err := apply(r.Context(), slipID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.record(r.Context(), audit.Entry{
		Action:     audit.ActionSlipStatus,
		EntityType: entitySlip,
		EntityID:   slip.ID,
		RequestID:  reqID,
		IP:         r.RemoteAddr,
		Before:     map[string]string{"status": payroll.SlipStatusGenerated},
		After:      map[string]string{"status": slip.Status},
	})
	api.Success(w, slip, reqID)
}

func (h *Handler) handleDownloadSlip(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	slip, employee, err := h.Service.SlipDocument(r.Context(), chi.URLParam(r, "slipID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	document, err := payroll.RenderSlipPDF(slip, employee)
	if err != nil {
		slog.Error("payslip pdf render failed", "slipId", slip.ID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "payslip_render_failed", "failed to render payslip", reqID)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", slip.Reference))
	if _, err := w.Write(document); err != nil {
		slog.Warn("payslip write failed", "slipId", slip.ID, "err", err)
	}
}

func (h *Handler) handlePeriodSummary(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	period, ok := pathPeriod(w, r)
	if !ok {
		return
	}
	summary, err := h.Service.PeriodSummary(r.Context(), period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, summary, reqID)
}

func (h *Handler) handleExportRegister(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	period, ok := pathPeriod(w, r)
	if !ok {
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = payroll.ExportFormatCSV
	}
	v := shared.NewValidator()
	v.Enum("format", format, []string{payroll.ExportFormatCSV, payroll.ExportFormatXLSX}, "must be csv or xlsx")
	if v.Reject(w, reqID) {
		return
	}

	rows, err := h.Service.RegisterRows(r.Context(), period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	contentType := "text/csv"
	if format == payroll.ExportFormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = payroll.WriteRegisterXLSX(&buf, period, rows)
	} else {
		err = payroll.WriteRegisterCSV(&buf, rows)
	}
	if err != nil {
		slog.Error("export register failed", "period", period.String(), "format", format, "err", err)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to export register", reqID)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=payroll-register-%s.%s", period, format))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("export register write failed", "err", err)
	}
}

func (h *Handler) handleTaxPreview(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload taxPreviewPayload
	if !decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	var income decimal.Decimal
	v.Required("income", payload.Income.String(), "is required")
	if payload.Income != "" {
		income, _ = v.Decimal("income", payload.Income.String())
	}
	v.Enum("basis", payload.Basis, []string{payroll.TaxBasisPeriod, payroll.TaxBasisAnnual}, "must be period or annual")
	if v.Reject(w, reqID) {
		return
	}
	preview, err := h.Service.PreviewTax(r.Context(), income, strings.ToLower(strings.TrimSpace(payload.Basis)))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, preview, reqID)
}

// fail maps payroll errors onto the response envelope.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	var duplicate *payroll.DuplicateSlipError
	switch {
	case errors.As(err, &duplicate):
		api.FailWithDetails(w, http.StatusConflict, payroll.ReasonDuplicateSlip, err.Error(), map[string]any{
			"employeeId": duplicate.EmployeeID,
			"period":     duplicate.Period,
			"slipId":     duplicate.SlipID,
		}, reqID)
	case errors.Is(err, payroll.ErrSlipNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "salary slip not found", reqID)
	case errors.Is(err, payroll.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, payroll.ReasonEmployeeNotFound, err.Error(), reqID)
	case errors.Is(err, payroll.ErrEmployeeInactive):
		api.Fail(w, http.StatusUnprocessableEntity, payroll.ReasonEmployeeInactive, err.Error(), reqID)
	case errors.Is(err, payroll.ErrInvalidRecord):
		api.Fail(w, http.StatusUnprocessableEntity, payroll.ReasonInvalidRecord, err.Error(), reqID)
	case errors.Is(err, payroll.ErrMisconfiguredTaxTable):
		api.Fail(w, http.StatusUnprocessableEntity, payroll.ReasonMisconfiguredTaxTable, err.Error(), reqID)
	case errors.Is(err, payroll.ErrInvalidPeriod), errors.Is(err, payroll.ErrInvalidTaxBasis):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
	case errors.Is(err, payroll.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), reqID)
	default:
		slog.Error("payroll request failed", "path", r.URL.Path, "requestId", reqID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "payroll_failed", "payroll request failed", reqID)
	}
}

func (h *Handler) record(ctx context.Context, entry audit.Entry) {
	if err := h.Audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("audit record failed", "action", entry.Action, "entityId", entry.EntityID, "err", err)
	}
}

func pathPeriod(w http.ResponseWriter, r *http.Request) (payroll.Period, bool) {
	period, err := payroll.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", "period must be YYYY-MM", middleware.GetRequestID(r.Context()))
		return payroll.Period{}, false
	}
	return period, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", middleware.GetRequestID(r.Context()))
			return nil, false
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid payload", middleware.GetRequestID(r.Context()))
		return nil, false
	}
	return body, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid payload", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}
