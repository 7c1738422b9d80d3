package controllers

import (
	"clarity/internal/api"
	"clarity/internal/models"
	"clarity/internal/pagination"
	"clarity/internal/providers"
	"clarity/internal/services"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type ApiController struct {
	logger  providers.Logger
	service services.DashboardServiceInterface
}

func NewApiController(logger providers.Logger, service services.DashboardServiceInterface) *ApiController {
	return &ApiController{
		logger:  logger,
		service: service,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeResult maps a backend result to a response. Client errors keep their
// status; anything else from upstream is a bad gateway.
func writeResult[T any](w http.ResponseWriter, r models.Result[T]) {
	if r.Success {
		writeJSON(w, http.StatusOK, map[string]any{"data": r.Data})
		return
	}
	status := http.StatusBadGateway
	if r.Status >= 400 && r.Status < 500 {
		status = r.Status
	}
	writeError(w, status, r.Message)
}

func (ac *ApiController) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *api.FetchError
	if errors.As(err, &fe) && fe.Status >= 400 && fe.Status < 500 {
		writeError(w, fe.Status, fe.Message)
		return
	}
	ac.logger.Errorf(providers.GetLogTypeByRequestType(r.Method), "%s %s: %s", r.Method, r.URL.Path, err)
	writeError(w, http.StatusBadGateway, "upstream unavailable")
}

func (ac *ApiController) Institution(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, services.View(ac.service.Institution(r.Context())))
}

func (ac *ApiController) DashboardStats(w http.ResponseWriter, r *http.Request) {
	timeRange, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, services.View(ac.service.DashboardStats(r.Context(), timeRange)))
}

func (ac *ApiController) ChartSeries(w http.ResponseWriter, r *http.Request) {
	metric, year, err := parseChart(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, services.View(ac.service.ChartSeries(r.Context(), metric, year)))
}

func (ac *ApiController) RecentLeads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, services.View(ac.service.RecentLeads(r.Context())))
}

// Leads returns the pagination state; more=1 loads the next page first.
func (ac *ApiController) Leads(w http.ResponseWriter, r *http.Request) {
	pages, err := ac.service.LeadPages(r.Context())
	if err != nil {
		ac.serviceError(w, r, err)
		return
	}
	if r.URL.Query().Get("more") != "1" {
		writeJSON(w, http.StatusOK, pages.Snapshot())
		return
	}
	snap, err := pages.LoadMore(r.Context())
	if errors.Is(err, pagination.ErrFetchInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (ac *ApiController) ReceiveLead(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload == nil {
		writeError(w, http.StatusBadRequest, "Bad Request")
		return
	}
	lead := api.AdaptLead(payload, "")
	if lead.LeadID == "" {
		writeError(w, http.StatusBadRequest, "lead id is required")
		return
	}
	if err := ac.service.ApplyNewLead(r.Context(), lead); err != nil {
		ac.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (ac *ApiController) ResetLeads(w http.ResponseWriter, r *http.Request) {
	pages, err := ac.service.LeadPages(r.Context())
	if err != nil {
		ac.serviceError(w, r, err)
		return
	}
	pages.Reset()
	writeJSON(w, http.StatusOK, pages.Snapshot())
}

func (ac *ApiController) Programs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, services.View(ac.service.Programs(r.Context())))
}

func (ac *ApiController) CreateProgram(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeProgram(w, r)
	if !ok {
		return
	}
	writeResult(w, ac.service.CreateProgram(r.Context(), input))
}

func (ac *ApiController) UpdateProgram(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	input, ok := decodeProgram(w, r)
	if !ok {
		return
	}
	writeResult(w, ac.service.UpdateProgram(r.Context(), id, input))
}

func (ac *ApiController) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	writeResult(w, ac.service.DeleteProgram(r.Context(), id))
}

func (ac *ApiController) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	writeResult(w, ac.service.MarkNotificationRead(r.Context(), id))
}

func (ac *ApiController) LookupCoupon(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	writeResult(w, ac.service.LookupCoupon(r.Context(), code))
}

func (ac *ApiController) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "orderId is required")
		return
	}
	writeJSON(w, http.StatusOK, ac.service.VerifyPayment(r.Context(), orderID))
}

func (ac *ApiController) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := ac.service.ClearAllCaches(r.Context()); err != nil {
		ac.logger.Errorf(providers.TypePost, "Clear caches: %s", err)
		writeError(w, http.StatusInternalServerError, "unable to clear caches")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Subscribe streams the state of one query as server-sent events until the
// client goes away.
func (ac *ApiController) Subscribe(w http.ResponseWriter, r *http.Request) {
	req := services.WatchRequest{Query: r.URL.Query().Get("query")}
	var err error
	switch req.Query {
	case "stats":
		req.TimeRange, err = parseRange(r)
	case "charts":
		req.Metric, req.Year, err = parseChart(r)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	started := false
	err = ac.service.Watch(r.Context(), req, func(v services.QueryView) error {
		gson, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if !started {
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", gson); err != nil {
			return err
		}
		return rc.Flush()
	})
	if err == nil || started {
		return
	}
	if errors.Is(err, services.ErrUnknownQuery) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ac.serviceError(w, r, err)
}

func parseRange(r *http.Request) (models.TimeRange, error) {
	return models.ParseTimeRange(r.URL.Query().Get("range"))
}

func parseChart(r *http.Request) (models.Metric, int, error) {
	metric, err := models.ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		return "", 0, err
	}
	year := time.Now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, err = strconv.Atoi(raw)
		if err != nil || year < 1970 {
			return "", 0, fmt.Errorf("invalid year %q", raw)
		}
	}
	return metric, year, nil
}

func decodeProgram(w http.ResponseWriter, r *http.Request) (models.ProgramInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var input models.ProgramInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request")
		return input, false
	}
	if strings.TrimSpace(input.Name) == "" {
		writeError(w, http.StatusBadRequest, "programName is required")
		return input, false
	}
	return input, true
}
