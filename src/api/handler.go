package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"

	"github.com/stratlab/backtest-service/src/indicators"
	"github.com/stratlab/backtest-service/src/models"
	"github.com/stratlab/backtest-service/src/optimizer"
	"github.com/stratlab/backtest-service/src/utils"
)

var svc *Service

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func NewErrorResponse(errType string, message string) *errorResponse {
	return &errorResponse{
		Type: errType,
		Msg:  message,
	}
}

func setResponse(response interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("SetResponse: encode: %w", err)
	}

	return nil
}

func setErrorResponse(errType string, statusCode int, err error, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := NewErrorResponse(errType, err.Error())
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		return encodeErr
	}

	return nil
}

// statusFromError maps the error taxonomy onto HTTP status codes. Client
// mistakes are 400, unknown ids are 404, everything else is 500.
func statusFromError(err error) int {
	var validationErr *models.ValidationError
	var dataErr *models.DataError
	var missingErr *models.MissingIndicatorError
	var indicatorErr *models.IndicatorError
	var setupErr *models.OptimizationSetupError
	var notFoundErr *models.NotFoundError

	switch {
	case errors.As(err, &notFoundErr):
		return 404
	case errors.As(err, &validationErr),
		errors.As(err, &dataErr),
		errors.As(err, &missingErr),
		errors.As(err, &indicatorErr),
		errors.As(err, &setupErr),
		errors.Is(err, models.ErrDataUnavailable):
		return 400
	default:
		return 500
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if err := setResponse(response, w); err != nil {
		setErrorResponse("handleHealth: failed to set response", 500, err, w)
		return
	}
}

func handleStrategies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "POST":
		var spec models.StrategySpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			setErrorResponse("createStrategy: failed to decode request", 400, err, w)
			return
		}

		created, err := svc.CreateStrategy(&spec)
		if err != nil {
			setErrorResponse("createStrategy: failed to create strategy", statusFromError(err), err, w)
			return
		}

		if err := setResponse(created, w); err != nil {
			setErrorResponse("createStrategy: failed to set response", 500, err, w)
			return
		}
	case "GET":
		specs, err := svc.ListStrategies()
		if err != nil {
			setErrorResponse("listStrategies: failed to list strategies", statusFromError(err), err, w)
			return
		}

		if err := setResponse(specs, w); err != nil {
			setErrorResponse("listStrategies: failed to set response", 500, err, w)
			return
		}
	default:
		w.WriteHeader(404)
	}
}

func handleStrategy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		setErrorResponse("handleStrategy: failed to parse strategy id", 400, err, w)
		return
	}

	switch r.Method {
	case "GET":
		spec, err := svc.GetStrategy(id)
		if err != nil {
			setErrorResponse("handleStrategy: failed to get strategy", statusFromError(err), err, w)
			return
		}

		if err := setResponse(spec, w); err != nil {
			setErrorResponse("handleStrategy: failed to set response", 500, err, w)
			return
		}
	case "DELETE":
		if err := svc.DeleteStrategy(id); err != nil {
			setErrorResponse("handleStrategy: failed to delete strategy", statusFromError(err), err, w)
			return
		}

		if err := setResponse(map[string]interface{}{"deleted": id}, w); err != nil {
			setErrorResponse("handleStrategy: failed to set response", 500, err, w)
			return
		}
	default:
		w.WriteHeader(404)
	}
}

type runBacktestRequest struct {
	StrategyID     *uuid.UUID           `json:"strategy_id"`
	Strategy       *models.StrategySpec `json:"strategy"`
	StartDate      string               `json:"start_date"`
	EndDate        string               `json:"end_date"`
	InitialCapital float64              `json:"initial_capital"`
}

func (req *runBacktestRequest) dateRange() (time.Time, time.Time, error) {
	start, err := utils.ParseDate(req.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	end, err := utils.ParseDate(req.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s is before start_date %s", req.EndDate, req.StartDate)
	}

	// make the end date inclusive
	return start, end.Add(24*time.Hour - time.Nanosecond), nil
}

func handleBacktests(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(404)
		return
	}

	var req runBacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		setErrorResponse("runBacktest: failed to decode request", 400, err, w)
		return
	}

	start, end, err := req.dateRange()
	if err != nil {
		setErrorResponse("runBacktest: invalid date range", 400, err, w)
		return
	}

	result, err := svc.RunBacktest(r.Context(), req.StrategyID, req.Strategy, start, end, req.InitialCapital)
	if err != nil {
		setErrorResponse("runBacktest: failed to run backtest", statusFromError(err), err, w)
		return
	}

	if err := setResponse(result, w); err != nil {
		setErrorResponse("runBacktest: failed to set response", 500, err, w)
		return
	}
}

type startOptimizationRequest struct {
	StrategyID     uuid.UUID                   `json:"strategy_id"`
	StartDate      string                      `json:"start_date"`
	EndDate        string                      `json:"end_date"`
	InitialCapital float64                     `json:"initial_capital"`
	Trials         int                         `json:"trials"`
	Weights        *optimizer.ObjectiveWeights `json:"objective_weights"`
}

func handleOptimizations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "POST":
		var req startOptimizationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			setErrorResponse("startOptimization: failed to decode request", 400, err, w)
			return
		}

		if req.StrategyID == uuid.Nil {
			setErrorResponse("startOptimization: missing strategy id", 400, fmt.Errorf("strategy_id is required"), w)
			return
		}

		dateReq := runBacktestRequest{StartDate: req.StartDate, EndDate: req.EndDate}
		start, end, err := dateReq.dateRange()
		if err != nil {
			setErrorResponse("startOptimization: invalid date range", 400, err, w)
			return
		}

		config := optimizer.DefaultConfig()
		if req.Trials > 0 {
			config.Trials = req.Trials
		}
		if req.Weights != nil {
			config.Weights = *req.Weights
		}

		jobID, err := svc.StartOptimization(r.Context(), req.StrategyID, start, end, req.InitialCapital, config)
		if err != nil {
			setErrorResponse("startOptimization: failed to start optimization", statusFromError(err), err, w)
			return
		}

		response := map[string]interface{}{
			"optimization_id": jobID,
			"status":          models.JobStatusStarting,
		}

		if err := setResponse(response, w); err != nil {
			setErrorResponse("startOptimization: failed to set response", 500, err, w)
			return
		}
	case "GET":
		listOptimizations(w, r)
	default:
		w.WriteHeader(404)
	}
}

type listOptimizationsQuery struct {
	Status string `schema:"status"`
}

func listOptimizations(w http.ResponseWriter, r *http.Request) {
	var query listOptimizationsQuery
	if err := schema.NewDecoder().Decode(&query, r.URL.Query()); err != nil {
		setErrorResponse("listOptimizations: failed to decode query", 400, err, w)
		return
	}

	jobs := make([]map[string]interface{}, 0)
	for _, id := range svc.ListOptimizations() {
		job, err := svc.GetOptimization(id)
		if err != nil {
			log.Warnf("listOptimizations: skipping job %s: %v", id, err)
			continue
		}

		if query.Status != "" && string(job.Status) != query.Status {
			continue
		}

		jobs = append(jobs, map[string]interface{}{
			"optimization_id": job.ID,
			"strategy_id":     job.StrategyID,
			"status":          job.Status,
			"progress":        job.Progress,
			"created_at":      job.CreatedAt,
		})
	}

	if err := setResponse(jobs, w); err != nil {
		setErrorResponse("listOptimizations: failed to set response", 500, err, w)
		return
	}
}

func handleOptimization(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		setErrorResponse("handleOptimization: failed to parse optimization id", 400, err, w)
		return
	}

	job, err := svc.GetOptimization(id)
	if err != nil {
		setErrorResponse("handleOptimization: failed to get optimization", statusFromError(err), err, w)
		return
	}

	if err := setResponse(job, w); err != nil {
		setErrorResponse("handleOptimization: failed to set response", 500, err, w)
		return
	}
}

func handleOptimizationExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		setErrorResponse("exportOptimization: failed to parse optimization id", 400, err, w)
		return
	}

	job, err := svc.GetOptimization(id)
	if err != nil {
		setErrorResponse("exportOptimization: failed to get optimization", statusFromError(err), err, w)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=optimization_%s.csv", id))

	writer := csv.NewWriter(w)
	header := []string{"iteration", "objective_value", "returns", "win_rate", "max_drawdown", "sharpe_ratio", "failed"}
	for _, desc := range job.Space {
		header = append(header, desc.Name)
	}

	if err := writer.Write(header); err != nil {
		log.Errorf("exportOptimization: failed to write header: %v", err)
		return
	}

	for _, iter := range job.Iterations {
		row := []string{
			strconv.Itoa(iter.Trial),
			formatFloat(iter.Objective),
			formatFloat(iter.Returns),
			formatFloat(iter.WinRate),
			formatFloat(iter.MaxDrawdown),
			formatFloat(iter.SharpeRatio),
			strconv.FormatBool(iter.Failed),
		}

		for _, desc := range job.Space {
			row = append(row, formatFloat(iter.Params[desc.Name]))
		}

		if err := writer.Write(row); err != nil {
			log.Errorf("exportOptimization: failed to write row %d: %v", iter.Trial, err)
			return
		}
	}

	writer.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func handleOptimizationSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(404)
		return
	}

	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		setErrorResponse("saveOptimization: failed to parse optimization id", 400, err, w)
		return
	}

	spec, err := svc.SaveOptimization(id)
	if err != nil {
		setErrorResponse("saveOptimization: failed to save optimization", statusFromError(err), err, w)
		return
	}

	if err := setResponse(spec, w); err != nil {
		setErrorResponse("saveOptimization: failed to set response", 500, err, w)
		return
	}
}

func handleIndicators(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	if err := setResponse(indicators.Catalog(), w); err != nil {
		setErrorResponse("handleIndicators: failed to set response", 500, err, w)
		return
	}
}

func SetupHandler(router *mux.Router, service *Service) {
	svc = service

	router.HandleFunc("/health", handleHealth)
	router.HandleFunc("/strategies", handleStrategies)
	router.HandleFunc("/strategies/{id}", handleStrategy)
	router.HandleFunc("/backtests", handleBacktests)
	router.HandleFunc("/optimizations", handleOptimizations)
	router.HandleFunc("/optimizations/{id}", handleOptimization)
	router.HandleFunc("/optimizations/{id}/export", handleOptimizationExport)
	router.HandleFunc("/optimizations/{id}/save", handleOptimizationSave)
	router.HandleFunc("/indicators", handleIndicators)
}
