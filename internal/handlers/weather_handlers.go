package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"weather-pipeline/internal/models"
	"weather-pipeline/internal/repository"
	"weather-pipeline/internal/services"
	"weather-pipeline/pkg/logging"
	"weather-pipeline/pkg/metrics"
)

// maxPageSize caps the limit parameter on every listing endpoint.
const maxPageSize = 1000

// WeatherHandler handles weather API endpoints
type WeatherHandler struct {
	weatherService *services.WeatherService
	statsService   *services.StatisticsService
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(
	weatherService *services.WeatherService,
	statsService *services.StatisticsService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *WeatherHandler {
	return &WeatherHandler{
		weatherService: weatherService,
		statsService:   statsService,
		logger:         logger,
		metrics:        metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// dailyRecordResponse presents a daily record in physical units. The raw
// integers, sentinel included, stay in storage; conversion happens here.
type dailyRecordResponse struct {
	ID              int64    `json:"id"`
	StationID       string   `json:"station_id"`
	Date            string   `json:"date"`
	MaxTempCelsius  *float64 `json:"max_temp_celsius"`
	MinTempCelsius  *float64 `json:"min_temp_celsius"`
	PrecipitationCm *float64 `json:"precipitation_cm"`
}

func toDailyRecordResponse(rec *models.DailyRecord) dailyRecordResponse {
	return dailyRecordResponse{
		ID:              rec.ID,
		StationID:       rec.StationID,
		Date:            rec.Date.Format("2006-01-02"),
		MaxTempCelsius:  rec.MaxTempCelsius(),
		MinTempCelsius:  rec.MinTempCelsius(),
		PrecipitationCm: rec.PrecipitationCm(),
	}
}

// parsePagination extracts page/limit query parameters with defaults and cap.
func parsePagination(r *http.Request) (page, limit int) {
	page = 1
	limit = 100

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= maxPageSize {
		limit = l
	}
	return page, limit
}

// GetDailyRecords handles GET /api/weather
func (h *WeatherHandler) GetDailyRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/weather").Observe(duration.Seconds())
	}()

	page, limit := parsePagination(r)

	filter := repository.DailyRecordFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if stationID := r.URL.Query().Get("station_id"); stationID != "" {
		filter.StationID = &stationID
	}

	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			h.sendError(w, r, "invalid date format, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.Date = &date
	}

	if startDateStr := r.URL.Query().Get("start_date"); startDateStr != "" {
		startDate, err := time.Parse("2006-01-02", startDateStr)
		if err != nil {
			h.sendError(w, r, "invalid start_date format, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.StartDate = &startDate
	}

	if endDateStr := r.URL.Query().Get("end_date"); endDateStr != "" {
		endDate, err := time.Parse("2006-01-02", endDateStr)
		if err != nil {
			h.sendError(w, r, "invalid end_date format, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.EndDate = &endDate
	}

	records, total, err := h.weatherService.GetDailyRecords(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_RECORDS_ERROR] Failed to get daily records", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/weather")
		h.sendError(w, r, "failed to retrieve daily records", http.StatusInternalServerError)
		return
	}

	data := make([]dailyRecordResponse, 0, len(records))
	for _, rec := range records {
		data = append(data, toDailyRecordResponse(rec))
	}

	response := PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}

	h.metrics.RecordAPIRequest("/api/weather", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetAnnualStats handles GET /api/weather/stats
func (h *WeatherHandler) GetAnnualStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/weather/stats").Observe(duration.Seconds())
	}()

	page, limit := parsePagination(r)

	filter := repository.AnnualStatFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if stationID := r.URL.Query().Get("station_id"); stationID != "" {
		filter.StationID = &stationID
	}

	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			h.sendError(w, r, "invalid year, expected integer", http.StatusBadRequest)
			return
		}
		filter.Year = &year
	}

	if startYearStr := r.URL.Query().Get("start_year"); startYearStr != "" {
		startYear, err := strconv.Atoi(startYearStr)
		if err != nil {
			h.sendError(w, r, "invalid start_year, expected integer", http.StatusBadRequest)
			return
		}
		filter.StartYear = &startYear
	}

	if endYearStr := r.URL.Query().Get("end_year"); endYearStr != "" {
		endYear, err := strconv.Atoi(endYearStr)
		if err != nil {
			h.sendError(w, r, "invalid end_year, expected integer", http.StatusBadRequest)
			return
		}
		filter.EndYear = &endYear
	}

	stats, total, err := h.statsService.GetAnnualStats(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_STATS_ERROR] Failed to get annual stats", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/weather/stats")
		h.sendError(w, r, "failed to retrieve annual stats", http.StatusInternalServerError)
		return
	}

	response := PaginatedResponse{
		Data:       stats,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}

	h.metrics.RecordAPIRequest("/api/weather/stats", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.weatherService.HealthCheck(ctx); err != nil {
		h.logger.Error(ctx, "[HEALTH_CHECK_ERROR] Health check failed", logging.Fields{}, err)
		h.sendJSON(w, map[string]string{
			"status":    "unhealthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}, http.StatusServiceUnavailable)
		return
	}

	h.sendJSON(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// sendJSON sends a JSON response
func (h *WeatherHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *WeatherHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all weather API routes
func (h *WeatherHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/weather", h.GetDailyRecords).Methods("GET")
	router.HandleFunc("/api/weather/stats", h.GetAnnualStats).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
