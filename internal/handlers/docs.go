package handlers

import (
	"encoding/json"
	"net/http"
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the Weather Pipeline API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Weather Pipeline API",
			"description": "Read-only listing API over ingested daily weather records and derived annual statistics",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/weather": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List daily weather records",
					"description": "Retrieve daily records with filtering and pagination, ordered by date descending then station",
					"parameters": []map[string]interface{}{
						{
							"name":        "station_id",
							"in":          "query",
							"description": "Filter by weather station ID",
							"required":    false,
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "date",
							"in":          "query",
							"description": "Filter by exact date (YYYY-MM-DD)",
							"required":    false,
							"schema":      map[string]string{"type": "string", "format": "date"},
						},
						{
							"name":        "start_date",
							"in":          "query",
							"description": "Filter by start date (YYYY-MM-DD)",
							"required":    false,
							"schema":      map[string]string{"type": "string", "format": "date"},
						},
						{
							"name":        "end_date",
							"in":          "query",
							"description": "Filter by end date (YYYY-MM-DD)",
							"required":    false,
							"schema":      map[string]string{"type": "string", "format": "date"},
						},
						{
							"name":        "page",
							"in":          "query",
							"description": "Page number (default: 1)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 1},
						},
						{
							"name":        "limit",
							"in":          "query",
							"description": "Records per page (default: 100, max: 1000)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 100, "maximum": 1000},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Paginated list of daily records in physical units",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"$ref": "#/components/schemas/PaginatedDailyRecords",
									},
								},
							},
						},
						"400": map[string]interface{}{
							"description": "Invalid filter parameter",
						},
					},
				},
			},
			"/api/weather/stats": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List annual weather statistics",
					"description": "Retrieve per-station annual statistics with filtering and pagination, ordered by year descending then station",
					"parameters": []map[string]interface{}{
						{
							"name":        "station_id",
							"in":          "query",
							"description": "Filter by weather station ID",
							"required":    false,
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "year",
							"in":          "query",
							"description": "Filter by exact year",
							"required":    false,
							"schema":      map[string]string{"type": "integer"},
						},
						{
							"name":        "start_year",
							"in":          "query",
							"description": "Filter by start year",
							"required":    false,
							"schema":      map[string]string{"type": "integer"},
						},
						{
							"name":        "end_year",
							"in":          "query",
							"description": "Filter by end year",
							"required":    false,
							"schema":      map[string]string{"type": "integer"},
						},
						{
							"name":        "page",
							"in":          "query",
							"description": "Page number (default: 1)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 1},
						},
						{
							"name":        "limit",
							"in":          "query",
							"description": "Records per page (default: 100, max: 1000)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 100, "maximum": 1000},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Paginated list of annual statistics",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"$ref": "#/components/schemas/PaginatedAnnualStats",
									},
								},
							},
						},
						"400": map[string]interface{}{
							"description": "Invalid filter parameter",
						},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Service and database healthy"},
						"503": map[string]interface{}{"description": "Database unreachable"},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"DailyRecord": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":               map[string]string{"type": "integer"},
						"station_id":       map[string]string{"type": "string"},
						"date":             map[string]string{"type": "string", "format": "date"},
						"max_temp_celsius": map[string]interface{}{"type": "number", "nullable": true},
						"min_temp_celsius": map[string]interface{}{"type": "number", "nullable": true},
						"precipitation_cm": map[string]interface{}{"type": "number", "nullable": true},
					},
				},
				"AnnualStat": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":                  map[string]string{"type": "integer"},
						"station_id":          map[string]string{"type": "string"},
						"year":                map[string]string{"type": "integer"},
						"avg_max_temp":        map[string]interface{}{"type": "number", "nullable": true},
						"avg_min_temp":        map[string]interface{}{"type": "number", "nullable": true},
						"total_precipitation": map[string]interface{}{"type": "number", "nullable": true},
					},
				},
				"PaginatedDailyRecords": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"data": map[string]interface{}{
							"type":  "array",
							"items": map[string]string{"$ref": "#/components/schemas/DailyRecord"},
						},
						"total":       map[string]string{"type": "integer"},
						"page":        map[string]string{"type": "integer"},
						"limit":       map[string]string{"type": "integer"},
						"total_pages": map[string]string{"type": "integer"},
					},
				},
				"PaginatedAnnualStats": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"data": map[string]interface{}{
							"type":  "array",
							"items": map[string]string{"$ref": "#/components/schemas/AnnualStat"},
						},
						"total":       map[string]string{"type": "integer"},
						"page":        map[string]string{"type": "integer"},
						"limit":       map[string]string{"type": "integer"},
						"total_pages": map[string]string{"type": "integer"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
