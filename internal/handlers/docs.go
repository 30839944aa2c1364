package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type object = map[string]interface{}

func queryParam(name, description, typ string) object {
	return object{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      object{"type": typ},
	}
}

func jsonContent(schema object) object {
	return object{"application/json": object{"schema": schema}}
}

var errorSchema = object{
	"type": "object",
	"properties": object{
		"error":   object{"type": "string"},
		"message": object{"type": "string"},
		"code":    object{"type": "integer"},
	},
}

var chartSchema = object{
	"type": "object",
	"properties": object{
		"id":         object{"type": "string"},
		"kind":       object{"type": "string", "enum": []string{"bar", "stacked_bar", "scatter_trend", "pie", "table"}},
		"title":      object{"type": "string"},
		"x_label":    object{"type": "string"},
		"y_label":    object{"type": "string"},
		"categories": object{"type": "array", "items": object{"type": "string"}},
		"series":     object{"type": "array", "items": object{"type": "object"}},
		"points":     object{"type": "array", "items": object{"type": "object"}},
		"trend":      object{"type": "object", "nullable": true},
		"slices":     object{"type": "array", "items": object{"type": "object"}},
		"summary":    object{"type": "object", "nullable": true},
	},
}

// responses builds a response map with the given success body and error codes.
func responses(ok object, errorCodes ...string) object {
	out := object{"200": ok}
	for _, code := range errorCodes {
		status, _ := strconv.Atoi(code)
		out[code] = object{"description": http.StatusText(status), "content": jsonContent(errorSchema)}
	}
	return out
}

func svgResponse(description string) object {
	return object{
		"description": description,
		"content":     object{"image/svg+xml": object{"schema": object{"type": "string"}}},
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the dashboard API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	unit := queryParam("unit", "Time unit column: CRASH_MONTH (default), CRASH_DAY_OF_WEEK or CRASH_HOUR", "string")
	crashType := queryParam("type", "FIRST_CRASH_TYPE value (default: first collision type in the data)", "string")

	spec := object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "Traffic Crash Dashboard API",
			"description": "Aggregated traffic-crash views, chart descriptions and SVG charts",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8050", "description": "Local development server"},
		},
		"paths": object{
			"/api/dashboard": object{
				"get": object{
					"summary":   "Dashboard page model",
					"responses": responses(object{"description": "Page model", "content": jsonContent(object{"type": "object"})}),
				},
			},
			"/api/table": object{
				"get": object{
					"summary": "Paginated dataset preview",
					"parameters": []object{
						queryParam("page", "Page number (default: 1)", "integer"),
						queryParam("limit", "Rows per page (default: configured page size, max 500)", "integer"),
					},
					"responses": responses(object{
						"description": "Preview rows",
						"content": jsonContent(object{
							"type": "object",
							"properties": object{
								"data":        object{"type": "array", "items": object{"type": "array", "items": object{"type": "string"}}},
								"columns":     object{"type": "array", "items": object{"type": "string"}},
								"total":       object{"type": "integer"},
								"page":        object{"type": "integer"},
								"limit":       object{"type": "integer"},
								"total_pages": object{"type": "integer"},
							},
						}),
					}),
				},
			},
			"/api/charts/time": object{
				"get": object{
					"summary":    "Crash counts per time unit with OLS trend",
					"parameters": []object{unit},
					"responses":  responses(object{"description": "Scatter chart", "content": jsonContent(chartSchema)}, "400"),
				},
			},
			"/charts/time.svg": object{
				"get": object{
					"summary":    "Time distribution chart image",
					"parameters": []object{unit},
					"responses":  responses(svgResponse("SVG chart"), "400"),
				},
			},
			"/api/charts/damage": object{
				"get": object{
					"summary":    "Damage shares for one collision type",
					"parameters": []object{crashType},
					"responses":  responses(object{"description": "Pie chart", "content": jsonContent(chartSchema)}, "404"),
				},
			},
			"/charts/damage.svg": object{
				"get": object{
					"summary":    "Damage shares chart image",
					"parameters": []object{crashType},
					"responses":  responses(svgResponse("SVG chart"), "404"),
				},
			},
			"/charts/{id}.svg": object{
				"get": object{
					"summary": "Static dashboard chart image",
					"parameters": []object{{
						"name":     "id",
						"in":       "path",
						"required": true,
						"schema":   object{"type": "string"},
					}},
					"responses": responses(svgResponse("SVG chart"), "404", "422"),
				},
			},
			"/api/export.xlsx": object{
				"get": object{
					"summary": "Excel workbook with one sheet per view",
					"responses": responses(object{
						"description": "Workbook",
						"content": object{
							"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": object{
								"schema": object{"type": "string", "format": "binary"},
							},
						},
					}),
				},
			},
			"/health": object{
				"get": object{
					"summary": "Health check",
					"responses": responses(object{
						"description": "Service is healthy",
						"content": jsonContent(object{
							"type": "object",
							"properties": object{
								"status": object{"type": "string"},
								"source": object{"type": "string"},
								"rows":   object{"type": "integer"},
							},
						}),
					}, "503"),
				},
			},
			"/metrics": object{
				"get": object{
					"summary": "Prometheus metrics",
					"responses": responses(object{
						"description": "Prometheus metrics in text format",
						"content":     object{"text/plain": object{"schema": object{"type": "string"}}},
					}),
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
