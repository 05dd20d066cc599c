// Package docs holds the swagger description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "{{.Title}}",
    "description": "{{escape .Description}}",
    "version": "{{.Version}}"
  },
  "basePath": "{{.BasePath}}",
  "paths": {
    "/healthz": {"get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "OK"}, "503": {"description": "Database unavailable"}}}},
    "/api/import": {"post": {"tags": ["import"], "summary": "Import roster CSV data", "consumes": ["multipart/form-data"], "responses": {"200": {"description": "OK"}, "400": {"description": "CSV validation errors"}}}},
    "/api/results/ingest": {"post": {"tags": ["results"], "summary": "Ingest classifier results", "responses": {"200": {"description": "Run summary"}, "503": {"description": "Database unavailable"}}}},
    "/api/results/pull": {"post": {"tags": ["results"], "summary": "Pull classifier feed", "responses": {"200": {"description": "Run summary"}, "502": {"description": "Feed unavailable"}}}},
    "/api/loads/reconcile": {"post": {"tags": ["loads"], "summary": "Recompute manager loads", "responses": {"200": {"description": "Run summary"}}}},
    "/api/runs/latest": {"get": {"tags": ["runs"], "summary": "Latest run", "responses": {"200": {"description": "OK"}, "404": {"description": "No runs"}}}},
    "/api/tickets": {"get": {"tags": ["tickets"], "summary": "List tickets with their classification", "responses": {"200": {"description": "OK"}}}},
    "/api/tickets/{id}": {"get": {"tags": ["tickets"], "summary": "Ticket details", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}},
    "/api/managers": {"get": {"tags": ["managers"], "summary": "List managers with their loads", "responses": {"200": {"description": "OK"}}}},
    "/api/business-units": {"get": {"tags": ["business-units"], "summary": "List business units", "responses": {"200": {"description": "OK"}}}},
    "/api/analytics/query": {"post": {"tags": ["analytics"], "summary": "Run an aggregation", "responses": {"200": {"description": "Histogram, crosstab, no_data or warning"}}}},
    "/api/assistant/chat": {"post": {"tags": ["analytics"], "summary": "Ask a question about the tickets", "responses": {"200": {"description": "OK"}, "429": {"description": "Rate limited"}}}},
    "/api/dashboard": {"get": {"tags": ["analytics"], "summary": "Dashboard", "responses": {"200": {"description": "OK"}}}}
  }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "F.I.R.E. Results API",
	Description:      "Reconciles classifier output, maintains manager loads and serves ticket analytics",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
