package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the profile service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRoutes) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>profile-service - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "profile-service", "version": "v0.1.0" },
  "paths": {
    "/student-details/{id}": {
      "get": {
        "summary": "Render a student profile as PDF",
        "parameters": [ { "name": "id", "in": "path", "required": true, "schema": { "type": "integer", "minimum": 1 } } ],
        "responses": {
          "200": { "description": "profile PDF (inline)", "content": { "application/pdf": {} } },
          "404": { "description": "record not found" },
          "500": { "description": "template or compilation failure" }
        }
      }
    },
    "/handle-new-record": {
      "post": {
        "summary": "Baserow webhook: provision a folder for a newly created row",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"event_type":{"type":"string"},"table_id":{"oneOf":[{"type":"integer"},{"type":"string"}]},"items":{"type":"array","items":{"type":"object"}}}}}}},
        "responses": {
          "200": { "description": "status success|ignored|error", "content": { "application/json": { "schema": {"type":"object","properties":{"status":{"type":"string"},"reason":{"type":"string"},"stage":{"type":"string"},"folder_name":{"type":"string"},"link_added":{"type":"boolean"}}}}}},
          "400": { "description": "malformed payload (only with WEBHOOK_STATUS_CODES=true)" },
          "502": { "description": "provisioning failed (only with WEBHOOK_STATUS_CODES=true)" }
        }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition format" } } } }
  }
}`
