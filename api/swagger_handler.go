package api

import (
	"net/http"
	"strings"
)

// swaggerDoc is the OpenAPI document for the introspection API. Small
// enough to maintain by hand; %HOST% is substituted at serve time.
const swaggerDoc = `{
  "swagger": "2.0",
  "info": {
    "title": "latchdb introspection API",
    "description": "Wait registry introspection for latchdb's reader/writer latches",
    "version": "1.0.0"
  },
  "host": "%HOST%",
  "basePath": "/",
  "securityDefinitions": {
    "BearerAuth": {
      "type": "apiKey",
      "in": "header",
      "name": "Authorization",
      "description": "Bearer token authentication. Example: \"Bearer <token>\""
    }
  },
  "paths": {
    "/api/v1/semaphore-waits": {
      "get": {
        "tags": ["introspection"],
        "summary": "List semaphore waits",
        "produces": ["application/json"],
        "security": [{"BearerAuth": []}],
        "responses": {"200": {"description": "one row per waiting thread"}}
      }
    },
    "/api/v1/wait-array/info": {
      "get": {
        "tags": ["introspection"],
        "summary": "Dump wait arrays",
        "produces": ["text/plain"],
        "security": [{"BearerAuth": []}],
        "responses": {"200": {"description": "diagnostic dump"}}
      }
    },
    "/api/v1/admin/log-level": {
      "get": {
        "tags": ["admin"],
        "summary": "Get log level",
        "produces": ["application/json"],
        "security": [{"BearerAuth": []}],
        "responses": {"200": {"description": "current level and subsystems"}}
      },
      "post": {
        "tags": ["admin"],
        "summary": "Set log level",
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "security": [{"BearerAuth": []}],
        "responses": {"200": {"description": "level updated"}}
      }
    },
    "/api/v1/admin/trace-subsystems": {
      "post": {
        "tags": ["admin"],
        "summary": "Configure trace subsystems",
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "security": [{"BearerAuth": []}],
        "responses": {"200": {"description": "subsystems updated"}}
      }
    },
    "/health": {
      "get": {
        "tags": ["health"],
        "summary": "Health check",
        "produces": ["application/json"],
        "responses": {"200": {"description": "server is up"}}
      }
    }
  }
}`

// SwaggerDocHandler serves the OpenAPI document consumed by the swagger UI
func SwaggerDocHandler(host string) http.HandlerFunc {
	doc := strings.ReplaceAll(swaggerDoc, "%HOST%", host)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	}
}
