// Package docs registers the OpenAPI description served under /docs.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/webhook": {
            "post": {
                "tags": ["webhook"],
                "summary": "Receive a webhook delivery",
                "consumes": ["application/json", "application/x-www-form-urlencoded", "multipart/form-data"],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dtos.WebhookResponseDTO"}}
                }
            }
        },
        "/status": {
            "get": {
                "tags": ["status"],
                "summary": "Process status",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/requests": {
            "get": {
                "tags": ["requests"],
                "summary": "Captured webhook requests, newest first",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/requests/clear": {
            "post": {
                "tags": ["requests"],
                "summary": "Drop captured requests",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/db/messages": {
            "get": {
                "tags": ["db"],
                "summary": "Most recent stored messages",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"type": "integer", "default": 50, "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/db/search": {
            "get": {
                "tags": ["db"],
                "summary": "Search stored messages",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"type": "string", "name": "text", "in": "query"},
                    {"type": "string", "name": "contact_id", "in": "query"},
                    {"type": "string", "name": "message_type", "in": "query"},
                    {"type": "boolean", "name": "from_me", "in": "query"},
                    {"type": "boolean", "name": "is_group", "in": "query"},
                    {"type": "integer", "name": "days_back", "in": "query"},
                    {"type": "integer", "default": 50, "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/db/stats/daily": {
            "get": {
                "tags": ["db"],
                "summary": "Per-day totals over the trailing window",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"type": "integer", "default": 7, "name": "days", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/db/stats/contacts": {
            "get": {
                "tags": ["db"],
                "summary": "Private-chat contacts ranked by message count",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"type": "integer", "default": 50, "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/db/info": {
            "get": {
                "tags": ["db"],
                "summary": "Store totals and size",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "dtos.WebhookResponseDTO": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "request_id": {"type": "string"},
                "recognized": {"type": "boolean"},
                "saved": {"type": "boolean"},
                "reason": {"type": "string", "enum": ["saved", "duplicate", "not_recognized", "store_error", "not_json", "too_large", "read_error"]}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "wahook API",
	Description:      "Webhook ingestion and query API for WhatsApp provider events.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
