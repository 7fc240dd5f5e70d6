// Package docs holds the OpenAPI document served at /docs/doc.json.
//
// The document is registered with swag on import; read it back with
// swag.ReadDoc(docs.InstanceName). Regenerate it from the handler
// annotations with `go generate ./cmd/llmsearch`.
package docs

import "github.com/swaggo/swag"

// InstanceName is the swag registry key.
const InstanceName = "llmsearch"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "securityDefinitions": {
        "BearerToken": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Bearer <token>. Without it, search results are anonymized."
        },
        "PostToken": {
            "type": "apiKey",
            "name": "post_token",
            "in": "query"
        }
    },
    "paths": {
        "/test/health": {
            "get": {
                "tags": ["test"],
                "summary": "Liveness check",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/HealthResponse"}}
                }
            }
        },
        "/test/test_migration": {
            "get": {
                "tags": ["test"],
                "summary": "Migration placeholder",
                "responses": {"200": {"description": "Always true", "schema": {"type": "boolean"}}}
            }
        },
        "/test/test_suite": {
            "get": {
                "tags": ["test"],
                "summary": "Test suite placeholder",
                "responses": {"200": {"description": "Always true", "schema": {"type": "boolean"}}}
            }
        },
        "/test/embed": {
            "post": {
                "tags": ["test"],
                "summary": "Embed texts",
                "description": "Returns one unit-length vector per input text, in order.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/EmbeddingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/EmbeddingResponse"}},
                    "400": {"description": "Malformed body", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "500": {"description": "Model unavailable", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/search/cosine_score": {
            "post": {
                "tags": ["search"],
                "summary": "Nearest records by cosine similarity",
                "description": "Embeds the first text and returns the closest records. Values are masked unless the token matches.",
                "security": [{"BearerToken": []}, {"PostToken": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "limit", "type": "integer", "description": "Maximum results; invalid values fall back to the default"},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/EmbeddingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SearchResponse"}},
                    "400": {"description": "No query text", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "500": {"description": "Model unavailable", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "503": {"description": "Vector search unavailable", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/search/like_by_keyword_score": {
            "post": {
                "tags": ["search"],
                "summary": "Nearest records (keyword mode)",
                "description": "Same pipeline as cosine_score.",
                "security": [{"BearerToken": []}, {"PostToken": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "limit", "type": "integer"},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/EmbeddingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SearchResponse"}},
                    "400": {"description": "No query text", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "500": {"description": "Model unavailable", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "503": {"description": "Vector search unavailable", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/admin/pre_processing": {
            "patch": {"tags": ["admin"], "summary": "Pre-processing placeholder", "responses": {"200": {"description": "Always true", "schema": {"type": "boolean"}}}}
        },
        "/admin/insert": {
            "post": {"tags": ["admin"], "summary": "Insert placeholder", "responses": {"200": {"description": "Always true", "schema": {"type": "boolean"}}}}
        },
        "/admin/update": {
            "patch": {"tags": ["admin"], "summary": "Update placeholder", "responses": {"200": {"description": "Always true", "schema": {"type": "boolean"}}}}
        },
        "/admin/fine_tune": {
            "patch": {"tags": ["admin"], "summary": "Fine-tune placeholder", "responses": {"200": {"description": "Always true", "schema": {"type": "boolean"}}}}
        },
        "/contact/bot_auto_form": {
            "get": {"tags": ["contact"], "summary": "Contact form bot placeholder", "responses": {"200": {"description": "Always true", "schema": {"type": "boolean"}}}}
        },
        "/contact/send_mail": {
            "post": {"tags": ["contact"], "summary": "Send mail placeholder", "responses": {"200": {"description": "Always true", "schema": {"type": "boolean"}}}}
        }
    },
    "definitions": {
        "EmbeddingRequest": {
            "type": "object",
            "required": ["texts"],
            "properties": {
                "texts": {"type": "array", "items": {"type": "string"}}
            }
        },
        "EmbeddingResponse": {
            "type": "object",
            "properties": {
                "embeddings": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}}
            }
        },
        "SearchResponse": {
            "type": "object",
            "properties": {
                "results": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "URL": {"type": "string"},
                            "Email": {"type": "string"},
                            "ContactPage": {"type": "string"},
                            "Title": {"type": "string"}
                        }
                    }
                }
            }
        },
        "HealthResponse": {
            "type": "object",
            "properties": {"status": {"type": "string"}}
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {"detail": {"type": "string"}}
        }
    }
}`

// SwaggerInfo holds the templated fields of the document. The daemon sets
// Version at startup.
var SwaggerInfo = &swag.Spec{
	Version:          "dev",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "LLM Search API",
	Description:      "Text embeddings and vector similarity search over indexed sites.",
	InfoInstanceName: InstanceName,
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
