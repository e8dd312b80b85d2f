// Package docs registers the OfferLens OpenAPI document with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "OfferLens Maintainers",
            "url": "https://github.com/raysh454/offerlens"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/networks": {
            "get": {
                "produces": ["application/json"],
                "tags": ["networks"],
                "summary": "List supported affiliate networks and their thresholds",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}}
                }
            }
        },
        "/offers/validate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["offers"],
                "summary": "Validate and score one offer URL",
                "parameters": [
                    {"description": "Offer", "name": "request", "in": "body", "required": true,
                     "schema": {"$ref": "#/definitions/server.ValidateOfferRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/offers/validate/bulk": {
            "post": {
                "description": "Failures are reported inline at the position of their URL.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["offers"],
                "summary": "Validate a list of offer URLs in batches",
                "parameters": [
                    {"description": "Offers", "name": "request", "in": "body", "required": true,
                     "schema": {"$ref": "#/definitions/server.BulkValidateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/jobs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "List jobs, newest first",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}}
                }
            }
        },
        "/jobs/bulk": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Start a background bulk validation job",
                "parameters": [
                    {"description": "Offers", "name": "request", "in": "body", "required": true,
                     "schema": {"$ref": "#/definitions/server.BulkValidateRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/jobs/{jobID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get a job and its results",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "jobID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["jobs"],
                "summary": "Cancel a running job",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "jobID", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Recent validation results, newest first",
                "parameters": [
                    {"type": "integer", "default": 50, "description": "Maximum number of results", "name": "limit", "in": "query"},
                    {"type": "string", "description": "Only results for this offer URL", "name": "url", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}}
                }
            }
        },
        "/history/errors": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Recent failed validations, newest first",
                "parameters": [
                    {"type": "integer", "default": 50, "description": "Maximum number of records", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}}
                }
            }
        },
        "/history/export": {
            "get": {
                "produces": ["application/json", "text/csv"],
                "tags": ["history"],
                "summary": "Export the validation history",
                "parameters": [
                    {"type": "string", "default": "json", "description": "json or csv", "name": "format", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "server.BulkValidateRequest": {
            "type": "object",
            "properties": {
                "batch_size": {"type": "integer", "example": 5},
                "urls": {"type": "array", "items": {"type": "string"},
                         "example": ["https://vendor.hop.clickbank.net/", "https://www.jvzoo.com/c/1/2"]}
            }
        },
        "server.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "network not supported"}
            }
        },
        "server.ValidateOfferRequest": {
            "type": "object",
            "properties": {
                "url": {"type": "string", "example": "https://www.amazon.com/dp/B08N5WRWNW"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "OfferLens API",
	Description:      "Affiliate offer validation and scoring.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
