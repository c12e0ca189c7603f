// Package docs holds the OpenAPI description served by the Swagger UI.
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
    "paths": {
        "/certificates": {
            "post": {
                "description": "Composes the certificate, stores the selfie and certificate, records the pledge and returns the file or its URLs.",
                "consumes": ["multipart/form-data", "application/json"],
                "produces": ["application/json", "image/png", "image/jpeg", "application/pdf"],
                "tags": ["Certificates"],
                "summary": "Generate a pledge certificate",
                "operationId": "createCertificate",
                "parameters": [
                    {"type": "string", "description": "Pledge session id", "name": "X-Session-ID", "in": "header"},
                    {"type": "string", "description": "Replays a completed request", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "description": "Pledger name", "name": "name", "in": "formData", "required": true},
                    {"type": "file", "description": "Selfie image", "name": "selfie", "in": "formData"},
                    {"type": "string", "description": "png|jpeg|pdf", "name": "format", "in": "query"},
                    {"type": "string", "description": "raster|document|plain", "name": "template", "in": "query"},
                    {"type": "string", "description": "social|high|print", "name": "preset", "in": "query"},
                    {"type": "boolean", "description": "Stream the file instead of JSON", "name": "download", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Replayed", "schema": {"$ref": "#/definitions/handlers.CertificateResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.CertificateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Generation in progress for this session", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Template or encoder failure", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/pledges": {
            "post": {
                "description": "Inserts or updates pledges keyed on pledge_id. Only the fields present in a record are written.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Pledges"],
                "summary": "Upsert pledge records",
                "operationId": "upsertPledges",
                "parameters": [
                    {"description": "One record or an array of records", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.PledgeUpsert"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.UpsertPledgesResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.CollabError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.CollabError"}}
                }
            }
        },
        "/pledges/count": {
            "get": {
                "description": "Returns the stored total and the display figure. Supports weak ETag via If-None-Match and may return 304.",
                "produces": ["application/json"],
                "tags": ["Pledges"],
                "summary": "Pledge counter",
                "operationId": "pledgeCount",
                "parameters": [
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.PledgeCount"}},
                    "304": {"description": "Not Modified", "schema": {"type": "string"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.CollabError"}}
                }
            }
        },
        "/form-options": {
            "get": {
                "description": "Lists the Rajasthan districts and the profession options in the requested language. A Devanagari district submitted back is stored under its English name.",
                "produces": ["application/json"],
                "tags": ["Pledges"],
                "summary": "Pledge form choices",
                "operationId": "formOptions",
                "parameters": [
                    {"type": "string", "description": "en or hi", "name": "lang", "in": "query"},
                    {"type": "string", "description": "used when lang is absent", "name": "Accept-Language", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.FormOptionsResponse"}}
                }
            }
        },
        "/certificate/{pledgeId}": {
            "get": {
                "description": "Redirects to the stored certificate, preferring the PDF.",
                "tags": ["Pledges"],
                "summary": "Stored certificate",
                "operationId": "certificateRedirect",
                "parameters": [
                    {"type": "string", "description": "Pledge id", "name": "pledgeId", "in": "path", "required": true}
                ],
                "responses": {
                    "302": {"description": "Found"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.CollabError"}}
                }
            }
        },
        "/selfie/{pledgeId}": {
            "get": {
                "tags": ["Pledges"],
                "summary": "Stored selfie",
                "operationId": "selfieRedirect",
                "parameters": [
                    {"type": "string", "description": "Pledge id", "name": "pledgeId", "in": "path", "required": true}
                ],
                "responses": {
                    "302": {"description": "Found"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.CollabError"}}
                }
            }
        },
        "/track-link": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Tracking"],
                "summary": "Share link details",
                "operationId": "getTrackLink",
                "parameters": [
                    {"type": "string", "description": "Tracking id", "name": "trackingId", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.TrackLinkInfo"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.CollabError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.CollabError"}}
                }
            },
            "post": {
                "description": "Returns the pledge's tracking link, creating it on first use.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tracking"],
                "summary": "Create a share link",
                "operationId": "createTrackLink",
                "parameters": [
                    {"description": "Link request", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.TrackLinkRequest"}}
                ],
                "responses": {
                    "200": {"description": "Existing link", "schema": {"$ref": "#/definitions/services.TrackLink"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/services.TrackLink"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.CollabError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.CollabError"}}
                }
            }
        },
        "/track-conversion": {
            "post": {
                "description": "Flags the latest click of the session (or tracking link) as converted to the pledge.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tracking"],
                "summary": "Mark a conversion",
                "operationId": "trackConversion",
                "parameters": [
                    {"description": "Conversion", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.TrackConversionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.OKResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.CollabError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.CollabError"}}
                }
            }
        }
    },
    "definitions": {
        "domain.PledgeUpsert": {
            "type": "object",
            "properties": {
                "pledge_id": {"type": "string", "example": "AANIRBHA-2025-ABCDEF-1"},
                "name": {"type": "string"},
                "mobile": {"type": "string"},
                "district": {"type": "string"},
                "constituency": {"type": "string"},
                "village": {"type": "string"},
                "gender": {"type": "string"},
                "profession": {"type": "string"},
                "lang": {"type": "string"},
                "selfie_url": {"type": "string"},
                "certificate_pdf_url": {"type": "string"},
                "certificate_image_url": {"type": "string"},
                "selfie_status": {"type": "string"},
                "certificate_status": {"type": "string"},
                "storage_location": {"type": "string"}
            }
        },
        "handlers.CertificateResponse": {
            "type": "object",
            "properties": {
                "pledge_id": {"type": "string"},
                "certificate_url": {"type": "string"},
                "selfie_url": {"type": "string"},
                "tracking_link": {"type": "string"},
                "tracking_id": {"type": "string"},
                "file_name": {"type": "string"},
                "format": {"type": "string"},
                "certificate_status": {"type": "string"},
                "storage_location": {"type": "string"},
                "degraded": {"type": "array", "items": {"type": "string"}},
                "replayed": {"type": "boolean"}
            }
        },
        "handlers.FormOptionsResponse": {
            "type": "object",
            "properties": {
                "lang": {"type": "string"},
                "districts": {"type": "array", "items": {"type": "string"}},
                "professions": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handlers.CollabError": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "resource not found"}
            }
        },
        "handlers.OKResponse": {
            "type": "object",
            "properties": {"ok": {"type": "boolean"}}
        },
        "handlers.TrackConversionRequest": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string"},
                "trackingId": {"type": "string"},
                "pledgeId": {"type": "string"}
            }
        },
        "handlers.TrackLinkRequest": {
            "type": "object",
            "properties": {
                "pledgeId": {"type": "string"},
                "originalPledgeId": {"type": "string"},
                "metadata": {"type": "object", "additionalProperties": true},
                "createdBy": {"type": "string"}
            }
        },
        "handlers.UpsertPledgesResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "saved": {"type": "integer"}
            }
        },
        "services.PledgeCount": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "display": {"type": "integer"}
            }
        },
        "services.TrackLink": {
            "type": "object",
            "properties": {
                "trackingId": {"type": "string"},
                "trackingLink": {"type": "string"},
                "existing": {"type": "boolean"}
            }
        },
        "services.TrackLinkInfo": {
            "type": "object",
            "properties": {
                "link": {"type": "object"},
                "clicks": {"type": "integer"},
                "conversions": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Pledge Certificate API",
	Description:      "Generates pledge certificates and serves the pledge and tracking endpoints.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
