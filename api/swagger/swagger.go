package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campaign Contacts API",
        "description": "Contact list ingestion and campaign recipient management",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Imports", "description": "Contact file uploads"},
        {"name": "Recipients", "description": "Recipient records"},
        {"name": "Campaigns", "description": "Campaign lifecycle and counts"},
        {"name": "Archives", "description": "Deleted recipient history"}
    ],
    "paths": {
        "/imports": {
            "post": {
                "tags": ["Imports"],
                "summary": "Import contacts from a CSV or XLSX file",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "campaignId", "in": "formData", "type": "string"},
                    {"name": "format", "in": "formData", "type": "string", "enum": ["csv", "xlsx"]}
                ],
                "responses": {
                    "200": {"description": "Per-row import report", "schema": {"$ref": "#/definitions/ImportBatch"}},
                    "400": {"description": "Unreadable file or missing email column", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Target campaign is locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "File exceeds the upload limit", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/imports/template": {
            "get": {
                "tags": ["Imports"],
                "summary": "Download the CSV import template",
                "produces": ["text/csv"],
                "responses": {"200": {"description": "CSV template"}}
            }
        },
        "/recipients": {
            "get": {
                "tags": ["Recipients"],
                "summary": "List recipients",
                "parameters": [
                    {"name": "campaignId", "in": "query", "type": "string"},
                    {"name": "unassigned", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"},
                    {"name": "sortBy", "in": "query", "type": "string"},
                    {"name": "sortOrder", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {"200": {"description": "Recipients", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Recipients"],
                "summary": "Create a recipient",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecipientRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Recipient"}},
                    "409": {"description": "Email already exists or campaign locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Recipients"],
                "summary": "Archive and delete recipients matching a filter",
                "parameters": [
                    {"name": "campaignId", "in": "query", "type": "string"},
                    {"name": "unassigned", "in": "query", "type": "boolean"},
                    {"name": "all", "in": "query", "type": "boolean"}
                ],
                "responses": {"200": {"description": "Bulk delete report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/recipients/{id}": {
            "get": {
                "tags": ["Recipients"],
                "summary": "Get a recipient",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "Recipient", "schema": {"$ref": "#/definitions/Recipient"}}, "404": {"description": "Not found"}}
            },
            "put": {
                "tags": ["Recipients"],
                "summary": "Update a recipient",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecipientRequest"}}
                ],
                "responses": {"200": {"description": "Recipient", "schema": {"$ref": "#/definitions/Recipient"}}}
            },
            "delete": {
                "tags": ["Recipients"],
                "summary": "Archive and delete a recipient",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "Archive record"}, "409": {"description": "Campaign locked"}}
            }
        },
        "/campaigns": {
            "get": {
                "tags": ["Campaigns"],
                "summary": "List campaigns",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "Campaigns", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Campaigns"],
                "summary": "Create a draft campaign",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CampaignRequest"}}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/campaigns/reconcile": {
            "post": {
                "tags": ["Campaigns"],
                "summary": "Recount recipients for every campaign",
                "responses": {"200": {"description": "Reconcile report"}}
            }
        },
        "/campaigns/{id}": {
            "get": {
                "tags": ["Campaigns"],
                "summary": "Get a campaign",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "Campaign"}}
            },
            "put": {
                "tags": ["Campaigns"],
                "summary": "Update draft campaign content",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CampaignRequest"}}
                ],
                "responses": {"200": {"description": "Campaign"}, "409": {"description": "Campaign locked"}}
            }
        },
        "/campaigns/{id}/stats": {
            "get": {
                "tags": ["Campaigns"],
                "summary": "Recipient counts by status",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "Campaign stats"}}
            }
        },
        "/campaigns/{id}/transition": {
            "post": {
                "tags": ["Campaigns"],
                "summary": "Move a campaign to a new status",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {"200": {"description": "Campaign"}, "409": {"description": "Transition not allowed"}}
            }
        },
        "/campaigns/{id}/reconcile": {
            "post": {
                "tags": ["Campaigns"],
                "summary": "Recount recipients for one campaign",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "Reconcile result"}}
            }
        },
        "/archives": {
            "get": {
                "tags": ["Archives"],
                "summary": "List archived recipients",
                "parameters": [
                    {"name": "campaignId", "in": "query", "type": "string"},
                    {"name": "email", "in": "query", "type": "string"},
                    {"name": "includeRestored", "in": "query", "type": "boolean"}
                ],
                "responses": {"200": {"description": "Archive records"}}
            }
        },
        "/archives/export": {
            "get": {
                "tags": ["Archives"],
                "summary": "Export archived recipients",
                "parameters": [{"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}],
                "produces": ["text/csv", "application/pdf"],
                "responses": {"200": {"description": "File attachment"}}
            }
        },
        "/archives/{id}/restore": {
            "post": {
                "tags": ["Archives"],
                "summary": "Restore an archived recipient",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "Restored recipient"}, "409": {"description": "Email taken or already restored"}}
            }
        }
    },
    "definitions": {
        "ImportRowResult": {
            "type": "object",
            "properties": {
                "rowNumber": {"type": "integer"},
                "email": {"type": "string"},
                "outcome": {"type": "string", "enum": ["imported", "skipped_duplicate", "skipped_invalid"]},
                "reason": {"type": "string"}
            }
        },
        "ImportBatch": {
            "type": "object",
            "properties": {
                "campaignId": {"type": "string"},
                "totalRows": {"type": "integer"},
                "importedCount": {"type": "integer"},
                "skippedDuplicateCount": {"type": "integer"},
                "skippedInvalidCount": {"type": "integer"},
                "rows": {"type": "array", "items": {"$ref": "#/definitions/ImportRowResult"}}
            }
        },
        "Recipient": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "name": {"type": "string"},
                "company": {"type": "string"},
                "dotCode": {"type": "string"},
                "customFields": {"type": "object"},
                "campaignId": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "RecipientRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "name": {"type": "string"},
                "company": {"type": "string"},
                "dotCode": {"type": "string"},
                "customFields": {"type": "object", "additionalProperties": {"type": "string"}},
                "campaignId": {"type": "string"}
            },
            "required": ["email", "name"]
        },
        "CampaignRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "subject": {"type": "string"},
                "content": {"type": "string"},
                "contentType": {"type": "string", "enum": ["text/html", "text/plain"]}
            },
            "required": ["name"]
        },
        "TransitionRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["draft", "sending", "paused", "completed", "failed"]}
            },
            "required": ["status"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
