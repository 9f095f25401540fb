// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with: swag init -g cmd/api/main.go -o docs
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
        "/analyze": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Upload a photo and receive per-muscle development ratings with exercise suggestions. Identical photos are served from cache without using quota.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Analysis"],
                "summary": "Analyze a physique photo",
                "parameters": [
                    {"type": "file", "description": "Photo to analyze", "name": "image", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "Analysis", "schema": {"$ref": "#/definitions/dto.AnalysisResponse"}},
                    "400": {"description": "Invalid input or low image quality", "schema": {"$ref": "#/definitions/dto.AnalysisErrorResponse"}},
                    "403": {"description": "Quota exceeded or no active subscription", "schema": {"$ref": "#/definitions/dto.AnalysisErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/dto.AnalysisErrorResponse"}},
                    "500": {"description": "Model unavailable", "schema": {"$ref": "#/definitions/dto.AnalysisErrorResponse"}},
                    "503": {"description": "Quota service unavailable", "schema": {"$ref": "#/definitions/dto.AnalysisErrorResponse"}}
                }
            }
        },
        "/quota": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Current period usage. Reading the quota never consumes it.",
                "produces": ["application/json"],
                "tags": ["Quota"],
                "summary": "Get quota",
                "responses": {
                    "200": {"description": "Quota", "schema": {"$ref": "#/definitions/dto.QuotaDTO"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}},
                    "403": {"description": "No active subscription", "schema": {"$ref": "#/definitions/dto.AnalysisErrorResponse"}}
                }
            }
        },
        "/billing/plans": {
            "get": {
                "description": "Get a list of available subscription plans. The caller's plan is flagged when authenticated.",
                "produces": ["application/json"],
                "tags": ["Billing"],
                "summary": "List subscription plans",
                "responses": {
                    "200": {"description": "List of plans", "schema": {"type": "array", "items": {"$ref": "#/definitions/dto.PlanDTO"}}}
                }
            }
        },
        "/billing/subscription": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Get the caller's active subscription and its quota",
                "produces": ["application/json"],
                "tags": ["Billing"],
                "summary": "Get subscription",
                "responses": {
                    "200": {"description": "Subscription", "schema": {"$ref": "#/definitions/dto.SubscriptionDTO"}},
                    "403": {"description": "No active subscription", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/billing/checkout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Create a Stripe Checkout session for the selected plan",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Billing"],
                "summary": "Create checkout session",
                "parameters": [
                    {"description": "Plan to purchase", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CheckoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "Checkout session", "schema": {"$ref": "#/definitions/dto.CheckoutResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}},
                    "503": {"description": "Payments not configured", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/billing/cancel": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Cancel the caller's active subscription. Remaining quota is forfeited.",
                "produces": ["application/json"],
                "tags": ["Billing"],
                "summary": "Cancel subscription",
                "responses": {
                    "200": {"description": "Cancelled subscription", "schema": {"$ref": "#/definitions/dto.SubscriptionDTO"}},
                    "403": {"description": "No active subscription", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/webhooks/stripe": {
            "post": {
                "description": "Receives Stripe events. The Stripe-Signature header is verified against the signing secret.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Billing"],
                "summary": "Stripe webhook",
                "responses": {
                    "200": {"description": "Event received"},
                    "400": {"description": "Invalid signature or payload", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "analyzer.MuscleRating": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "rating": {"type": "integer"},
                "exercises": {"type": "array", "items": {"type": "string"}}
            }
        },
        "analyzer.Report": {
            "type": "object",
            "properties": {
                "muscles": {"type": "array", "items": {"$ref": "#/definitions/analyzer.MuscleRating"}},
                "notVisible": {"type": "array", "items": {"type": "string"}},
                "strategy": {"type": "string"},
                "fallback": {"type": "boolean"}
            }
        },
        "dto.QuotaDTO": {
            "type": "object",
            "properties": {
                "used": {"type": "integer"},
                "limit": {"type": "integer"},
                "remaining": {"type": "integer"},
                "resetDate": {"type": "string"}
            }
        },
        "dto.AnalysisResponse": {
            "type": "object",
            "properties": {
                "analysis": {"type": "string"},
                "cached": {"type": "boolean"},
                "report": {"$ref": "#/definitions/analyzer.Report"},
                "model": {"type": "string"},
                "attempts": {"type": "integer"},
                "quota": {"$ref": "#/definitions/dto.QuotaDTO"}
            }
        },
        "dto.AnalysisErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "requiresUpgrade": {"type": "boolean"},
                "quota": {"$ref": "#/definitions/dto.QuotaDTO"},
                "retryAfter": {"type": "integer"}
            }
        },
        "dto.PlanDTO": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "price": {"type": "number"},
                "currency": {"type": "string"},
                "interval": {"type": "string"},
                "monthlyQuota": {"type": "integer"},
                "features": {"type": "array", "items": {"type": "string"}},
                "isPopular": {"type": "boolean"},
                "isCurrent": {"type": "boolean"}
            }
        },
        "dto.SubscriptionDTO": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "planId": {"type": "string"},
                "status": {"type": "string"},
                "startedAt": {"type": "string"},
                "endsAt": {"type": "string"},
                "quota": {"$ref": "#/definitions/dto.QuotaDTO"}
            }
        },
        "dto.CheckoutRequest": {
            "type": "object",
            "required": ["planId"],
            "properties": {
                "planId": {"type": "string"},
                "successUrl": {"type": "string"},
                "cancelUrl": {"type": "string"}
            }
        },
        "dto.CheckoutResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "url": {"type": "string"}
            }
        },
        "utils.ErrorDetail": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {}
            }
        },
        "utils.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"$ref": "#/definitions/utils.ErrorDetail"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "MuscleAI API",
	Description:      "Quota-gated physique photo analysis.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
