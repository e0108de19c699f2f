// Package docs registers the OpenAPI document served under /swagger/.
// Regenerate with `swag init -g internal/platform/httpserver/server.go` after
// changing handler annotations.
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
        "/api/bank-payments/v1/invoices/{invoice_ref}/otp": {
            "post": {
                "description": "Starts a payment attempt for a purchase invoice and asks the bank to send an OTP. The returned unique_id correlates the later payment call.",
                "produces": ["application/json"],
                "tags": ["bank-payments"],
                "summary": "Request a payment OTP",
                "parameters": [
                    {"type": "string", "description": "Purchase invoice reference", "name": "invoice_ref", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.RequestOTPResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/httptransport.RequestOTPResponse"}}
                }
            }
        },
        "/api/bank-payments/v1/invoices/{invoice_ref}/payments": {
            "post": {
                "description": "Pays the invoice's beneficiary using the OTP delivered for unique_id. A 502 with code payment_unverified means the bank may have executed the payment.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["bank-payments"],
                "summary": "Execute a supplier payment",
                "parameters": [
                    {"type": "string", "description": "Purchase invoice reference", "name": "invoice_ref", "in": "path", "required": true},
                    {"description": "Payment request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httptransport.MakePaymentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.MakePaymentResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}}
                }
            }
        },
        "/api/bank-payments/v1/invoices/{invoice_ref}/transactions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["bank-payments"],
                "summary": "List payment attempts for an invoice",
                "parameters": [
                    {"type": "string", "description": "Purchase invoice reference", "name": "invoice_ref", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.ListTransactionsResponse"}}
                }
            }
        },
        "/api/bank-payments/v1/invoices/{invoice_ref}/transactions/{unique_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["bank-payments"],
                "summary": "Get one payment attempt",
                "parameters": [
                    {"type": "string", "description": "Purchase invoice reference", "name": "invoice_ref", "in": "path", "required": true},
                    {"type": "string", "description": "Attempt unique id", "name": "unique_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.GetTransactionResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "httptransport.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "httptransport.RequestOTPResponse": {
            "type": "object",
            "properties": {
                "unique_id": {"type": "string"},
                "status": {"type": "string"},
                "failure_kind": {"type": "string"},
                "failure": {"type": "string"}
            }
        },
        "httptransport.MakePaymentRequest": {
            "type": "object",
            "required": ["otp", "unique_id"],
            "properties": {
                "unique_id": {"type": "string", "maxLength": 140},
                "otp": {"type": "string", "maxLength": 10, "minLength": 4}
            }
        },
        "httptransport.MakePaymentResponse": {
            "type": "object",
            "properties": {
                "unique_id": {"type": "string"},
                "payment_status": {"type": "string"},
                "settlement_id": {"type": "string"}
            }
        },
        "httptransport.TransactionDTO": {
            "type": "object",
            "properties": {
                "invoice_ref": {"type": "string"},
                "unique_id": {"type": "string"},
                "sequence": {"type": "integer"},
                "otp_status": {"type": "string"},
                "otp_response": {"type": "string"},
                "payment_status": {"type": "string"},
                "payment_response": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "httptransport.GetTransactionResponse": {
            "type": "object",
            "properties": {
                "item": {"$ref": "#/definitions/httptransport.TransactionDTO"}
            }
        },
        "httptransport.ListTransactionsResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/httptransport.TransactionDTO"}}
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
	Title:            "Bank supplier payments API",
	Description:      "OTP and payment calls against the bank's hybrid-encrypted API, plus the attempt audit view.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
