// Package provider holds the Swagger document served at /swagger/ by the
// development provider. Regenerate with:
//
//	swag init -g internal/provider/http/router.go -o api/provider --instanceName swagger
package provider

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/authclient"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/token": {
            "post": {
                "security": [{"APIKey": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Issue a session",
                "parameters": [
                    {"type": "string", "description": "password or refresh_token", "name": "grant_type", "in": "query", "required": true},
                    {"description": "Password grant body", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/authsdk.PasswordCredentials"}}
                ],
                "responses": {
                    "200": {"description": "Session", "schema": {"$ref": "#/definitions/authsdk.TokenResponse"}},
                    "400": {"description": "invalid_credentials, email_not_confirmed, refresh_token_not_found, refresh_token_already_used", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}},
                    "429": {"description": "over_request_rate_limit", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}
                }
            }
        },
        "/logout": {
            "post": {
                "security": [{"APIKey": []}, {"BearerAuth": []}],
                "tags": ["Auth"],
                "summary": "Sign out",
                "parameters": [
                    {"type": "string", "description": "local (default)", "name": "scope", "in": "query"}
                ],
                "responses": {
                    "204": {"description": "Signed out"},
                    "401": {"description": "no_authorization, bad_jwt", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}},
                    "403": {"description": "session_not_found", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}
                }
            }
        },
        "/signup": {
            "post": {
                "security": [{"APIKey": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "Create an account",
                "parameters": [
                    {"type": "string", "description": "Where the confirmation link lands", "name": "redirect_to", "in": "query"},
                    {"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.SignUpRequest"}}
                ],
                "responses": {
                    "200": {"description": "Pending user (or authsdk.TokenResponse when auto-confirmed)", "schema": {"$ref": "#/definitions/authsdk.User"}},
                    "400": {"description": "email_address_invalid, bad_json", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}},
                    "422": {"description": "user_already_exists, weak_password", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}
                }
            }
        },
        "/recover": {
            "post": {
                "security": [{"APIKey": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "Request a password recovery link",
                "parameters": [
                    {"type": "string", "description": "Where the recovery link lands", "name": "redirect_to", "in": "query"},
                    {"description": "Address", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.RecoverRequest"}}
                ],
                "responses": {
                    "200": {"description": "Empty object", "schema": {"type": "object"}},
                    "429": {"description": "over_email_send_rate_limit, over_request_rate_limit", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}
                }
            }
        },
        "/verify": {
            "get": {
                "tags": ["Accounts"],
                "summary": "Follow an emailed link",
                "parameters": [
                    {"type": "string", "description": "One-time token", "name": "token", "in": "query", "required": true},
                    {"type": "string", "description": "signup or recovery", "name": "type", "in": "query", "required": true},
                    {"type": "string", "description": "Landing page", "name": "redirect_to", "in": "query"}
                ],
                "responses": {
                    "303": {"description": "Redirect with fragment"},
                    "400": {"description": "validation_failed", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}
                }
            }
        },
        "/user": {
            "get": {
                "security": [{"APIKey": []}, {"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["User"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "User with factors", "schema": {"$ref": "#/definitions/authsdk.User"}},
                    "401": {"description": "no_authorization, bad_jwt", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}
                }
            },
            "put": {
                "security": [{"APIKey": []}, {"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["User"],
                "summary": "Update the current user",
                "parameters": [
                    {"description": "Attributes", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.UserAttributes"}}
                ],
                "responses": {
                    "200": {"description": "Updated user", "schema": {"$ref": "#/definitions/authsdk.User"}},
                    "422": {"description": "weak_password, same_password", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}
                }
            }
        },
        "/factors": {
            "post": {
                "security": [{"APIKey": []}, {"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["MFA"],
                "summary": "Enroll a TOTP factor",
                "parameters": [
                    {"description": "Factor", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.EnrollFactorRequest"}}
                ],
                "responses": {
                    "200": {"description": "New factor", "schema": {"$ref": "#/definitions/authsdk.EnrollFactorResponse"}},
                    "422": {"description": "too_many_enrolled_mfa_factors", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}
                }
            }
        },
        "/factors/{id}": {
            "delete": {
                "security": [{"APIKey": []}, {"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["MFA"],
                "summary": "Remove a factor",
                "parameters": [
                    {"type": "string", "description": "Factor ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Removed factor", "schema": {"$ref": "#/definitions/authsdk.UnenrollResponse"}},
                    "404": {"description": "mfa_factor_not_found", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}
                }
            }
        },
        "/factors/{id}/challenge": {
            "post": {
                "security": [{"APIKey": []}, {"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["MFA"],
                "summary": "Challenge a factor",
                "parameters": [
                    {"type": "string", "description": "Factor ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Challenge", "schema": {"$ref": "#/definitions/authsdk.ChallengeResponse"}},
                    "404": {"description": "mfa_factor_not_found", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}
                }
            }
        },
        "/factors/{id}/verify": {
            "post": {
                "security": [{"APIKey": []}, {"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["MFA"],
                "summary": "Verify a challenge",
                "parameters": [
                    {"type": "string", "description": "Factor ID", "name": "id", "in": "path", "required": true},
                    {"description": "Challenge and code", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.VerifyFactorRequest"}}
                ],
                "responses": {
                    "200": {"description": "aal2 session", "schema": {"$ref": "#/definitions/authsdk.TokenResponse"}},
                    "422": {"description": "mfa_verification_failed, mfa_challenge_expired", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Healthy", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}},
                    "500": {"description": "Database unreachable", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}
                }
            }
        },
        "/_dev/outbox": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Development outbox",
                "parameters": [
                    {"type": "string", "description": "Recipient", "name": "email", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Mails", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.Mail"}}}
                }
            }
        }
    },
    "definitions": {
        "authsdk.PasswordCredentials": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "authsdk.SignUpRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}, "data": {"type": "object"}}
        },
        "authsdk.RecoverRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}}
        },
        "authsdk.UserAttributes": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}, "data": {"type": "object"}}
        },
        "authsdk.Factor": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "friendly_name": {"type": "string"},
                "factor_type": {"type": "string"},
                "status": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "authsdk.User": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "aud": {"type": "string"},
                "role": {"type": "string"},
                "email": {"type": "string"},
                "email_confirmed_at": {"type": "string"},
                "confirmed_at": {"type": "string"},
                "confirmation_sent_at": {"type": "string"},
                "recovery_sent_at": {"type": "string"},
                "last_sign_in_at": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "factors": {"type": "array", "items": {"$ref": "#/definitions/authsdk.Factor"}}
            }
        },
        "authsdk.TokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "token_type": {"type": "string"},
                "expires_in": {"type": "integer"},
                "expires_at": {"type": "integer"},
                "refresh_token": {"type": "string"},
                "user": {"$ref": "#/definitions/authsdk.User"}
            }
        },
        "authsdk.EnrollFactorRequest": {
            "type": "object",
            "properties": {"factor_type": {"type": "string"}, "friendly_name": {"type": "string"}, "issuer": {"type": "string"}}
        },
        "authsdk.TOTPEnrollment": {
            "type": "object",
            "properties": {
                "qr_code": {"type": "string", "example": "data:image/png;base64,iVBORw0KGgo..."},
                "secret": {"type": "string", "example": "JBSWY3DPEHPK3PXP"},
                "uri": {"type": "string", "example": "otpauth://totp/issuer:user@example.com?secret=JBSWY3DPEHPK3PXP&issuer=issuer"}
            }
        },
        "authsdk.EnrollFactorResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "type": {"type": "string"},
                "friendly_name": {"type": "string"},
                "totp": {"$ref": "#/definitions/authsdk.TOTPEnrollment"}
            }
        },
        "authsdk.ChallengeResponse": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "type": {"type": "string"}, "expires_at": {"type": "integer"}}
        },
        "authsdk.VerifyFactorRequest": {
            "type": "object",
            "properties": {"challenge_id": {"type": "string"}, "code": {"type": "string"}}
        },
        "authsdk.UnenrollResponse": {
            "type": "object",
            "properties": {"id": {"type": "string"}}
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {"version": {"type": "string"}, "name": {"type": "string"}, "description": {"type": "string"}}
        },
        "domain.Mail": {
            "type": "object",
            "properties": {"to": {"type": "string"}, "kind": {"type": "string"}, "link": {"type": "string"}, "sent_at": {"type": "string"}}
        },
        "httpx.ErrorBody": {
            "type": "object",
            "properties": {"code": {"type": "integer"}, "error_code": {"type": "string"}, "msg": {"type": "string"}}
        }
    },
    "securityDefinitions": {
        "APIKey": {"type": "apiKey", "name": "apikey", "in": "header"},
        "BearerAuth": {"description": "JWT access token. Format: \"Bearer {token}\".", "type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:9999",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "authclient development provider",
	Description:      "GoTrue-compatible identity provider used for local development and tests.\nAccess tokens are HS256 JWTs carrying aal, amr and session_id claims.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
