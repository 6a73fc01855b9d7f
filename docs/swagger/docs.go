// Package swagger registers the OpenAPI document served under /swagger.
package swagger

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
        "ApiKey": {"type": "apiKey", "name": "X-API-Key", "in": "header"},
        "AutomationSecret": {"type": "apiKey", "name": "X-Automation-Secret", "in": "header"}
    },
    "paths": {
        "/api/v1/bootstrap": {
            "post": {
                "security": [{"ApiKey": []}],
                "tags": ["bootstrap"],
                "summary": "Bootstrap a hotel from the provider",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/bootstrap.Request"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad request"}, "404": {"description": "Hotel not linked"}, "502": {"description": "Provider error"}}
            }
        },
        "/api/v1/sync/pull": {
            "post": {
                "security": [{"ApiKey": []}, {"AutomationSecret": []}],
                "tags": ["sync"],
                "summary": "Pull reservations",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/channelsync.PullRequest"}}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Unknown connection"}, "502": {"description": "Provider error"}}
            }
        },
        "/api/v1/sync/push": {
            "post": {
                "security": [{"ApiKey": []}, {"AutomationSecret": []}],
                "tags": ["sync"],
                "summary": "Push rates and availability",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/channelsync.PushRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "No changes"}, "404": {"description": "Room type not mapped"}, "502": {"description": "Provider error"}}
            }
        },
        "/api/v1/availability/check": {
            "post": {
                "security": [{"ApiKey": []}, {"AutomationSecret": []}],
                "tags": ["inventory"],
                "summary": "Check availability of a room type",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/inventory.Request"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid range"}}
            }
        },
        "/api/v1/tokens/{connectionID}/diagnostics": {
            "get": {
                "security": [{"ApiKey": []}],
                "tags": ["tokens"],
                "summary": "Token diagnostics",
                "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "connectionID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Unknown connection"}}
            }
        },
        "/api/v1/tokens/{connectionID}/{type}/refresh": {
            "post": {
                "security": [{"ApiKey": []}],
                "tags": ["tokens"],
                "summary": "Force a token refresh",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "connectionID", "in": "path", "required": true},
                    {"type": "string", "enum": ["read", "write"], "name": "type", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Cannot authenticate"}, "502": {"description": "Refresh rejected"}}
            }
        },
        "/api/v1/sync/{hotelID}/audit": {
            "get": {
                "security": [{"ApiKey": []}],
                "tags": ["ledger"],
                "summary": "Recent audit records of a hotel",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "hotelID", "in": "path", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/sync/{hotelID}/state": {
            "get": {
                "security": [{"ApiKey": []}],
                "tags": ["ledger"],
                "summary": "Sync state of a hotel",
                "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "hotelID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "No state"}}
            }
        },
        "/api/v1/sync/{hotelID}/enabled": {
            "put": {
                "security": [{"ApiKey": []}],
                "tags": ["ledger"],
                "summary": "Enable or disable scheduled sync",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "hotelID", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/ledger.EnabledRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad request"}}
            }
        }
    },
    "definitions": {
        "bootstrap.Request": {
            "type": "object",
            "properties": {"hotelId": {"type": "integer"}, "propertyId": {"type": "string"}}
        },
        "channelsync.DateRange": {
            "type": "object",
            "properties": {"from": {"type": "string"}, "to": {"type": "string"}}
        },
        "channelsync.PullRequest": {
            "type": "object",
            "properties": {
                "connectionId": {"type": "integer"},
                "dateRange": {"$ref": "#/definitions/channelsync.DateRange"},
                "syncType": {"type": "string", "enum": ["manual", "scheduled"]},
                "syncDirection": {"type": "string", "enum": ["pull"]}
            }
        },
        "channelsync.Changes": {
            "type": "object",
            "properties": {
                "rate": {"type": "number"},
                "numAvail": {"type": "integer"},
                "minStay": {"type": "integer"},
                "maxStay": {"type": "integer"},
                "stopSell": {"type": "boolean"},
                "closedArrival": {"type": "boolean"}
            }
        },
        "channelsync.PushRequest": {
            "type": "object",
            "properties": {
                "hotelId": {"type": "integer"},
                "roomTypeId": {"type": "integer"},
                "start": {"type": "string"},
                "end": {"type": "string"},
                "changes": {"$ref": "#/definitions/channelsync.Changes"}
            }
        },
        "inventory.Request": {
            "type": "object",
            "properties": {
                "room_type_id": {"type": "integer"},
                "check_in": {"type": "string"},
                "check_out": {"type": "string"},
                "rooms": {"type": "integer"},
                "allow_overbooking": {"type": "boolean"}
            }
        },
        "ledger.EnabledRequest": {
            "type": "object",
            "properties": {"enabled": {"type": "boolean"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Channel Manager Sync API",
	Description:      "Bootstrap, reservation pull and rate push against an external channel manager.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
