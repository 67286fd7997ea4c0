// Package docs swagger 描述，由 swag init 依据 internal/api 的注释生成
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
        "/api/v1/dissect": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "description": "auto 按单段数据判定传输形式（单字节握手、串口帧或 TCP 单元）；stream/serial 按固定传输形式解码。末尾不完整的单元以 pending 字节数返回",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ZVT"],
                "summary": "即时解析 ZVT 字节流",
                "parameters": [
                    {
                        "description": "十六进制输入",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.DissectRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.DissectResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/commands": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["ZVT"],
                "summary": "查询已知控制字段",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/captures": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "按连接、控制字段、方向、时间范围过滤，按抓包时间倒序",
                "produces": ["application/json"],
                "tags": ["抓包"],
                "summary": "查询抓包记录",
                "parameters": [
                    {"type": "string", "description": "连接ID", "name": "conn_id", "in": "query"},
                    {"type": "string", "description": "控制字段，如 0x0601", "name": "control", "in": "query"},
                    {"type": "string", "description": "ecr_to_pt|pt_to_ecr|unknown", "name": "direction", "in": "query"},
                    {"type": "string", "description": "起始时间 RFC3339", "name": "since", "in": "query"},
                    {"type": "string", "description": "截止时间 RFC3339", "name": "until", "in": "query"},
                    {"type": "integer", "description": "每页数量(默认100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "偏移量(默认0)", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/captures/stats": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "按控制字段与方向聚合单元数量",
                "produces": ["application/json"],
                "tags": ["抓包"],
                "summary": "抓包统计",
                "parameters": [
                    {"type": "string", "description": "起始时间 RFC3339，默认最近24小时", "name": "since", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/captures/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["抓包"],
                "summary": "查询单条抓包记录",
                "parameters": [
                    {"type": "integer", "description": "记录ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.CaptureView"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/connections": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["抓包"],
                "summary": "最近活动连接",
                "parameters": [
                    {"type": "integer", "description": "数量(默认100)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/sessions": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["会话"],
                "summary": "查询连接会话",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/sessions/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["会话"],
                "summary": "查询单个连接会话",
                "parameters": [
                    {"type": "string", "description": "连接ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.SessionView"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/sessions/{id}/units": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "需启用 Redis；最新的在前",
                "produces": ["application/json"],
                "tags": ["会话"],
                "summary": "连接最近单元",
                "parameters": [
                    {"type": "string", "description": "连接ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "数量(默认20)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/ws/units": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "每条消息为 {\"type\":\"unit\",\"data\":{...}}；conn_id 为空时推送全部连接",
                "tags": ["ZVT"],
                "summary": "实时单元推送（WebSocket）",
                "parameters": [
                    {"type": "string", "description": "只推送该连接", "name": "conn_id", "in": "query"}
                ],
                "responses": {}
            }
        },
        "/api/v1/ws/stats": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["ZVT"],
                "summary": "实时推送订阅者数量",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "api.DissectRequest": {
            "type": "object",
            "required": ["hex"],
            "properties": {
                "hex": {"type": "string", "example": "060f00"},
                "transport": {"type": "string", "example": "auto"},
                "strict_min_length": {"type": "boolean"},
                "status_length_field": {"type": "boolean"}
            }
        },
        "api.DissectResponse": {
            "type": "object",
            "properties": {
                "transport": {"type": "string"},
                "dissection": {"$ref": "#/definitions/zvt.DissectionView"},
                "frames": {"type": "array", "items": {"$ref": "#/definitions/zvt.FrameView"}},
                "consumed": {"type": "integer"},
                "pending": {"type": "integer"},
                "need_more": {"type": "boolean"},
                "declined": {"type": "boolean"},
                "error": {"type": "string"}
            }
        },
        "api.CaptureView": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "conn_id": {"type": "string"},
                "remote_addr": {"type": "string"},
                "transport": {"type": "string"},
                "control": {"type": "string"},
                "name": {"type": "string"},
                "direction": {"type": "string"},
                "status_ccrc": {"type": "integer"},
                "status_aprc": {"type": "integer"},
                "length_field": {"type": "integer"},
                "length_width": {"type": "integer"},
                "size": {"type": "integer"},
                "payload": {"type": "string"},
                "fields": {"type": "array", "items": {"type": "object"}},
                "fields_stop": {"type": "string"},
                "crc": {"type": "string"},
                "raw_hex": {"type": "string"},
                "captured_at": {"type": "string"}
            }
        },
        "api.SessionView": {
            "type": "object",
            "properties": {
                "conn_id": {"type": "string"},
                "remote_addr": {"type": "string"},
                "server_id": {"type": "string"},
                "transport": {"type": "string"},
                "opened_at": {"type": "string"},
                "last_seen": {"type": "string"},
                "closed_at": {"type": "string"},
                "bytes": {"type": "integer"},
                "units": {"type": "integer"},
                "handshakes": {"type": "integer"},
                "declines": {"type": "integer"},
                "last_control": {"type": "string"},
                "last_direction": {"type": "string"},
                "online": {"type": "boolean"}
            }
        },
        "zvt.FrameView": {
            "type": "object",
            "properties": {
                "transport": {"type": "string"},
                "handshake": {"type": "string"},
                "crc": {"type": "string"},
                "raw": {"type": "string"},
                "unit": {"type": "object"}
            }
        },
        "zvt.DissectionView": {
            "type": "object",
            "properties": {
                "transport": {"type": "string"},
                "consumed": {"type": "integer"},
                "need_more": {"type": "boolean"},
                "declined": {"type": "boolean"},
                "serial": {"type": "object"},
                "units": {"type": "array", "items": {"type": "object"}}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "X-API-Key",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "ZVT Tap API",
	Description:      "ZVT 支付终端协议旁路解析服务",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
