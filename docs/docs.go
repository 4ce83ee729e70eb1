// Package docs 由 swag init 生成的接口文档注册，路由注释变更后重新生成
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
        "/api/health": {
            "get": {"produces": ["application/json"], "tags": ["系统"], "summary": "健康检查", "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/assessments": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["评估"], "summary": "评估列表", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["评估"], "summary": "客户转化时创建评估", "responses": {"201": {"description": "Created"}}}
        },
        "/api/admin/assessments/{id}/approve": {
            "post": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["需求生成"], "summary": "审批生成的问卷", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/assessments/{id}": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["评估"], "summary": "评估详情", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/assessments/{id}/generation": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["需求生成"], "summary": "查询生成任务状态", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["需求生成"], "summary": "触发或重试需求生成", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"202": {"description": "Accepted"}}}
        },
        "/api/assessments/{id}/questionnaire": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["问卷"], "summary": "获取问卷", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/assessments/{id}/answers": {
            "post": {"security": [{"BearerAuth": []}], "consumes": ["application/json"], "produces": ["application/json"], "tags": ["问卷"], "summary": "保存单题答案", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/assessments/{id}/submit": {
            "post": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["问卷"], "summary": "提交问卷", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/assessments/{id}/journey": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["问卷"], "summary": "客户旅程", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/assessments/{id}/uploads": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["文档"], "summary": "按上传位列出文件", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "consumes": ["multipart/form-data"], "produces": ["application/json"], "tags": ["文档"], "summary": "上传文档", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "slot_key", "in": "formData", "required": true}, {"type": "file", "name": "file", "in": "formData", "required": true}], "responses": {"201": {"description": "Created"}}}
        },
        "/api/uploads/{id}": {
            "delete": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["文档"], "summary": "删除已上传文件", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/uploads/{id}/download": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["文档"], "summary": "下载已上传文件", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/internal/generation/{id}/complete": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["执行者回调"], "summary": "执行者回调：生成完成", "parameters": [{"type": "string", "name": "X-Runner-Token", "in": "header", "required": true}, {"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/internal/generation/{id}/fail": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["执行者回调"], "summary": "执行者回调：生成失败", "parameters": [{"type": "string", "name": "X-Runner-Token", "in": "header", "required": true}, {"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
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
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Journey 后端 API",
	Description:      "客户旅程推进服务：需求生成、审批、问卷、文档上传与旅程视图。",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
