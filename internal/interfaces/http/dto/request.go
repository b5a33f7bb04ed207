package dto

import (
	"encoding/json"
	"time"
)

// GenerateRequest 提示词生成请求
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateResponse 生成受理响应
type GenerateResponse struct {
	AttemptID    string `json:"attemptId"`
	Prompt       string `json:"prompt,omitempty"`
	WasTruncated bool   `json:"wasTruncated,omitempty"`
}

// MessageRequest 带类型标签的命令消息
type MessageRequest struct {
	Type    string          `json:"type" binding:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SetCredentialRequest 设置凭证请求
type SetCredentialRequest struct {
	APIKey string `json:"apiKey" binding:"required"`
}

// RegisterContextRequest 注册页面上下文请求
type RegisterContextRequest struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Endpoint string `json:"endpoint" binding:"required"`
}

// HistoryItemResponse 历史条目
type HistoryItemResponse struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	ImageURL  string    `json:"imageUrl"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryListResponse 历史列表
type HistoryListResponse struct {
	Items []*HistoryItemResponse `json:"items"`
	Total int                    `json:"total"`
}
