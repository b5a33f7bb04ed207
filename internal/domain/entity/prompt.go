// Package entity 定义领域实体
package entity

import (
	"strings"
	"unicode/utf8"
)

// MaxPromptLength 提示词最大字符数，超出部分截断
const MaxPromptLength = 1000

// SelectionResponse 页面选区响应
type SelectionResponse struct {
	Text         string `json:"text"`
	IsValid      bool   `json:"isValid"`
	WasTruncated bool   `json:"wasTruncated"`
	Error        string `json:"error,omitempty"`
}

// NormalizePrompt 去除首尾空白并按字符数截断，空文本视为无效
func NormalizePrompt(raw string) SelectionResponse {
	text := strings.TrimSpace(raw)
	if text == "" {
		return SelectionResponse{IsValid: false}
	}

	resp := SelectionResponse{Text: text, IsValid: true}
	if utf8.RuneCountInString(text) > MaxPromptLength {
		resp.Text = string([]rune(text)[:MaxPromptLength])
		resp.WasTruncated = true
	}
	return resp
}
