// Package message 定义跨上下文消息协议
package message

import (
	"encoding/json"
	"fmt"

	"imagegen-api/internal/domain/entity"
)

// Kind 消息类型
type Kind string

const (
	// UI -> 后台的命令
	KindGenerateFromPrompt    Kind = "GENERATE_FROM_PROMPT"
	KindGenerateFromSelection Kind = "GENERATE_FROM_SELECTION"

	// 后台 -> 页面的请求
	KindGetCurrentSelection Kind = "GET_CURRENT_SELECTION"

	// 后台 -> UI 的生命周期事件
	KindGenerationStarted = Kind(entity.EventGenerationStarted)
	KindImageGenerated    = Kind(entity.EventImageGenerated)
	KindGenerationError   = Kind(entity.EventGenerationError)
)

// Envelope 消息信封
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message 已解码的消息
type Message interface {
	Kind() Kind
}

// GenerateFromPrompt 使用给定提示词生成
type GenerateFromPrompt struct {
	Prompt string `json:"prompt"`
}

// GenerateFromSelection 使用当前页面选区生成
type GenerateFromSelection struct{}

// GetCurrentSelection 请求页面当前选区
type GetCurrentSelection struct{}

// GenerationStarted 生成开始事件
type GenerationStarted struct {
	Prompt string `json:"prompt"`
}

// ImageGenerated 生成成功事件
type ImageGenerated struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"imageUrl"`
}

// GenerationError 生成失败事件
type GenerationError struct {
	Error string `json:"error"`
}

func (GenerateFromPrompt) Kind() Kind    { return KindGenerateFromPrompt }
func (GenerateFromSelection) Kind() Kind { return KindGenerateFromSelection }
func (GetCurrentSelection) Kind() Kind   { return KindGetCurrentSelection }
func (GenerationStarted) Kind() Kind     { return KindGenerationStarted }
func (ImageGenerated) Kind() Kind        { return KindImageGenerated }
func (GenerationError) Kind() Kind       { return KindGenerationError }

// Decode 按类型标签解码消息
func Decode(env Envelope) (Message, error) {
	switch env.Type {
	case KindGenerateFromPrompt:
		var m GenerateFromPrompt
		if err := unmarshalPayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case KindGenerateFromSelection:
		return GenerateFromSelection{}, nil
	case KindGetCurrentSelection:
		return GetCurrentSelection{}, nil
	case KindGenerationStarted:
		var m GenerationStarted
		if err := unmarshalPayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case KindImageGenerated:
		var m ImageGenerated
		if err := unmarshalPayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case KindGenerationError:
		var m GenerationError
		if err := unmarshalPayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

// Encode 编码消息
func Encode(m Message) (Envelope, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", m.Kind(), err)
	}
	return Envelope{Type: m.Kind(), Payload: payload}, nil
}

// FromEvent 将生命周期事件转换为消息
func FromEvent(ev *entity.LifecycleEvent) (Message, error) {
	switch ev.Type {
	case entity.EventGenerationStarted:
		return GenerationStarted{Prompt: ev.Prompt}, nil
	case entity.EventImageGenerated:
		return ImageGenerated{Prompt: ev.Prompt, ImageURL: ev.ImageURL}, nil
	case entity.EventGenerationError:
		return GenerationError{Error: ev.Error}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
