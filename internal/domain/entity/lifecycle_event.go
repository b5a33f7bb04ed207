package entity

import "time"

// EventType 生命周期事件类型
type EventType string

const (
	EventGenerationStarted EventType = "GENERATION_STARTED"
	EventImageGenerated    EventType = "IMAGE_GENERATED"
	EventGenerationError   EventType = "GENERATION_ERROR"
)

// LifecycleEvent 推送给 UI 的生成生命周期事件
type LifecycleEvent struct {
	ID        string    `json:"id,omitempty"`
	Type      EventType `json:"type"`
	AttemptID string    `json:"attemptId,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// WasTruncated 提示词超长被截断，仅开始事件携带
	WasTruncated bool `json:"wasTruncated,omitempty"`
}

// NewStartedEvent 生成开始
func NewStartedEvent(attemptID, prompt string) *LifecycleEvent {
	return &LifecycleEvent{
		Type:      EventGenerationStarted,
		AttemptID: attemptID,
		Prompt:    prompt,
		Timestamp: time.Now(),
	}
}

// NewGeneratedEvent 生成成功
func NewGeneratedEvent(attemptID, prompt, imageURL string) *LifecycleEvent {
	return &LifecycleEvent{
		Type:      EventImageGenerated,
		AttemptID: attemptID,
		Prompt:    prompt,
		ImageURL:  imageURL,
		Timestamp: time.Now(),
	}
}

// NewErrorEvent 生成失败，message 为面向用户的提示
func NewErrorEvent(attemptID, message string) *LifecycleEvent {
	return &LifecycleEvent{
		Type:      EventGenerationError,
		AttemptID: attemptID,
		Error:     message,
		Timestamp: time.Now(),
	}
}

// Terminal 是否为终态事件
func (e *LifecycleEvent) Terminal() bool {
	return e.Type == EventImageGenerated || e.Type == EventGenerationError
}
