package entity

// GenerationSource 生成触发来源
type GenerationSource string

const (
	GenerationSourcePrompt    GenerationSource = "prompt"
	GenerationSourceSelection GenerationSource = "selection"
)

// GenerationResult 单次生成结果（不持久化）
type GenerationResult struct {
	Prompt      string `json:"prompt,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	ErrorKind   string `json:"errorKind,omitempty"`
	UserMessage string `json:"userMessage,omitempty"`
	// WasTruncated 提示词超长被截断
	WasTruncated bool `json:"wasTruncated,omitempty"`
}

// Succeeded 是否成功
func (r *GenerationResult) Succeeded() bool {
	return r != nil && r.ErrorKind == "" && r.ImageURL != ""
}
