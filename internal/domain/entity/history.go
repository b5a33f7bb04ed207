package entity

import (
	"time"

	"github.com/google/uuid"
)

// HistoryLimit 历史记录上限
const HistoryLimit = 50

// HistoryItem 生成历史条目
type HistoryItem struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey" bson:"_id"`
	Prompt    string    `json:"prompt" gorm:"type:text;not null" bson:"prompt"`
	ImageURL  string    `json:"imageUrl" gorm:"column:image_url;type:text;not null" bson:"image_url"`
	Timestamp time.Time `json:"timestamp" gorm:"column:created_at;index" bson:"created_at"`
}

// TableName 表名
func (HistoryItem) TableName() string {
	return "generation_history"
}

// NewHistoryItem 创建历史条目，ID 为时间有序的 UUIDv7
func NewHistoryItem(prompt, imageURL string, ts time.Time) *HistoryItem {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &HistoryItem{
		ID:        id.String(),
		Prompt:    prompt,
		ImageURL:  imageURL,
		Timestamp: ts,
	}
}

// PrependHistory 将条目插入列表头部，并裁剪到 limit 条
func PrependHistory(list []*HistoryItem, item *HistoryItem, limit int) []*HistoryItem {
	out := make([]*HistoryItem, 0, min(len(list)+1, limit))
	out = append(out, item)
	for _, it := range list {
		if len(out) >= limit {
			break
		}
		out = append(out, it)
	}
	return out
}
