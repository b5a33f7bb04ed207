package entity

import "time"

// PageContext 已注册的页面上下文（浏览器标签页）
type PageContext struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	URL          string    `json:"url,omitempty"`
	Endpoint     string    `json:"endpoint"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registeredAt"`
}
