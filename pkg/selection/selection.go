// Package selection 为页面代理提供选区回调端点
package selection

import (
	"encoding/json"
	"net/http"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/message"
)

// Source 返回页面当前选中的原始文本
type Source func() string

// Handler 处理 GET_CURRENT_SELECTION 请求，返回经过校验与截断的选区
func Handler(source Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var env message.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			http.Error(w, "invalid message", http.StatusBadRequest)
			return
		}
		if env.Type != message.KindGetCurrentSelection {
			http.Error(w, "unsupported message type", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.NormalizePrompt(source()))
	})
}
