package pagecontext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/message"
	"imagegen-api/internal/domain/service"
	"imagegen-api/pkg/tracer"
)

// DefaultTimeout 选区请求默认超时
const DefaultTimeout = 5 * time.Second

var _ service.SelectionProvider = (*HTTPSelectionProvider)(nil)

// HTTPSelectionProvider 通过页面注册的回调地址获取选区
type HTTPSelectionProvider struct {
	httpClient *http.Client
}

// NewHTTPSelectionProvider 创建选区提供者
func NewHTTPSelectionProvider(timeout time.Duration) *HTTPSelectionProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSelectionProvider{httpClient: &http.Client{Timeout: timeout}}
}

// CurrentSelection 向页面发送 GET_CURRENT_SELECTION 请求
func (p *HTTPSelectionProvider) CurrentSelection(ctx context.Context, page *entity.PageContext) (*entity.SelectionResponse, error) {
	ctx, span := tracer.Start(ctx, "pagecontext.CurrentSelection")
	defer span.End()
	span.SetAttributes(attribute.String("context.id", page.ID))

	resp, err := p.request(ctx, page.Endpoint)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	return resp, nil
}

func (p *HTTPSelectionProvider) request(ctx context.Context, endpoint string) (*entity.SelectionResponse, error) {
	body, err := json.Marshal(message.Envelope{Type: message.KindGetCurrentSelection})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build selection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("selection request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("selection request returned HTTP %d: %s", res.StatusCode, raw)
	}

	var out entity.SelectionResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid selection response: %w", err)
	}

	if out.IsValid {
		normalized := entity.NormalizePrompt(out.Text)
		normalized.WasTruncated = normalized.WasTruncated || out.WasTruncated
		out = normalized
	}
	return &out, nil
}
