// Package fal 提供文生图服务客户端
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	apperrors "imagegen-api/pkg/errors"
	"imagegen-api/pkg/logger"
	"imagegen-api/pkg/metrics"
	"imagegen-api/pkg/tracer"
)

const (
	// DefaultEndpoint 默认生成端点
	DefaultEndpoint = "https://fal.run/fal-ai/flux/schnell"

	// 固定生成参数
	imageSize         = "landscape_4_3"
	numInferenceSteps = 4
	numImages         = 1

	maxErrorBody = 4096
	maxErrorText = 200
)

// Client 文生图服务客户端
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option 客户端选项
type Option func(*Client)

// WithEndpoint 覆盖生成端点
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithTimeout 设置单次请求超时
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient 创建客户端
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Prompt            string `json:"prompt"`
	ImageSize         string `json:"image_size"`
	NumInferenceSteps int    `json:"num_inference_steps"`
	NumImages         int    `json:"num_images"`
}

type generateResponse struct {
	Images []struct {
		URL         string `json:"url"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		ContentType string `json:"content_type"`
	} `json:"images"`
	Seed            int64  `json:"seed"`
	HasNSFWConcepts []bool `json:"has_nsfw_concepts"`
	Prompt          string `json:"prompt"`
}

// apiError 非 2xx 响应
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Generate 提交提示词，返回第一张图片的 URL
// 返回的错误均为已分类的 *errors.AppError
func (c *Client) Generate(ctx context.Context, prompt, credential string) (string, error) {
	ctx, span := tracer.Start(ctx, "fal.Generate")
	defer span.End()
	span.SetAttributes(attribute.Int("prompt.length", len(prompt)))

	start := time.Now()
	imageURL, err := c.generate(ctx, prompt, credential)
	metrics.FalRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		appErr := apperrors.AsAppError(err)
		metrics.FalRequestTotal.WithLabelValues(string(appErr.Code)).Inc()
		tracer.RecordError(span, err)
		logger.Warn(ctx, "image generation request failed",
			"code", appErr.Code,
			"detail", appErr.Detail,
			logger.Err(appErr.Err),
		)
		return "", appErr
	}

	metrics.FalRequestTotal.WithLabelValues("success").Inc()
	return imageURL, nil
}

func (c *Client) generate(ctx context.Context, prompt, credential string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Prompt:            prompt,
		ImageSize:         imageSize,
		NumInferenceSteps: numInferenceSteps,
		NumImages:         numImages,
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternalError, apperrors.MsgGenerationFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternalError, apperrors.MsgGenerationFailed)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeNetworkError, apperrors.MsgNetworkError)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", classifyStatus(&apiError{StatusCode: resp.StatusCode, Body: string(raw)})
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeNetworkError, apperrors.MsgNetworkError)
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeParseError, apperrors.MsgInvalidResponse).
			WithDetail(truncate(string(respBody), maxErrorText))
	}
	if len(out.Images) == 0 || out.Images[0].URL == "" {
		return "", apperrors.New(apperrors.CodeMalformedResponse, apperrors.MsgInvalidResponse).
			WithDetail("response has no images")
	}

	imageURL := out.Images[0].URL
	if !ValidateImageURL(imageURL) {
		return "", apperrors.New(apperrors.CodeInvalidImageURL, apperrors.MsgInvalidImageURL).
			WithDetail(truncate(imageURL, maxErrorText))
	}
	return imageURL, nil
}

// classifyStatus 按状态码分类
func classifyStatus(e *apiError) *apperrors.AppError {
	detail := fmt.Sprintf("status=%d body=%s", e.StatusCode, truncate(e.Body, maxErrorText))

	var appErr *apperrors.AppError
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		appErr = apperrors.Wrap(e, apperrors.CodeAuthError, apperrors.MsgAuthError)
	case e.StatusCode == http.StatusTooManyRequests:
		appErr = apperrors.Wrap(e, apperrors.CodeRateLimited, apperrors.MsgRateLimited)
	case e.StatusCode == http.StatusBadRequest:
		appErr = apperrors.Wrap(e, apperrors.CodeBadRequest, apperrors.MsgBadRequest)
	case e.StatusCode >= http.StatusInternalServerError:
		appErr = apperrors.Wrap(e, apperrors.CodeServiceUnavailable, apperrors.MsgServiceUnavailable)
	default:
		msg := apperrors.MsgGenerationFailed
		if text := errorText(e.Body); text != "" {
			msg = "Generation failed: " + text
		}
		appErr = apperrors.Wrap(e, apperrors.CodeAPIError, msg)
	}
	return appErr.WithDetail(detail)
}

// errorText 从错误响应体中提取可读的错误信息
func errorText(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return truncate(body, maxErrorText)
	}

	if len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil && s != "" {
			return truncate(s, maxErrorText)
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 && items[0].Msg != "" {
			return truncate(items[0].Msg, maxErrorText)
		}
	}
	if payload.Message != "" {
		return truncate(payload.Message, maxErrorText)
	}
	if payload.Error != "" {
		return truncate(payload.Error, maxErrorText)
	}
	return ""
}

// ValidateImageURL 仅接受带主机名的绝对 http/https URL
func ValidateImageURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
