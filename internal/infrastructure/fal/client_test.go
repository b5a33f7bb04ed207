package fal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	apperrors "imagegen-api/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithEndpoint(srv.URL), WithTimeout(2*time.Second))
}

func TestGenerateSuccess(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"images": [
				{"url": "https://fal.media/x.jpg", "width": 1024, "height": 768, "content_type": "image/jpeg"},
				{"url": "https://fal.media/ignored.jpg", "width": 1024, "height": 768, "content_type": "image/jpeg"}
			],
			"timings": {"inference": 0.4},
			"seed": 42,
			"has_nsfw_concepts": [false],
			"prompt": "a red fox"
		}`))
	})

	got, err := c.Generate(context.Background(), "a red fox", "fal-key-1234567890")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "https://fal.media/x.jpg" {
		t.Errorf("url = %q", got)
	}
	if gotAuth != "Key fal-key-1234567890" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotBody["prompt"] != "a red fox" ||
		gotBody["image_size"] != "landscape_4_3" ||
		gotBody["num_inference_steps"] != float64(4) ||
		gotBody["num_images"] != float64(1) {
		t.Errorf("body = %v", gotBody)
	}
}

func TestGenerateStatusClassification(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		code    apperrors.ErrorCode
		message string
	}{
		{http.StatusUnauthorized, `{"detail":"bad key"}`, apperrors.CodeAuthError, apperrors.MsgAuthError},
		{http.StatusForbidden, ``, apperrors.CodeAuthError, apperrors.MsgAuthError},
		{http.StatusTooManyRequests, ``, apperrors.CodeRateLimited, apperrors.MsgRateLimited},
		{http.StatusBadRequest, `{"detail":"nope"}`, apperrors.CodeBadRequest, apperrors.MsgBadRequest},
		{http.StatusInternalServerError, ``, apperrors.CodeServiceUnavailable, apperrors.MsgServiceUnavailable},
		{http.StatusBadGateway, ``, apperrors.CodeServiceUnavailable, apperrors.MsgServiceUnavailable},
		{599, ``, apperrors.CodeServiceUnavailable, apperrors.MsgServiceUnavailable},
		{http.StatusNotFound, `{"detail":"Application not found"}`, apperrors.CodeAPIError, "Generation failed: Application not found"},
		{http.StatusUnprocessableEntity, `{"detail":[{"msg":"prompt too long"}]}`, apperrors.CodeAPIError, "Generation failed: prompt too long"},
		{http.StatusConflict, `plain text failure`, apperrors.CodeAPIError, "Generation failed: plain text failure"},
		{http.StatusTeapot, ``, apperrors.CodeAPIError, apperrors.MsgGenerationFailed},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Generate(context.Background(), "p", "fal-key-1234567890")
			appErr := apperrors.AsAppError(err)
			if appErr.Code != tt.code {
				t.Fatalf("code = %s, want %s", appErr.Code, tt.code)
			}
			if appErr.Message != tt.message {
				t.Fatalf("message = %q, want %q", appErr.Message, tt.message)
			}
			if !strings.Contains(appErr.Detail, "status=") {
				t.Errorf("detail should keep the status for diagnostics: %q", appErr.Detail)
			}
		})
	}
}

func TestGenerateErrorTextKeepsRunes(t *testing.T) {
	body := `{"detail":"` + strings.Repeat("生成失败", 60) + `"}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(body))
	})

	_, err := c.Generate(context.Background(), "p", "fal-key-1234567890")
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeAPIError {
		t.Fatalf("code = %s", appErr.Code)
	}
	if !utf8.ValidString(appErr.Message) || !utf8.ValidString(appErr.Detail) {
		t.Fatalf("invalid utf-8: message=%q detail=%q", appErr.Message, appErr.Detail)
	}
	want := "Generation failed: " + strings.Repeat("生成失败", 50) + "..."
	if appErr.Message != want {
		t.Fatalf("message = %q", appErr.Message)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"图像生成", 4, "图像生成"},
		{"图像生成服务", 2, "图像..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestGenerateResponseValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code apperrors.ErrorCode
		msg  string
	}{
		{"no images", `{"images": []}`, apperrors.CodeMalformedResponse, apperrors.MsgInvalidResponse},
		{"missing images", `{"seed": 1}`, apperrors.CodeMalformedResponse, apperrors.MsgInvalidResponse},
		{"empty url", `{"images": [{"url": ""}]}`, apperrors.CodeMalformedResponse, apperrors.MsgInvalidResponse},
		{"unparsable", `<html>oops</html>`, apperrors.CodeParseError, apperrors.MsgInvalidResponse},
		{"bad scheme", `{"images": [{"url": "javascript:alert(1)"}]}`, apperrors.CodeInvalidImageURL, apperrors.MsgInvalidImageURL},
		{"relative url", `{"images": [{"url": "/files/x.jpg"}]}`, apperrors.CodeInvalidImageURL, apperrors.MsgInvalidImageURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Generate(context.Background(), "p", "fal-key-1234567890")
			appErr := apperrors.AsAppError(err)
			if appErr.Code != tt.code || appErr.Message != tt.msg {
				t.Fatalf("got %s %q, want %s %q", appErr.Code, appErr.Message, tt.code, tt.msg)
			}
		})
	}
}

func TestGenerateNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	c := NewClient(WithEndpoint(endpoint), WithTimeout(time.Second))
	_, err := c.Generate(context.Background(), "p", "fal-key-1234567890")
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeNetworkError {
		t.Fatalf("code = %s", appErr.Code)
	}
	if !strings.Contains(appErr.Message, "internet connection") {
		t.Fatalf("message = %q", appErr.Message)
	}
}

func TestGenerateTimeoutIsNetworkError(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	c := NewClient(WithEndpoint(srv.URL), WithTimeout(50*time.Millisecond))
	_, err := c.Generate(context.Background(), "p", "fal-key-1234567890")
	if code := apperrors.CodeOf(err); code != apperrors.CodeNetworkError {
		t.Fatalf("code = %s", code)
	}
}

func TestValidateImageURL(t *testing.T) {
	tests := map[string]bool{
		"https://x/y.png":               true,
		"http://x/y.png?a=1#b":          true,
		"https://fal.media/files/a.jpg": true,
		"":                              false,
		"not a url":                     false,
		"ftp://x/y":                     false,
		"data:image/png;base64,AAAA":    false,
		"https://":                      false,
		"//x/y.png":                     false,
	}
	for in, want := range tests {
		if got := ValidateImageURL(in); got != want {
			t.Errorf("ValidateImageURL(%q) = %v, want %v", in, got, want)
		}
	}
}
