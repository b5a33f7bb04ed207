package pagecontext

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/message"
)

func TestCurrentSelection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env message.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.Type != message.KindGetCurrentSelection {
			t.Errorf("request envelope = %+v, %v", env, err)
		}
		json.NewEncoder(w).Encode(entity.SelectionResponse{Text: "  a red fox  ", IsValid: true})
	}))
	defer srv.Close()

	p := NewHTTPSelectionProvider(time.Second)
	got, err := p.CurrentSelection(context.Background(), &entity.PageContext{ID: "1", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("CurrentSelection: %v", err)
	}
	if !got.IsValid || got.Text != "a red fox" {
		t.Fatalf("got %+v", got)
	}
}

func TestCurrentSelectionTruncatesOversizedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(entity.SelectionResponse{Text: strings.Repeat("x", 1500), IsValid: true})
	}))
	defer srv.Close()

	got, err := NewHTTPSelectionProvider(time.Second).
		CurrentSelection(context.Background(), &entity.PageContext{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Text) != entity.MaxPromptLength || !got.WasTruncated {
		t.Fatalf("len=%d truncated=%v", len(got.Text), got.WasTruncated)
	}
}

func TestCurrentSelectionInvalidPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(entity.SelectionResponse{IsValid: false, Error: "Selection is inside a password field"})
	}))
	defer srv.Close()

	got, err := NewHTTPSelectionProvider(time.Second).
		CurrentSelection(context.Background(), &entity.PageContext{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if got.IsValid || got.Error != "Selection is inside a password field" {
		t.Fatalf("got %+v", got)
	}
}

func TestCurrentSelectionUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	p := NewHTTPSelectionProvider(time.Second)
	page := &entity.PageContext{Endpoint: srv.URL}

	if _, err := p.CurrentSelection(context.Background(), page); err == nil {
		t.Error("expected error for HTTP 500")
	}

	srv.Close()
	if _, err := p.CurrentSelection(context.Background(), page); err == nil {
		t.Error("expected error for closed server")
	}
}

func TestCurrentSelectionTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	p := NewHTTPSelectionProvider(50 * time.Millisecond)
	if _, err := p.CurrentSelection(context.Background(), &entity.PageContext{Endpoint: srv.URL}); err == nil {
		t.Fatal("expected timeout error")
	}
}
