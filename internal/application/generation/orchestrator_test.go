package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/message"
	"imagegen-api/internal/domain/service"
	apperrors "imagegen-api/pkg/errors"
)

// recorder 按顺序记录协作方调用与事件
type recorder struct {
	mu     sync.Mutex
	calls  []string
	events []*entity.LifecycleEvent
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Publish(_ context.Context, ev *entity.LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "event:"+string(ev.Type))
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() ([]string, []*entity.LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...), append([]*entity.LifecycleEvent(nil), r.events...)
}

type fakeContexts struct {
	page *entity.PageContext
}

func (f *fakeContexts) ActiveContext(context.Context) (*entity.PageContext, error) {
	if f.page == nil {
		return nil, service.ErrNoActiveContext
	}
	return f.page, nil
}

type fakeSelection struct {
	rec  *recorder
	resp *entity.SelectionResponse
	err  error
}

func (f *fakeSelection) CurrentSelection(context.Context, *entity.PageContext) (*entity.SelectionResponse, error) {
	f.rec.record("selection")
	return f.resp, f.err
}

type fakeCredentials struct {
	rec        *recorder
	credential string
}

func (f *fakeCredentials) Credential(context.Context) (string, error) {
	f.rec.record("credential")
	if f.credential == "" {
		return "", apperrors.MissingCredential()
	}
	return f.credential, nil
}

type fakeGenerator struct {
	rec      *recorder
	imageURL string
	err      error
	prompts  []string
	block    chan struct{}
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt, credential string) (string, error) {
	f.rec.record("generate")
	f.rec.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.rec.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.imageURL, f.err
}

type fakeHistory struct {
	rec   *recorder
	err   error
	items []*entity.HistoryItem
}

func (f *fakeHistory) Insert(_ context.Context, prompt, imageURL string) (*entity.HistoryItem, error) {
	f.rec.record("history")
	if f.err != nil {
		return nil, f.err
	}
	item := entity.NewHistoryItem(prompt, imageURL, time.Now())
	f.rec.mu.Lock()
	f.items = append(f.items, item)
	f.rec.mu.Unlock()
	return item, nil
}

type fixture struct {
	rec       *recorder
	contexts  *fakeContexts
	selection *fakeSelection
	creds     *fakeCredentials
	gen       *fakeGenerator
	history   *fakeHistory
	o         *Orchestrator
}

func newFixture() *fixture {
	rec := &recorder{}
	f := &fixture{
		rec:       rec,
		contexts:  &fakeContexts{page: &entity.PageContext{ID: "tab-1", Endpoint: "http://127.0.0.1:1/selection"}},
		selection: &fakeSelection{rec: rec, resp: &entity.SelectionResponse{Text: "a red fox", IsValid: true}},
		creds:     &fakeCredentials{rec: rec, credential: "fal-key-0123456789"},
		gen:       &fakeGenerator{rec: rec, imageURL: "https://fal.media/files/fox.png"},
		history:   &fakeHistory{rec: rec},
	}
	f.o = NewOrchestrator(f.contexts, f.selection, f.creds, f.gen, f.history, rec)
	return f
}

func equalCalls(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

func TestPromptSuccess(t *testing.T) {
	f := newFixture()

	res := f.o.RequestGenerationFromPrompt(context.Background(), "a red fox")
	if !res.Succeeded() || res.ImageURL != "https://fal.media/files/fox.png" || res.Prompt != "a red fox" {
		t.Fatalf("result = %+v", res)
	}

	calls, events := f.rec.snapshot()
	equalCalls(t, calls, []string{
		"credential",
		"event:GENERATION_STARTED",
		"generate",
		"history",
		"event:IMAGE_GENERATED",
	})
	if events[0].Prompt != "a red fox" {
		t.Errorf("started prompt = %q", events[0].Prompt)
	}
	if events[1].Prompt != "a red fox" || events[1].ImageURL != "https://fal.media/files/fox.png" {
		t.Errorf("generated event = %+v", events[1])
	}
	if events[0].AttemptID == "" || events[0].AttemptID != events[1].AttemptID {
		t.Errorf("attempt ids = %q, %q", events[0].AttemptID, events[1].AttemptID)
	}
	if len(f.history.items) != 1 || f.history.items[0].Prompt != "a red fox" {
		t.Errorf("history = %+v", f.history.items)
	}
}

func TestMissingCredentialEmitsNoStartedEvent(t *testing.T) {
	f := newFixture()
	f.creds.credential = ""

	res := f.o.RequestGenerationFromPrompt(context.Background(), "a red fox")
	if res.ErrorKind != string(apperrors.CodeMissingCredential) || res.UserMessage != apperrors.MsgMissingCredential {
		t.Fatalf("result = %+v", res)
	}

	calls, events := f.rec.snapshot()
	equalCalls(t, calls, []string{"credential", "event:GENERATION_ERROR"})
	if events[0].Error != apperrors.MsgMissingCredential {
		t.Errorf("error event = %+v", events[0])
	}
}

func TestGeneratorFailure(t *testing.T) {
	f := newFixture()
	f.gen.err = apperrors.Wrap(errors.New("dial tcp: connection refused"), apperrors.CodeNetworkError, apperrors.MsgNetworkError)

	res := f.o.RequestGenerationFromPrompt(context.Background(), "a red fox")
	if res.Succeeded() || res.UserMessage != apperrors.MsgNetworkError {
		t.Fatalf("result = %+v", res)
	}

	calls, events := f.rec.snapshot()
	equalCalls(t, calls, []string{"credential", "event:GENERATION_STARTED", "generate", "event:GENERATION_ERROR"})
	if events[1].Error != apperrors.MsgNetworkError {
		t.Errorf("error event = %+v", events[1])
	}
	if len(f.history.items) != 0 {
		t.Errorf("history should be untouched, got %d items", len(f.history.items))
	}
}

func TestUnclassifiedErrorUsesGenericMessage(t *testing.T) {
	f := newFixture()
	f.gen.err = errors.New("something odd")

	res := f.o.RequestGenerationFromPrompt(context.Background(), "a red fox")
	if res.UserMessage != apperrors.MsgGenerationFailed {
		t.Fatalf("result = %+v", res)
	}
}

func TestHistoryFailureAfterSuccess(t *testing.T) {
	f := newFixture()
	f.history.err = apperrors.Storage(errors.New("disk full"), apperrors.MsgSaveHistory)

	res := f.o.RequestGenerationFromPrompt(context.Background(), "a red fox")
	if res.Succeeded() || res.UserMessage != apperrors.MsgSaveHistory {
		t.Fatalf("result = %+v", res)
	}

	calls, events := f.rec.snapshot()
	equalCalls(t, calls, []string{"credential", "event:GENERATION_STARTED", "generate", "history", "event:GENERATION_ERROR"})
	terminal := 0
	for _, ev := range events {
		if ev.Terminal() {
			terminal++
		}
	}
	if terminal != 1 {
		t.Errorf("terminal events = %d", terminal)
	}
}

func TestSelectionSuccess(t *testing.T) {
	f := newFixture()

	res := f.o.RequestGenerationFromActiveSelection(context.Background())
	if !res.Succeeded() {
		t.Fatalf("result = %+v", res)
	}
	calls, _ := f.rec.snapshot()
	equalCalls(t, calls, []string{
		"selection",
		"credential",
		"event:GENERATION_STARTED",
		"generate",
		"history",
		"event:IMAGE_GENERATED",
	})
	if f.gen.prompts[0] != "a red fox" {
		t.Errorf("prompt = %q", f.gen.prompts[0])
	}
}

func TestSelectionFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		code    apperrors.ErrorCode
		message string
	}{
		{
			name:    "no active context",
			setup:   func(f *fixture) { f.contexts.page = nil },
			code:    apperrors.CodeNoActiveContext,
			message: "No active tab found",
		},
		{
			name:    "provider unreachable",
			setup:   func(f *fixture) { f.selection.err = errors.New("connection refused") },
			code:    apperrors.CodeSelectionUnavailable,
			message: "Failed to get text selection. Please try again.",
		},
		{
			name:    "empty selection without reason",
			setup:   func(f *fixture) { f.selection.resp = &entity.SelectionResponse{IsValid: false} },
			code:    apperrors.CodeEmptySelection,
			message: "No text selected. Please highlight some text on the page.",
		},
		{
			name: "empty selection with reason",
			setup: func(f *fixture) {
				f.selection.resp = &entity.SelectionResponse{IsValid: false, Error: "Selection is inside a password field"}
			},
			code:    apperrors.CodeEmptySelection,
			message: "Selection is inside a password field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			res := f.o.RequestGenerationFromActiveSelection(context.Background())
			if res.ErrorKind != string(tt.code) || res.UserMessage != tt.message {
				t.Fatalf("result = %+v", res)
			}

			calls, events := f.rec.snapshot()
			for _, c := range calls {
				if c == "credential" || c == "generate" {
					t.Fatalf("unexpected call %q in %v", c, calls)
				}
			}
			if len(events) != 1 || events[0].Type != entity.EventGenerationError || events[0].Error != tt.message {
				t.Fatalf("events = %+v", events)
			}
		})
	}
}

func TestSubmitRunsDetached(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())

	id, err := f.o.Submit(ctx, message.GenerateFromPrompt{Prompt: "  a red fox  "})
	if err != nil || id == "" {
		t.Fatalf("Submit = %q, %v", id, err)
	}
	cancel()
	f.o.Wait()

	_, events := f.rec.snapshot()
	if len(events) != 2 || events[1].Type != entity.EventImageGenerated {
		t.Fatalf("events = %+v", events)
	}
	if events[0].AttemptID != id || events[0].Prompt != "a red fox" {
		t.Fatalf("started = %+v", events[0])
	}
}

func TestSubmitSelection(t *testing.T) {
	f := newFixture()
	if _, err := f.o.Submit(context.Background(), message.GenerateFromSelection{}); err != nil {
		t.Fatal(err)
	}
	f.o.Wait()

	_, events := f.rec.snapshot()
	if len(events) != 2 || events[1].Type != entity.EventImageGenerated {
		t.Fatalf("events = %+v", events)
	}
}

func TestSubmitRejects(t *testing.T) {
	f := newFixture()

	if _, err := f.o.Submit(context.Background(), message.GenerateFromPrompt{Prompt: "   "}); apperrors.CodeOf(err) != apperrors.CodeInvalidParam {
		t.Errorf("empty prompt = %v", err)
	}
	if _, err := f.o.Submit(context.Background(), message.GetCurrentSelection{}); apperrors.CodeOf(err) != apperrors.CodeInvalidParam {
		t.Errorf("non-command = %v", err)
	}
	calls, _ := f.rec.snapshot()
	if len(calls) != 0 {
		t.Errorf("calls = %v", calls)
	}
}

func TestShutdownWaitsForInflight(t *testing.T) {
	f := newFixture()
	f.gen.block = make(chan struct{})

	if _, err := f.o.Submit(context.Background(), message.GenerateFromPrompt{Prompt: "slow"}); err != nil {
		t.Fatal(err)
	}

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := f.o.Shutdown(shortCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown with blocked attempt = %v", err)
	}

	if _, err := f.o.Submit(context.Background(), message.GenerateFromPrompt{Prompt: "late"}); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("Submit after shutdown = %v", err)
	}

	close(f.gen.block)
	if err := f.o.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown = %v", err)
	}
	_, events := f.rec.snapshot()
	if len(events) != 2 || !events[1].Terminal() {
		t.Fatalf("events = %+v", events)
	}
}

func TestTruncationCarriedForward(t *testing.T) {
	t.Run("selection", func(t *testing.T) {
		f := newFixture()
		f.selection.resp = &entity.SelectionResponse{Text: "a red fox", IsValid: true, WasTruncated: true}

		res := f.o.RequestGenerationFromActiveSelection(context.Background())
		if !res.Succeeded() || !res.WasTruncated {
			t.Fatalf("result = %+v", res)
		}
		_, events := f.rec.snapshot()
		if events[0].Type != entity.EventGenerationStarted || !events[0].WasTruncated {
			t.Fatalf("started = %+v", events[0])
		}
		if events[1].WasTruncated {
			t.Errorf("generated event should not carry the flag: %+v", events[1])
		}
	})

	t.Run("prompt", func(t *testing.T) {
		f := newFixture()
		long := strings.Repeat("字", entity.MaxPromptLength+10)

		if _, err := f.o.Submit(context.Background(), message.GenerateFromPrompt{Prompt: long}); err != nil {
			t.Fatal(err)
		}
		f.o.Wait()

		_, events := f.rec.snapshot()
		if !events[0].WasTruncated {
			t.Fatalf("started = %+v", events[0])
		}
		if got := len([]rune(f.gen.prompts[0])); got != entity.MaxPromptLength {
			t.Errorf("prompt runes = %d", got)
		}
	})

	t.Run("not truncated", func(t *testing.T) {
		f := newFixture()
		res := f.o.RequestGenerationFromActiveSelection(context.Background())
		_, events := f.rec.snapshot()
		if res.WasTruncated || events[0].WasTruncated {
			t.Fatalf("result = %+v, started = %+v", res, events[0])
		}
	})
}
