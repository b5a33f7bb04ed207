package settings

import (
	"context"
	"errors"
	"testing"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/infrastructure/persistence/memory"
	apperrors "imagegen-api/pkg/errors"
)

type brokenSettings struct{}

func (brokenSettings) Get(context.Context, string) (string, error) { return "", errors.New("boom") }
func (brokenSettings) Set(context.Context, string, string) error   { return errors.New("boom") }
func (brokenSettings) Delete(context.Context, string) error        { return errors.New("boom") }

func TestCredentialMissing(t *testing.T) {
	s := NewCredentialStore(memory.NewSettingsRepository())

	_, err := s.Credential(context.Background())
	if apperrors.CodeOf(err) != apperrors.CodeMissingCredential {
		t.Fatalf("err = %v", err)
	}
	if apperrors.UserMessage(err) != apperrors.MsgMissingCredential {
		t.Fatalf("message = %q", apperrors.UserMessage(err))
	}
}

func TestCredentialSetTrimsAndReadsFresh(t *testing.T) {
	repo := memory.NewSettingsRepository()
	s := NewCredentialStore(repo)
	ctx := context.Background()

	if err := s.Set(ctx, "  fal-key-0123456789  "); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Credential(ctx)
	if err != nil || got != "fal-key-0123456789" {
		t.Fatalf("Credential = %q, %v", got, err)
	}

	// 绕过服务直接修改存储，下次读取应立即生效
	_ = repo.Set(ctx, entity.CredentialKey, "rotated-key-abcdef")
	got, _ = s.Credential(ctx)
	if got != "rotated-key-abcdef" {
		t.Fatalf("Credential after rotation = %q", got)
	}
}

func TestCredentialStoredInvalid(t *testing.T) {
	repo := memory.NewSettingsRepository()
	_ = repo.Set(context.Background(), entity.CredentialKey, "short")

	_, err := NewCredentialStore(repo).Credential(context.Background())
	if apperrors.CodeOf(err) != apperrors.CodeMissingCredential {
		t.Fatalf("err = %v", err)
	}
}

func TestCredentialSetRejectsInvalid(t *testing.T) {
	s := NewCredentialStore(memory.NewSettingsRepository())
	for _, v := range []string{"", "   ", "short"} {
		if err := s.Set(context.Background(), v); apperrors.CodeOf(err) != apperrors.CodeInvalidParam {
			t.Errorf("Set(%q) = %v", v, err)
		}
	}
}

func TestCredentialStatusAndRemove(t *testing.T) {
	s := NewCredentialStore(memory.NewSettingsRepository())
	ctx := context.Background()

	st, err := s.Status(ctx)
	if err != nil || st.Configured {
		t.Fatalf("Status = %+v, %v", st, err)
	}

	_ = s.Set(ctx, "fal-key-0123456789")
	st, _ = s.Status(ctx)
	if !st.Configured || st.Masked != "fal-k***" {
		t.Fatalf("Status = %+v", st)
	}

	if err := s.Remove(ctx); err != nil {
		t.Fatal(err)
	}
	st, _ = s.Status(ctx)
	if st.Configured {
		t.Fatal("still configured after Remove")
	}
}

func TestCredentialStorageFailure(t *testing.T) {
	s := NewCredentialStore(brokenSettings{})
	ctx := context.Background()

	if _, err := s.Credential(ctx); apperrors.CodeOf(err) != apperrors.CodeMissingCredential {
		t.Errorf("Credential = %v", err)
	}
	if err := s.Set(ctx, "fal-key-0123456789"); apperrors.CodeOf(err) != apperrors.CodeStorageError {
		t.Errorf("Set = %v", err)
	}
	if err := s.Remove(ctx); apperrors.CodeOf(err) != apperrors.CodeStorageError {
		t.Errorf("Remove = %v", err)
	}
}
