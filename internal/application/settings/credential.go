// Package settings 提供凭证配置服务
package settings

import (
	"context"
	"errors"
	"strings"

	"imagegen-api/internal/domain/entity"
	"imagegen-api/internal/domain/repository"
	apperrors "imagegen-api/pkg/errors"
	"imagegen-api/pkg/logger"
)

// CredentialStatus 凭证状态，不包含明文
type CredentialStatus struct {
	Configured bool   `json:"configured"`
	Masked     string `json:"masked,omitempty"`
}

// CredentialStore 凭证读写
type CredentialStore struct {
	repo repository.SettingsRepository
}

// NewCredentialStore 创建凭证存储
func NewCredentialStore(repo repository.SettingsRepository) *CredentialStore {
	return &CredentialStore{repo: repo}
}

// Credential 每次从存储读取最新凭证，缺失或无效时返回 MissingCredential
func (s *CredentialStore) Credential(ctx context.Context) (string, error) {
	raw, err := s.repo.Get(ctx, entity.CredentialKey)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Error(ctx, "failed to read credential", err)
		}
		return "", apperrors.MissingCredential().WithError(err)
	}

	credential := strings.TrimSpace(raw)
	if err := entity.ValidateCredential(credential); err != nil {
		return "", apperrors.MissingCredential().WithError(err)
	}
	return credential, nil
}

// Set 校验并保存凭证，首尾空白会被去除
func (s *CredentialStore) Set(ctx context.Context, raw string) error {
	credential := strings.TrimSpace(raw)
	if err := entity.ValidateCredential(credential); err != nil {
		return apperrors.New(apperrors.CodeInvalidParam, "Invalid API key: "+err.Error())
	}
	if err := s.repo.Set(ctx, entity.CredentialKey, credential); err != nil {
		logger.Error(ctx, "failed to save credential", err)
		return apperrors.Wrap(err, apperrors.CodeStorageError, "Failed to save API key")
	}
	logger.Info(ctx, "credential updated", logger.Secret("credential", credential))
	return nil
}

// Remove 删除凭证
func (s *CredentialStore) Remove(ctx context.Context) error {
	if err := s.repo.Delete(ctx, entity.CredentialKey); err != nil {
		logger.Error(ctx, "failed to remove credential", err)
		return apperrors.Wrap(err, apperrors.CodeStorageError, "Failed to remove API key")
	}
	return nil
}

// Status 返回是否已配置以及掩码后的凭证
func (s *CredentialStore) Status(ctx context.Context) (*CredentialStatus, error) {
	credential, err := s.Credential(ctx)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeMissingCredential {
			return &CredentialStatus{}, nil
		}
		return nil, err
	}
	return &CredentialStatus{Configured: true, Masked: logger.Mask(credential)}, nil
}
