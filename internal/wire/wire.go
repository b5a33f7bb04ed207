//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"imagegen-api/internal/config"
)

// InitializeApp 初始化整个应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		StorageSet,
		ServiceSet,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeStorage 仅初始化存储层（用于 bootstrap）
func InitializeStorage(ctx context.Context, cfg *config.Config) (*StorageLayer, func(), error) {
	wire.Build(
		ProvideRedisClient,
		ProvideStorage,
	)
	return nil, nil, nil
}
