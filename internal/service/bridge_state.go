package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/address"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/bridge"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/runtime"
)

// InstallBridgeState записывает набор guardian в аккаунт моста и
// возвращает его адрес. Вызывается при старте, до приёма запросов.
func InstallBridgeState(ctx context.Context, exec *runtime.Executor, deriver *address.Deriver, set *bridge.GuardianSet, logger *slog.Logger) (model.Identity, error) {
	derived, err := deriver.BridgeStateAddress()
	if err != nil {
		return model.Identity{}, fmt.Errorf("адрес состояния моста: %w", err)
	}

	data, err := set.Encode()
	if err != nil {
		return model.Identity{}, fmt.Errorf("набор guardian: %w", err)
	}

	if err := exec.Install(ctx, &model.Account{
		Address: derived.Address,
		Owner:   deriver.ProgramID(),
		Data:    data,
	}); err != nil {
		return model.Identity{}, fmt.Errorf("установка состояния моста: %w", err)
	}

	logger.Info("Состояние моста установлено",
		slog.String("address", derived.Address.String()),
		slog.Uint64("guardian_set_index", uint64(set.Index)),
		slog.Int("guardians", len(set.Keys)),
		slog.Int("quorum", set.Quorum()),
	)
	return derived.Address, nil
}
