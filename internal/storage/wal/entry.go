// Пакет wal — файловый Write-Ahead Log для атомарного коммита
// изменённых аккаунтов.
// Каждая транзакция — отдельный файл {tx_id}.wal.json в TR_WAL_DIR.
// Запись хранит pre-image каждого затронутого аккаунта, поэтому
// прерванный коммит откатывается к состоянию до вызова.
package wal

import (
	"time"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// OperationType — тип операции, записываемой в WAL.
type OperationType string

const (
	// OpAccountCommit — коммит аккаунтов после выполнения программы
	OpAccountCommit OperationType = "account_commit"
	// OpAirdrop — пополнение баланса аккаунта (dev faucet)
	OpAirdrop OperationType = "airdrop"
	// OpInstall — запись служебного аккаунта при старте (состояние моста)
	OpInstall OperationType = "install"
)

// TransactionStatus — статус транзакции WAL.
type TransactionStatus string

const (
	// StatusPending — транзакция начата, аккаунты записываются
	StatusPending TransactionStatus = "pending"
	// StatusCommitted — все аккаунты записаны
	StatusCommitted TransactionStatus = "committed"
	// StatusRolledBack — аккаунты восстановлены из pre-image
	StatusRolledBack TransactionStatus = "rolled_back"
)

// PreImage — состояние аккаунта до транзакции.
// Account == nil означает, что аккаунта не существовало.
type PreImage struct {
	Address model.Identity `json:"address"`
	Account *model.Account `json:"account,omitempty"`
}

// Entry — запись WAL. Хранится как JSON-файл {tx_id}.wal.json.
type Entry struct {
	// TransactionID — уникальный идентификатор транзакции (UUID v4)
	TransactionID string `json:"transaction_id"`

	// Operation — тип операции
	Operation OperationType `json:"operation"`

	// Status — текущий статус транзакции
	Status TransactionStatus `json:"status"`

	// PreImages — состояние затронутых аккаунтов до транзакции
	PreImages []PreImage `json:"pre_images"`

	// StartedAt — время начала транзакции (UTC)
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения транзакции (UTC).
	// nil для pending транзакций.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Addresses возвращает адреса затронутых аккаунтов.
func (e *Entry) Addresses() []model.Identity {
	out := make([]model.Identity, 0, len(e.PreImages))
	for _, p := range e.PreImages {
		out = append(out, p.Address)
	}
	return out
}

// walFileName возвращает имя файла WAL для данной транзакции.
func walFileName(txID string) string {
	return txID + ".wal.json"
}
