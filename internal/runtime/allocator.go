package runtime

import (
	"errors"
	"fmt"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// accountStorageOverhead — служебные байты аккаунта, учитываемые в ренте.
const accountStorageOverhead = 128

// exemptionYears — число лет ренты, покрывающих бессрочное хранение.
const exemptionYears = 2

// DefaultLamportsPerByteYear — ставка ренты по умолчанию.
const DefaultLamportsPerByteYear uint64 = 3480

// Ошибки выделения места.
var (
	ErrInsufficientFunds = errors.New("недостаточно средств у плательщика")
	ErrAccountInUse      = errors.New("аккаунт уже используется")
	ErrMissingSigner     = errors.New("плательщик не подписал вызов")
	ErrNotWritable       = errors.New("аккаунт недоступен для записи")
	ErrInvalidSize       = errors.New("недопустимый размер аккаунта")
)

// MaxAccountDataSize — предельный размер данных одного аккаунта.
const MaxAccountDataSize = 10 * 1024 * 1024

// Rent — параметры ренты за хранение.
type Rent struct {
	LamportsPerByteYear uint64
}

// MinimumBalance возвращает баланс, освобождающий аккаунт
// размера size от ренты.
func (r Rent) MinimumBalance(size int) uint64 {
	return (accountStorageOverhead + uint64(size)) * r.LamportsPerByteYear * exemptionYears
}

// Allocator — выделение места под аккаунт, принадлежащий программе.
type Allocator interface {
	Allocate(payer, target *AccountHandle, size int, owner model.Identity) error
}

// SystemAllocator — выделение в стиле системной программы: плательщик
// переводит на целевой аккаунт сумму до освобождения от ренты, аккаунт
// получает обнулённые данные заданного размера и нового владельца.
type SystemAllocator struct {
	Rent Rent
}

// NewSystemAllocator создаёт аллокатор с заданной ставкой ренты.
func NewSystemAllocator(rent Rent) *SystemAllocator {
	return &SystemAllocator{Rent: rent}
}

// Allocate выделяет size байт под target. При ошибке handle не меняются.
func (a *SystemAllocator) Allocate(payer, target *AccountHandle, size int, owner model.Identity) error {
	if size <= 0 || size > MaxAccountDataSize {
		return fmt.Errorf("размер %d: %w", size, ErrInvalidSize)
	}
	if !target.IsEmpty() {
		return fmt.Errorf("аккаунт %s: %w", target.Key, ErrAccountInUse)
	}
	if !target.IsWritable {
		return fmt.Errorf("аккаунт %s: %w", target.Key, ErrNotWritable)
	}
	if !payer.IsSigner {
		return fmt.Errorf("плательщик %s: %w", payer.Key, ErrMissingSigner)
	}
	if !payer.IsWritable {
		return fmt.Errorf("плательщик %s: %w", payer.Key, ErrNotWritable)
	}
	if payer.Key == target.Key {
		return fmt.Errorf("плательщик совпадает с целевым аккаунтом %s: %w", target.Key, ErrAccountInUse)
	}

	required := a.Rent.MinimumBalance(size)
	var transfer uint64
	if target.Lamports < required {
		transfer = required - target.Lamports
	}
	if payer.Lamports < transfer {
		return fmt.Errorf("нужно %d, доступно %d: %w", transfer, payer.Lamports, ErrInsufficientFunds)
	}

	payer.Lamports -= transfer
	target.Lamports += transfer
	target.Data = make([]byte, size)
	target.Owner = owner
	return nil
}
