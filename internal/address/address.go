// Пакет address — детерминированное вычисление адресов записей.
//
// Адрес — program-derived address: sha256(seeds ‖ bump ‖ programID ‖
// "ProgramDerivedAddress"), принимается первый bump (255 → 0), при
// котором результат не является точкой ed25519. У такого адреса нет
// приватного ключа, поэтому распоряжаться им может только программа.
package address

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	crypto "github.com/bsv-blockchain/go-sdk/primitives/hash"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// Пространства имён адресов.
const (
	// NamespaceTransfer — запись последней передачи, ключ — получатель
	NamespaceTransfer = "file_transfer"
	// NamespaceMetadata — запись метаданных, ключ — идентификатор сообщения
	NamespaceMetadata = "file_metadata"

	// BridgeStateSeed — seed аккаунта состояния моста
	BridgeStateSeed = "bridge_state"
)

const (
	// MaxSeedLen — максимальная длина одного seed в байтах
	MaxSeedLen = 32
	// MaxSeeds — максимальное количество seed (включая bump)
	MaxSeeds = 16

	pdaMarker = "ProgramDerivedAddress"
)

var (
	// ErrSeedTooLong — seed длиннее MaxSeedLen или их слишком много
	ErrSeedTooLong = errors.New("недопустимые seed для производного адреса")
	// ErrOnCurve — результат лежит на кривой ed25519
	ErrOnCurve = errors.New("производный адрес лежит на кривой ed25519")
	// ErrNoViableBump — ни один bump не дал адрес вне кривой
	ErrNoViableBump = errors.New("не найден bump для производного адреса")
)

// Derived — вычисленный адрес вместе с bump.
type Derived struct {
	Address model.Identity `json:"address"`
	Bump    uint8          `json:"bump"`
}

// IsOnCurve проверяет, является ли 32-байтное значение точкой ed25519.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// CreateProgramAddress вычисляет адрес по заданным seed (bump уже включён).
// Возвращает ErrOnCurve, если результат лежит на кривой.
func CreateProgramAddress(seeds [][]byte, programID model.Identity) (model.Identity, error) {
	if len(seeds) > MaxSeeds {
		return model.Identity{}, fmt.Errorf("%d seed: %w", len(seeds), ErrSeedTooLong)
	}

	buf := make([]byte, 0, len(seeds)*MaxSeedLen+model.IdentitySize+len(pdaMarker))
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return model.Identity{}, fmt.Errorf("seed длиной %d: %w", len(seed), ErrSeedTooLong)
		}
		buf = append(buf, seed...)
	}
	buf = append(buf, programID[:]...)
	buf = append(buf, pdaMarker...)

	sum := crypto.Sha256(buf)
	if IsOnCurve(sum) {
		return model.Identity{}, ErrOnCurve
	}

	return model.IdentityFromBytes(sum)
}

// FindProgramAddress перебирает bump от 255 до 0 и возвращает первый
// адрес вне кривой.
func FindProgramAddress(seeds [][]byte, programID model.Identity) (Derived, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return Derived{Address: addr, Bump: uint8(bump)}, nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Derived{}, err
		}
	}
	return Derived{}, ErrNoViableBump
}

// Seeds возвращает seed записи для пространства имён и ключа.
func Seeds(namespace string, key model.Identity) [][]byte {
	return [][]byte{[]byte(namespace), key[:]}
}
