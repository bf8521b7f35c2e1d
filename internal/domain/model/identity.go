// Пакет model — доменные модели получателя кросс-чейн передач файлов.
// Identity — 32-байтный публичный идентификатор аккаунта или стороны
// (ключ Solana, адрес Sui, производный адрес записи).
package model

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// IdentitySize — длина идентификатора в байтах.
const IdentitySize = 32

// Identity — фиксированный 32-байтный идентификатор.
// Текстовое представление — base58, как у ключей Solana.
type Identity [IdentitySize]byte

// ParseIdentity разбирает base58-строку в Identity.
func ParseIdentity(s string) (Identity, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Identity{}, fmt.Errorf("некорректный base58 %q: %w", s, err)
	}
	return IdentityFromBytes(raw)
}

// IdentityFromBytes копирует ровно 32 байта в Identity.
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentitySize {
		return id, fmt.Errorf("идентификатор должен занимать %d байт, получено %d", IdentitySize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String возвращает base58-представление.
func (id Identity) String() string {
	return base58.Encode(id[:])
}

// Bytes возвращает копию байтов идентификатора.
func (id Identity) Bytes() []byte {
	out := make([]byte, IdentitySize)
	copy(out, id[:])
	return out
}

// MarshalText реализует encoding.TextMarshaler (JSON-представление — base58).
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
