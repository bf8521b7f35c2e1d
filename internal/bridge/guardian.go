package bridge

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/util"
)

// compressedKeyLen — длина сжатого публичного ключа secp256k1.
const compressedKeyLen = 33

// MaxGuardians — предельный размер набора guardian.
const MaxGuardians = 19

// GuardianSet — состояние моста: набор ключей, подписи которых
// подтверждают сообщение. Хранится в данных аккаунта моста:
// index u32 LE | expiration u32 LE | count u8 | count × 33 байта.
type GuardianSet struct {
	Index uint32
	// ExpirationTime — unix-время истечения набора; 0 — бессрочно
	ExpirationTime uint32
	Keys           []*ec.PublicKey
}

// Quorum возвращает минимальное число подписей: больше двух третей.
func (g *GuardianSet) Quorum() int {
	return len(g.Keys)*2/3 + 1
}

// Expired проверяет, истёк ли набор к моменту now.
func (g *GuardianSet) Expired(now time.Time) bool {
	return g.ExpirationTime != 0 && uint32(now.Unix()) >= g.ExpirationTime
}

// Encode сериализует набор для записи в аккаунт моста.
func (g *GuardianSet) Encode() ([]byte, error) {
	if len(g.Keys) == 0 || len(g.Keys) > MaxGuardians {
		return nil, fmt.Errorf("набор из %d guardian: %w", len(g.Keys), ErrMalformed)
	}
	w := util.NewWriter()
	w.WriteBytes(binary.LittleEndian.AppendUint32(nil, g.Index))
	w.WriteBytes(binary.LittleEndian.AppendUint32(nil, g.ExpirationTime))
	w.WriteByte(uint8(len(g.Keys)))
	for _, k := range g.Keys {
		w.WriteBytes(k.Compressed())
	}
	return w.Buf, nil
}

// DecodeGuardianSet разбирает набор из данных аккаунта моста.
// Хвост из нулей допускается.
func DecodeGuardianSet(data []byte) (*GuardianSet, error) {
	r := util.NewReader(data)
	head, err := readN(r, 9, "guardian_set")
	if err != nil {
		return nil, err
	}
	g := &GuardianSet{
		Index:          binary.LittleEndian.Uint32(head[0:4]),
		ExpirationTime: binary.LittleEndian.Uint32(head[4:8]),
	}
	count := int(head[8])
	if count == 0 || count > MaxGuardians {
		return nil, fmt.Errorf("набор из %d guardian: %w", count, ErrMalformed)
	}
	for i := 0; i < count; i++ {
		raw, err := readN(r, compressedKeyLen, "guardian_key")
		if err != nil {
			return nil, err
		}
		key, err := ec.PublicKeyFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("ключ guardian %d: %v: %w", i, err, ErrMalformed)
		}
		g.Keys = append(g.Keys, key)
	}
	for _, b := range r.ReadRemaining() {
		if b != 0 {
			return nil, fmt.Errorf("ненулевой хвост набора guardian: %w", ErrMalformed)
		}
	}
	return g, nil
}

// ParseGuardianKeys разбирает hex-строки сжатых публичных ключей.
func ParseGuardianKeys(hexKeys []string) ([]*ec.PublicKey, error) {
	keys := make([]*ec.PublicKey, 0, len(hexKeys))
	for i, h := range hexKeys {
		raw, err := hex.DecodeString(strings.TrimSpace(h))
		if err != nil {
			return nil, fmt.Errorf("ключ guardian %d: некорректный hex: %w", i, err)
		}
		key, err := ec.PublicKeyFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("ключ guardian %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
