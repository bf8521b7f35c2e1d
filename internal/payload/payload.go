// Пакет payload — извлечение типизированного содержимого из
// кросс-чейн сообщения.
//
// Две стратегии:
//   - ExtractPositional — позиционный разбор сырого буфера без проверки
//     подлинности (только для отладки);
//   - ExtractVerified — разбор сообщения моста, содержимое которого
//     доверяется только после подтверждения Verifier.
//
// Буфер считается недоверенным: каждая длина сверяется с размером
// буфера до чтения.
package payload

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/bsv-blockchain/go-sdk/util"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/bridge"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/codec"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/failure"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// Strategy — способ извлечения payload.
type Strategy string

const (
	// StrategyStructured — сообщение моста с проверкой подлинности
	StrategyStructured Strategy = "structured"
	// StrategyPositional — сырой буфер без проверки подлинности
	StrategyPositional Strategy = "positional"
)

// ParseStrategy разбирает название стратегии.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyStructured, StrategyPositional:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("неизвестная стратегия извлечения %q: допустимые значения — structured, positional", s)
	}
}

// PositionalMinLen — длина буфера с пустым URL.
const PositionalMinLen = 1 + 2*model.IdentitySize + 8

// ExtractPositional разбирает буфер
// [1 L][L байт URL][32 recipient][32 sender][8 LE timestamp].
// Байты после timestamp игнорируются.
func ExtractPositional(buf []byte) (model.TransferPayload, error) {
	var p model.TransferPayload
	r := util.NewReader(buf)

	lenByte, err := take(r, 1, "url_length")
	if err != nil {
		return p, err
	}
	url, err := take(r, int(lenByte[0]), "url")
	if err != nil {
		return p, err
	}
	if !utf8.Valid(url) {
		return p, failure.New(failure.ErrInvalidEncoding, "url не является корректным UTF-8")
	}
	recipient, err := take(r, model.IdentitySize, "recipient")
	if err != nil {
		return p, err
	}
	sender, err := take(r, model.IdentitySize, "sender")
	if err != nil {
		return p, err
	}
	ts, err := take(r, 8, "timestamp")
	if err != nil {
		return p, err
	}

	p.ContentLocator = string(url)
	copy(p.Recipient[:], recipient)
	copy(p.Sender[:], sender)
	p.CreatedAt = binary.LittleEndian.Uint64(ts)
	return p, nil
}

// Message — подтверждённое мостом сообщение.
type Message struct {
	Payload        model.MetadataPayload
	Sequence       uint64
	Timestamp      uint32
	EmitterChain   uint16
	EmitterAddress [32]byte
}

// ExtractVerified разбирает сообщение моста, запрашивает у verifier
// подтверждение относительно state и только затем декодирует
// внутренний payload.
func ExtractVerified(ctx context.Context, verifier bridge.Verifier, raw []byte, state *bridge.GuardianSet) (Message, error) {
	env, err := bridge.ParseEnvelope(raw)
	if err != nil {
		if errors.Is(err, bridge.ErrTruncated) {
			return Message{}, failure.Wrap(failure.ErrInsufficientPayloadLength, err, "сообщение моста")
		}
		return Message{}, failure.Wrap(failure.ErrInvalidEncoding, err, "сообщение моста")
	}

	if err := verifier.Verify(ctx, env, state); err != nil {
		return Message{}, failure.Wrap(failure.ErrUnverifiedMessage, err, "последовательность %d", env.Sequence)
	}

	inner, err := codec.DecodeMetadataPayload(env.Payload)
	if err != nil {
		if errors.Is(err, codec.ErrTruncated) {
			return Message{}, failure.Wrap(failure.ErrInsufficientPayloadLength, err, "внутренний payload")
		}
		return Message{}, failure.Wrap(failure.ErrInvalidEncoding, err, "внутренний payload")
	}

	return Message{
		Payload:        inner,
		Sequence:       env.Sequence,
		Timestamp:      env.Timestamp,
		EmitterChain:   env.EmitterChain,
		EmitterAddress: env.EmitterAddress,
	}, nil
}

func take(r *util.Reader, n int, field string) ([]byte, error) {
	remaining := len(r.Data) - r.Pos
	if n > remaining {
		return nil, failure.New(failure.ErrInsufficientPayloadLength, "%s: нужно %d байт, осталось %d", field, n, remaining)
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, failure.Wrap(failure.ErrInsufficientPayloadLength, err, "%s", field)
	}
	return b, nil
}
