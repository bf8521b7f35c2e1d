package payload

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/bridge"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/codec"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/failure"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// testLogger возвращает логгер для тестов (вывод подавляется).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func filled(b byte) model.Identity {
	var id model.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

// scenarioBuffer — [0x05,'http:',R,S,1000 LE].
func scenarioBuffer(r, s model.Identity) []byte {
	buf := []byte{0x05, 'h', 't', 't', 'p', ':'}
	buf = append(buf, r[:]...)
	buf = append(buf, s[:]...)
	return binary.LittleEndian.AppendUint64(buf, 1000)
}

// signEnvelope подписывает сообщение ключами guardian в порядке индексов
// и заменяет его подписи.
func signEnvelope(t *testing.T, env *bridge.Envelope, keys map[uint8]*ec.PrivateKey) {
	t.Helper()
	digest := env.Digest()
	env.Signatures = nil
	for i := 0; i <= 255; i++ {
		key, ok := keys[uint8(i)]
		if !ok {
			continue
		}
		sig, err := key.Sign(digest)
		if err != nil {
			t.Fatalf("подпись guardian %d: %v", i, err)
		}
		env.Signatures = append(env.Signatures, bridge.Signature{GuardianIndex: uint8(i), DER: sig.Serialize()})
	}
}

// TestExtractPositional_Scenario проверяет разбор эталонного буфера.
func TestExtractPositional_Scenario(t *testing.T) {
	r, s := filled(0xAA), filled(0xBB)

	p, err := ExtractPositional(scenarioBuffer(r, s))
	if err != nil {
		t.Fatalf("ошибка разбора: %v", err)
	}
	want := model.TransferPayload{ContentLocator: "http:", Recipient: r, Sender: s, CreatedAt: 1000}
	if p != want {
		t.Errorf("ожидалось %+v, получено %+v", want, p)
	}
}

// TestExtractPositional_BoundsSafety проверяет каждую обрезанную длину.
func TestExtractPositional_BoundsSafety(t *testing.T) {
	full := scenarioBuffer(filled(1), filled(2))

	for n := 0; n < len(full); n++ {
		_, err := ExtractPositional(full[:n])
		if !errors.Is(err, failure.ErrInsufficientPayloadLength) {
			t.Fatalf("длина %d: ожидалась ErrInsufficientPayloadLength, получена %v", n, err)
		}
	}

	// Заявленная длина больше буфера
	_, err := ExtractPositional([]byte{0xFF, 'a', 'b'})
	if !errors.Is(err, failure.ErrInsufficientPayloadLength) {
		t.Errorf("ожидалась ErrInsufficientPayloadLength, получена %v", err)
	}
	if failure.CodeOf(err) != failure.CodeInsufficientPayloadLength {
		t.Errorf("неожиданный код: %s", failure.CodeOf(err))
	}
}

// TestExtractPositional_InvalidUTF8 проверяет отказ на некорректной строке.
func TestExtractPositional_InvalidUTF8(t *testing.T) {
	buf := scenarioBuffer(filled(1), filled(2))
	buf[1] = 0xff

	_, err := ExtractPositional(buf)
	if !errors.Is(err, failure.ErrInvalidEncoding) {
		t.Errorf("ожидалась ErrInvalidEncoding, получена %v", err)
	}
}

// encodePositional собирает буфер для ExtractPositional.
// URL длиннее 255 байт не помещается в однобайтовую длину.
func encodePositional(p model.TransferPayload) ([]byte, error) {
	if len(p.ContentLocator) > 255 {
		return nil, fmt.Errorf("url длиной %d не помещается в позиционный формат", len(p.ContentLocator))
	}
	buf := []byte{uint8(len(p.ContentLocator))}
	buf = append(buf, p.ContentLocator...)
	buf = append(buf, p.Recipient[:]...)
	buf = append(buf, p.Sender[:]...)
	return binary.LittleEndian.AppendUint64(buf, p.CreatedAt), nil
}

// TestEncodePositional проверяет обратное преобразование.
func TestEncodePositional(t *testing.T) {
	p := model.TransferPayload{ContentLocator: "ar://x", Recipient: filled(3), Sender: filled(4), CreatedAt: 77}
	buf, err := encodePositional(p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ExtractPositional(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Errorf("ожидалось %+v, получено %+v", p, got)
	}

	if _, err := encodePositional(model.TransferPayload{ContentLocator: string(bytes.Repeat([]byte("x"), 256))}); err == nil {
		t.Error("ожидалась ошибка для слишком длинного URL")
	}
}

// TestParseStrategy проверяет разбор названия стратегии.
func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy("structured"); err != nil || s != StrategyStructured {
		t.Errorf("structured: %v, %v", s, err)
	}
	if s, err := ParseStrategy("positional"); err != nil || s != StrategyPositional {
		t.Errorf("positional: %v, %v", s, err)
	}
	if _, err := ParseStrategy("raw"); err == nil {
		t.Error("ожидалась ошибка для неизвестной стратегии")
	}
}

// stubVerifier — проверка с заданным результатом.
type stubVerifier struct {
	err    error
	called bool
}

func (v *stubVerifier) Verify(context.Context, *bridge.Envelope, *bridge.GuardianSet) error {
	v.called = true
	return v.err
}

func metadataEnvelope(t *testing.T, inner []byte) []byte {
	t.Helper()
	env := &bridge.Envelope{
		Version:      bridge.EnvelopeVersion,
		EmitterChain: 21,
		Sequence:     9,
		Payload:      inner,
	}
	return env.Encode()
}

func metadataPayload(t *testing.T) (model.MetadataPayload, []byte) {
	t.Helper()
	p := model.MetadataPayload{
		ID:             filled(0x10),
		ContentLocator: "https://arweave.net/tx",
		OriginalSender: filled(0x20),
		Recipient:      filled(0x30),
	}
	data, err := codec.EncodeMetadataPayload(p)
	if err != nil {
		t.Fatal(err)
	}
	return p, data
}

// TestExtractVerified проверяет порядок: подтверждение, затем разбор.
func TestExtractVerified(t *testing.T) {
	p, inner := metadataPayload(t)
	raw := metadataEnvelope(t, inner)

	t.Run("подтверждённое сообщение", func(t *testing.T) {
		v := &stubVerifier{}
		msg, err := ExtractVerified(context.Background(), v, raw, &bridge.GuardianSet{})
		if err != nil {
			t.Fatalf("ошибка: %v", err)
		}
		if msg.Payload != p || msg.Sequence != 9 || msg.EmitterChain != 21 {
			t.Errorf("неожиданное сообщение: %+v", msg)
		}
	})

	t.Run("отказ проверки", func(t *testing.T) {
		v := &stubVerifier{err: bridge.ErrNoQuorum}
		_, err := ExtractVerified(context.Background(), v, raw, &bridge.GuardianSet{})
		if !errors.Is(err, failure.ErrUnverifiedMessage) {
			t.Fatalf("ожидалась ErrUnverifiedMessage, получена %v", err)
		}
		if !errors.Is(err, bridge.ErrNoQuorum) {
			t.Errorf("причина должна сохраняться, получена %v", err)
		}
	})

	t.Run("обрезанное сообщение", func(t *testing.T) {
		v := &stubVerifier{}
		_, err := ExtractVerified(context.Background(), v, raw[:10], &bridge.GuardianSet{})
		if !errors.Is(err, failure.ErrInsufficientPayloadLength) {
			t.Errorf("ожидалась ErrInsufficientPayloadLength, получена %v", err)
		}
		if v.called {
			t.Error("проверка не должна вызываться для неразобранного сообщения")
		}
	})

	t.Run("обрезанный внутренний payload", func(t *testing.T) {
		v := &stubVerifier{}
		_, err := ExtractVerified(context.Background(), v, metadataEnvelope(t, inner[:len(inner)-1]), &bridge.GuardianSet{})
		if !errors.Is(err, failure.ErrInsufficientPayloadLength) {
			t.Errorf("ожидалась ErrInsufficientPayloadLength, получена %v", err)
		}
	})

	t.Run("неизвестный тип payload", func(t *testing.T) {
		bad := append([]byte{}, inner...)
		bad[0] = 7
		_, err := ExtractVerified(context.Background(), &stubVerifier{}, metadataEnvelope(t, bad), &bridge.GuardianSet{})
		if !errors.Is(err, failure.ErrInvalidEncoding) {
			t.Errorf("ожидалась ErrInvalidEncoding, получена %v", err)
		}
	})
}

// TestExtractVerified_GuardianQuorum проверяет связку с реальной проверкой подписей.
func TestExtractVerified_GuardianQuorum(t *testing.T) {
	_, inner := metadataPayload(t)
	set := &bridge.GuardianSet{Index: 0}
	keys := make(map[uint8]*ec.PrivateKey)
	for i := 0; i < 3; i++ {
		k, err := ec.NewPrivateKey()
		if err != nil {
			t.Fatal(err)
		}
		keys[uint8(i)] = k
		set.Keys = append(set.Keys, k.PubKey())
	}

	env := &bridge.Envelope{Version: bridge.EnvelopeVersion, Sequence: 5, Payload: inner}
	signEnvelope(t, env, keys)

	v := bridge.NewGuardianVerifier(nil, testLogger())
	msg, err := ExtractVerified(context.Background(), v, env.Encode(), set)
	if err != nil {
		t.Fatalf("ошибка: %v", err)
	}
	if msg.Sequence != 5 {
		t.Errorf("ожидалась последовательность 5, получено %d", msg.Sequence)
	}

	unsigned := &bridge.Envelope{Version: bridge.EnvelopeVersion, Sequence: 5, Payload: inner}
	if _, err := ExtractVerified(context.Background(), v, unsigned.Encode(), set); !errors.Is(err, failure.ErrUnverifiedMessage) {
		t.Errorf("ожидалась ErrUnverifiedMessage, получена %v", err)
	}
}
