package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// Ошибки проверки подлинности.
var (
	// ErrGuardianSetMismatch — сообщение подписано другим набором guardian
	ErrGuardianSetMismatch = errors.New("индекс набора guardian не совпадает")
	// ErrGuardianSetExpired — набор guardian истёк
	ErrGuardianSetExpired = errors.New("набор guardian истёк")
	// ErrNoQuorum — подписей меньше кворума
	ErrNoQuorum = errors.New("недостаточно подписей guardian")
	// ErrSignatureOrder — индексы guardian не возрастают или вне набора
	ErrSignatureOrder = errors.New("некорректный порядок подписей guardian")
	// ErrInvalidSignature — подпись не проходит проверку
	ErrInvalidSignature = errors.New("недействительная подпись guardian")
	// ErrUnknownEmitter — отправитель сообщения не разрешён
	ErrUnknownEmitter = errors.New("неизвестный отправитель сообщения")
)

// Verifier — проверка подлинности сообщения моста относительно
// его состояния. Реализация не меняет ни сообщение, ни состояние.
type Verifier interface {
	Verify(ctx context.Context, env *Envelope, state *GuardianSet) error
}

// Emitter — разрешённый отправитель сообщений в исходной сети.
type Emitter struct {
	Chain   uint16
	Address [32]byte
}

// GuardianVerifier проверяет кворум подписей guardian.
type GuardianVerifier struct {
	emitters []Emitter
	now      func() time.Time
	logger   *slog.Logger
}

// NewGuardianVerifier создаёт проверку подписей. Пустой emitters
// разрешает любого отправителя.
func NewGuardianVerifier(emitters []Emitter, logger *slog.Logger) *GuardianVerifier {
	return &GuardianVerifier{
		emitters: emitters,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "guardian_verifier")),
	}
}

// Verify проверяет, что сообщение подписано кворумом различных guardian
// действующего набора.
func (v *GuardianVerifier) Verify(ctx context.Context, env *Envelope, state *GuardianSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil || len(state.Keys) == 0 {
		return fmt.Errorf("пустой набор guardian: %w", ErrNoQuorum)
	}
	if env.GuardianSetIndex != state.Index {
		return fmt.Errorf("сообщение %d, состояние %d: %w", env.GuardianSetIndex, state.Index, ErrGuardianSetMismatch)
	}
	if state.Expired(v.now()) {
		return fmt.Errorf("набор %d: %w", state.Index, ErrGuardianSetExpired)
	}
	if len(v.emitters) > 0 && !v.allowed(env) {
		return fmt.Errorf("цепь %d: %w", env.EmitterChain, ErrUnknownEmitter)
	}
	if len(env.Signatures) < state.Quorum() {
		return fmt.Errorf("%d из %d: %w", len(env.Signatures), state.Quorum(), ErrNoQuorum)
	}

	digest := env.Digest()
	last := -1
	for _, s := range env.Signatures {
		idx := int(s.GuardianIndex)
		if idx <= last || idx >= len(state.Keys) {
			return fmt.Errorf("guardian %d: %w", idx, ErrSignatureOrder)
		}
		last = idx

		sig, err := ec.ParseSignature(s.DER)
		if err != nil {
			return fmt.Errorf("guardian %d: %v: %w", idx, err, ErrInvalidSignature)
		}
		if !sig.Verify(digest, state.Keys[idx]) {
			return fmt.Errorf("guardian %d: %w", idx, ErrInvalidSignature)
		}
	}

	v.logger.Debug("Сообщение моста подтверждено",
		slog.Uint64("sequence", env.Sequence),
		slog.Int("emitter_chain", int(env.EmitterChain)),
		slog.Int("signatures", len(env.Signatures)),
	)
	return nil
}

func (v *GuardianVerifier) allowed(env *Envelope) bool {
	for _, e := range v.emitters {
		if e.Chain == env.EmitterChain && e.Address == env.EmitterAddress {
			return true
		}
	}
	return false
}
