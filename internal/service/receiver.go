// receiver.go — приём передач: вызов программы через исполнитель,
// метрики и обновление индекса получателей.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/address"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/codec"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/failure"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/payload"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/program"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/repository"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/runtime"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/storage/accounts"
)

// Prometheus метрики приёма
var (
	// instructionsTotal — вызовы программы по операции и результату.
	instructionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tr_instructions_total",
		Help: "Общее количество вызовов программы по операции и результату",
	}, []string{"operation", "result"})

	// allocationsTotal — выделения места под записи.
	allocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tr_allocations_total",
		Help: "Общее количество выделений места под записи",
	}, []string{"operation"})

	// indexUpdatesTotal — обновления индекса получателей.
	indexUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tr_recipient_index_updates_total",
		Help: "Общее количество обновлений индекса получателей по результату",
	}, []string{"result"})
)

// Операции для метрик.
const (
	OperationInstruction = "instruction"
	OperationMessage     = "message"
	OperationPayload     = "payload"
)

// Submission — результат принятого вызова.
type Submission struct {
	Receipt *program.Receipt
	// TransactionID — WAL-транзакция коммита; пусто, если аккаунты не изменились
	TransactionID string
}

// ReceiverOptions — параметры сервиса приёма.
type ReceiverOptions struct {
	// Strategy — извлечение для /messages; пусто — structured
	Strategy          payload.Strategy
	AllowUnverified   bool
	FaucetEnabled     bool
	FaucetMaxLamports uint64
}

// ReceiverService — сервис приёма передач.
type ReceiverService struct {
	exec    *runtime.Executor
	prog    *program.Program
	deriver *address.Deriver
	index   repository.RecipientIndexRepository
	opts    ReceiverOptions
	logger  *slog.Logger
}

// NewReceiverService создаёт сервис приёма.
func NewReceiverService(
	exec *runtime.Executor,
	prog *program.Program,
	deriver *address.Deriver,
	index repository.RecipientIndexRepository,
	opts ReceiverOptions,
	logger *slog.Logger,
) *ReceiverService {
	return &ReceiverService{
		exec:    exec,
		prog:    prog,
		deriver: deriver,
		index:   index,
		opts:    opts,
		logger:  logger.With(slog.String("component", "receiver")),
	}
}

// SubmitInstruction выполняет закодированную инструкцию программы.
func (s *ReceiverService) SubmitInstruction(ctx context.Context, metas []runtime.AccountMeta, data []byte) (*Submission, error) {
	return s.submit(ctx, OperationInstruction, metas, func(ctx context.Context, accs []*runtime.AccountHandle) (*program.Receipt, error) {
		return s.prog.ProcessInstruction(ctx, accs, data)
	})
}

// SubmitMessage принимает сообщение моста. При стратегии positional
// тело разбирается как сырой буфер без проверки подлинности.
func (s *ReceiverService) SubmitMessage(ctx context.Context, metas []runtime.AccountMeta, envelope []byte) (*Submission, error) {
	if s.opts.Strategy == payload.StrategyPositional {
		return s.SubmitPayload(ctx, metas, envelope)
	}
	return s.submit(ctx, OperationMessage, metas, func(ctx context.Context, accs []*runtime.AccountHandle) (*program.Receipt, error) {
		return s.prog.ReceiveMessage(ctx, accs, envelope)
	})
}

// SubmitPayload принимает сырой буфер позиционным извлечением.
// Доступно только при включённом AllowUnverified.
func (s *ReceiverService) SubmitPayload(ctx context.Context, metas []runtime.AccountMeta, buf []byte) (*Submission, error) {
	if !s.opts.AllowUnverified {
		return nil, ErrUnverifiedDisabled
	}
	return s.submit(ctx, OperationPayload, metas, func(ctx context.Context, accs []*runtime.AccountHandle) (*program.Receipt, error) {
		return s.prog.ReceivePositional(ctx, accs, buf)
	})
}

type invokeFunc func(ctx context.Context, accs []*runtime.AccountHandle) (*program.Receipt, error)

// submit выполняет вызов через исполнитель и после коммита обновляет индекс.
func (s *ReceiverService) submit(ctx context.Context, operation string, metas []runtime.AccountMeta, fn invokeFunc) (*Submission, error) {
	var receipt *program.Receipt
	result, err := s.exec.Execute(ctx, metas, func(ctx context.Context, accs []*runtime.AccountHandle) error {
		r, err := fn(ctx, accs)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		instructionsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
		s.logger.Warn("Вызов программы отклонён",
			slog.String("operation", operation),
			slog.String("code", string(failure.CodeOf(err))),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	instructionsTotal.WithLabelValues(operation, "success").Inc()
	if receipt.Allocated {
		allocationsTotal.WithLabelValues(string(receipt.Operation)).Inc()
	}

	s.updateIndex(ctx, receipt)

	return &Submission{Receipt: receipt, TransactionID: result.TransactionID}, nil
}

// updateIndex продвигает указатель получателя по времени создания
// записи: у передач и сообщений моста это одна шкала, номера сообщений
// разных эмиттеров между собой не сравниваются. Запись уже сохранена,
// поэтому ошибка индекса только логируется.
func (s *ReceiverService) updateIndex(ctx context.Context, r *program.Receipt) {
	if !r.Applied {
		return
	}

	namespace := address.NamespaceTransfer
	if r.Operation == program.OperationReceiveMessage {
		namespace = address.NamespaceMetadata
	}

	advanced, err := s.index.Upsert(ctx, &model.RecipientPointer{
		Recipient:     r.Recipient,
		Namespace:     namespace,
		RecordAddress: r.RecordAddress,
		Sequence:      r.Sequence,
		Timestamp:     r.Timestamp,
	})
	if err != nil {
		indexUpdatesTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка обновления индекса получателей",
			slog.String("recipient", r.Recipient.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if advanced {
		indexUpdatesTotal.WithLabelValues("advanced").Inc()
	} else {
		indexUpdatesTotal.WithLabelValues("skipped").Inc()
	}
}

// GetTransfer возвращает текущую запись получателя и её адрес.
func (s *ReceiverService) GetTransfer(ctx context.Context, recipient model.Identity) (*model.TransferRecord, address.Derived, error) {
	derived, err := s.deriver.TransferAddress(recipient)
	if err != nil {
		return nil, address.Derived{}, err
	}
	acc, err := s.loadOwned(ctx, derived.Address)
	if err != nil {
		return nil, derived, err
	}
	rec, err := codec.DecodeTransferRecord(acc.Data)
	if err != nil {
		return nil, derived, failure.Wrap(failure.ErrCorruptRecord, err, "аккаунт %s", derived.Address)
	}
	if rec.IsEmpty() {
		return nil, derived, ErrNotFound
	}
	return &rec, derived, nil
}

// GetMetadata возвращает запись метаданных сообщения и её адрес.
func (s *ReceiverService) GetMetadata(ctx context.Context, messageID model.Identity) (*model.FileMetadataRecord, address.Derived, error) {
	derived, err := s.deriver.MetadataAddress(messageID)
	if err != nil {
		return nil, address.Derived{}, err
	}
	acc, err := s.loadOwned(ctx, derived.Address)
	if err != nil {
		return nil, derived, err
	}
	rec, err := codec.DecodeFileMetadataRecord(acc.Data)
	if err != nil {
		return nil, derived, failure.Wrap(failure.ErrCorruptRecord, err, "аккаунт %s", derived.Address)
	}
	if rec.IsEmpty() {
		return nil, derived, ErrNotFound
	}
	return &rec, derived, nil
}

// loadOwned читает аккаунт записи; аккаунт без данных программы — ErrNotFound.
func (s *ReceiverService) loadOwned(ctx context.Context, addr model.Identity) (*model.Account, error) {
	acc, err := s.exec.Load(ctx, addr)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if acc.Owner != s.exec.ProgramID() {
		return nil, ErrNotFound
	}
	return acc, nil
}

// ProgramID возвращает идентификатор программы приёма.
func (s *ReceiverService) ProgramID() model.Identity {
	return s.exec.ProgramID()
}

// GetAccount возвращает состояние аккаунта.
func (s *ReceiverService) GetAccount(ctx context.Context, addr model.Identity) (*model.Account, error) {
	acc, err := s.exec.Load(ctx, addr)
	if errors.Is(err, accounts.ErrNotFound) {
		return nil, ErrNotFound
	}
	return acc, err
}

// DeriveAddress вычисляет адрес записи. Результат носит справочный
// характер: программа всегда вычисляет адрес заново.
func (s *ReceiverService) DeriveAddress(namespace string, key model.Identity) (address.Derived, error) {
	derived, err := s.deriver.Derive(namespace, key)
	if err != nil {
		return address.Derived{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return derived, nil
}

// LatestForRecipient возвращает указатель индекса получателя.
func (s *ReceiverService) LatestForRecipient(ctx context.Context, recipient model.Identity) (*model.RecipientPointer, error) {
	p, err := s.index.Get(ctx, recipient)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// Airdrop пополняет баланс аккаунта (dev faucet).
func (s *ReceiverService) Airdrop(ctx context.Context, addr model.Identity, lamports uint64) (*model.Account, error) {
	if !s.opts.FaucetEnabled {
		return nil, ErrFaucetDisabled
	}
	if lamports == 0 || lamports > s.opts.FaucetMaxLamports {
		return nil, fmt.Errorf("%w: сумма должна быть от 1 до %d", ErrValidation, s.opts.FaucetMaxLamports)
	}
	return s.exec.Airdrop(ctx, addr, lamports)
}

// resultLabel — значение метки result для отказа.
func resultLabel(err error) string {
	if code := failure.CodeOf(err); code != "" {
		return strings.ToLower(string(code))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "error"
}
