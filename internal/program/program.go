// Пакет program — программа приёма кросс-чейн передач файлов.
//
// Программа получает упорядоченный список аккаунтов
// [bridge, payer, recipient, record, system] и байты инструкции или
// сообщения, проверяет получателя, вычисляет адрес записи, при
// необходимости выделяет под неё место и перезаписывает её целиком.
// Состояние между вызовами в памяти не хранится: всё, что программа
// знает, приходит в аккаунтах.
package program

import (
	"context"
	"log/slog"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/address"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/bridge"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/codec"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/failure"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/payload"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/runtime"
)

// Позиции аккаунтов в вызове.
const (
	AccountBridge = iota
	AccountPayer
	AccountRecipient
	AccountRecord
	AccountSystem

	// AccountCount — число аккаунтов, которое требует каждый вызов
	AccountCount
)

// Operation — вид выполненного приёма.
type Operation string

const (
	// OperationReceiveTransfer — запись TransferRecord получателя
	OperationReceiveTransfer Operation = "receive_transfer"
	// OperationReceiveMessage — запись FileMetadataRecord подтверждённого сообщения
	OperationReceiveMessage Operation = "receive_message"
)

// Receipt — результат успешного вызова.
type Receipt struct {
	Operation     Operation
	RecordAddress model.Identity
	Bump          uint8
	// Allocated — место под запись выделено этим вызовом
	Allocated bool
	// Applied — запись перезаписана; false для повтора уже принятого сообщения
	Applied   bool
	Recipient model.Identity
	// Sequence — порядковый номер сообщения у эмиттера моста; 0 для передач
	Sequence uint64
	// Timestamp — время создания записи в секундах Unix. Единая шкала
	// для обоих путей приёма, по ней упорядочивается индекс получателя.
	Timestamp uint64
	Transfer  *model.TransferRecord
	Metadata  *model.FileMetadataRecord
}

// Options — параметры программы.
type Options struct {
	// BridgeState — адрес аккаунта с набором guardian
	BridgeState model.Identity
	// Fencing — отклонять устаревшие и конфликтующие сообщения
	Fencing bool
}

// Program — программа приёма передач.
type Program struct {
	id          model.Identity
	deriver     *address.Deriver
	allocator   runtime.Allocator
	verifier    bridge.Verifier
	bridgeState model.Identity
	fencing     bool
	logger      *slog.Logger
}

// New создаёт программу. Идентификатор программы берётся из deriver.
func New(deriver *address.Deriver, allocator runtime.Allocator, verifier bridge.Verifier, opts Options, logger *slog.Logger) *Program {
	return &Program{
		id:          deriver.ProgramID(),
		deriver:     deriver,
		allocator:   allocator,
		verifier:    verifier,
		bridgeState: opts.BridgeState,
		fencing:     opts.Fencing,
		logger:      logger.With(slog.String("component", "program")),
	}
}

// ID возвращает идентификатор программы.
func (p *Program) ID() model.Identity {
	return p.id
}

// ProcessInstruction декодирует инструкцию и выполняет её.
// Определён единственный вариант — приём передачи файла.
func (p *Program) ProcessInstruction(ctx context.Context, accounts []*runtime.AccountHandle, data []byte) (*Receipt, error) {
	env, err := codec.DecodeInstruction(data)
	if err != nil {
		return nil, failure.Wrap(failure.ErrMalformedInstruction, err, "декодирование инструкции")
	}

	switch env.Kind {
	case model.InstructionReceiveFileTransfer:
		return p.receiveTransfer(ctx, accounts, env.ReceiveFileTransfer)
	default:
		return nil, failure.New(failure.ErrMalformedInstruction, "вариант %d", env.Kind)
	}
}

// ReceivePositional разбирает сырой буфер позиционно и принимает
// передачу. Подлинность буфера не проверяется.
func (p *Program) ReceivePositional(ctx context.Context, accounts []*runtime.AccountHandle, buf []byte) (*Receipt, error) {
	pl, err := payload.ExtractPositional(buf)
	if err != nil {
		return nil, err
	}
	return p.receiveTransfer(ctx, accounts, pl)
}

// ReceiveMessage проверяет сообщение моста относительно набора guardian
// из аккаунта моста и сохраняет FileMetadataRecord по идентификатору
// сообщения.
func (p *Program) ReceiveMessage(ctx context.Context, accounts []*runtime.AccountHandle, raw []byte) (*Receipt, error) {
	if len(accounts) < AccountCount {
		return nil, failure.New(failure.ErrNotEnoughAccounts, "передано %d, нужно %d", len(accounts), AccountCount)
	}

	state, err := p.bridgeGuardianSet(accounts[AccountBridge])
	if err != nil {
		return nil, err
	}

	msg, err := payload.ExtractVerified(ctx, p.verifier, raw, state)
	if err != nil {
		return nil, err
	}
	inner := msg.Payload

	if err := AuthorizeRecipient(accounts[AccountRecipient], inner.Recipient); err != nil {
		return nil, err
	}

	derived, err := p.deriver.MetadataAddress(inner.ID)
	if err != nil {
		return nil, failure.Wrap(failure.ErrAllocationFailed, err, "адрес метаданных")
	}

	record := accounts[AccountRecord]
	allocated, err := p.EnsureExists(accounts[AccountPayer], accounts[AccountSystem], record, derived, codec.FileMetadataRecordSize)
	if err != nil {
		return nil, err
	}

	stored, err := LoadMetadata(record)
	if err != nil {
		return nil, err
	}

	incoming := inner.Record()
	apply, err := p.fenceMetadata(stored, incoming)
	if err != nil {
		return nil, err
	}
	if apply {
		if err := PersistMetadata(record, incoming); err != nil {
			return nil, err
		}
	}

	p.logger.Info("Метаданные файла получены",
		slog.String("id", incoming.ID.String()),
		slog.String("content_locator", incoming.ContentLocator),
		slog.String("original_sender", incoming.OriginalSender.String()),
		slog.String("recipient", inner.Recipient.String()),
		slog.Uint64("sequence", msg.Sequence),
		slog.Bool("applied", apply),
	)

	return &Receipt{
		Operation:     OperationReceiveMessage,
		RecordAddress: derived.Address,
		Bump:          derived.Bump,
		Allocated:     allocated,
		Applied:       apply,
		Recipient:     inner.Recipient,
		Sequence:      msg.Sequence,
		Timestamp:     uint64(msg.Timestamp),
		Metadata:      &incoming,
	}, nil
}

func (p *Program) receiveTransfer(_ context.Context, accounts []*runtime.AccountHandle, pl model.TransferPayload) (*Receipt, error) {
	if len(accounts) < AccountCount {
		return nil, failure.New(failure.ErrNotEnoughAccounts, "передано %d, нужно %d", len(accounts), AccountCount)
	}

	if err := AuthorizeRecipient(accounts[AccountRecipient], pl.Recipient); err != nil {
		return nil, err
	}

	derived, err := p.deriver.TransferAddress(pl.Recipient)
	if err != nil {
		return nil, failure.Wrap(failure.ErrAllocationFailed, err, "адрес записи")
	}

	record := accounts[AccountRecord]
	allocated, err := p.EnsureExists(accounts[AccountPayer], accounts[AccountSystem], record, derived, codec.TransferRecordSize)
	if err != nil {
		return nil, err
	}

	stored, err := LoadTransfer(record)
	if err != nil {
		return nil, err
	}

	incoming := pl.Record()
	apply, err := p.fenceTransfer(stored, incoming)
	if err != nil {
		return nil, err
	}
	if apply {
		if err := PersistTransfer(record, incoming); err != nil {
			return nil, err
		}
	}

	p.logger.Info("Передача файла получена",
		slog.String("content_locator", incoming.ContentLocator),
		slog.String("recipient", incoming.Recipient.String()),
		slog.String("sender", incoming.Sender.String()),
		slog.Uint64("created_at", incoming.CreatedAt),
		slog.Bool("allocated", allocated),
		slog.Bool("applied", apply),
	)

	return &Receipt{
		Operation:     OperationReceiveTransfer,
		RecordAddress: derived.Address,
		Bump:          derived.Bump,
		Allocated:     allocated,
		Applied:       apply,
		Recipient:     incoming.Recipient,
		Timestamp:     incoming.CreatedAt,
		Transfer:      &incoming,
	}, nil
}

// bridgeGuardianSet читает набор guardian из аккаунта моста.
// Любое несоответствие аккаунта делает сообщение неподтверждаемым.
func (p *Program) bridgeGuardianSet(h *runtime.AccountHandle) (*bridge.GuardianSet, error) {
	if h.Key != p.bridgeState {
		return nil, failure.New(failure.ErrUnverifiedMessage, "аккаунт моста %s, ожидается %s", h.Key, p.bridgeState)
	}
	if h.Owner != p.id {
		return nil, failure.New(failure.ErrUnverifiedMessage, "аккаунт моста принадлежит %s", h.Owner)
	}
	state, err := bridge.DecodeGuardianSet(h.Data)
	if err != nil {
		return nil, failure.Wrap(failure.ErrUnverifiedMessage, err, "состояние моста")
	}
	return state, nil
}
