package model

// InstructionKind — тег варианта инструкции.
type InstructionKind uint8

const (
	// InstructionReceiveFileTransfer — единственный определённый вариант
	InstructionReceiveFileTransfer InstructionKind = 0
)

// InstructionEnvelope — декодированная инструкция программы.
// Создаётся на один вызов и не сохраняется.
type InstructionEnvelope struct {
	Kind InstructionKind

	// ReceiveFileTransfer — поля варианта InstructionReceiveFileTransfer
	ReceiveFileTransfer TransferPayload
}

// NewReceiveFileTransfer собирает инструкцию приёма передачи.
func NewReceiveFileTransfer(p TransferPayload) InstructionEnvelope {
	return InstructionEnvelope{
		Kind:                InstructionReceiveFileTransfer,
		ReceiveFileTransfer: p,
	}
}
