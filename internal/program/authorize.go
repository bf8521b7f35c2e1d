package program

import (
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/failure"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
	"github.com/zk-Lokomotive/zkl-sui-sol/internal/runtime"
)

// AuthorizeRecipient проверяет, что аккаунт получателя совпадает с
// получателем из сообщения. Вызывается до любого изменения аккаунтов.
func AuthorizeRecipient(h *runtime.AccountHandle, recipient model.Identity) error {
	if h.Key != recipient {
		return failure.New(failure.ErrRecipientMismatch, "аккаунт %s, в сообщении %s", h.Key, recipient)
	}
	return nil
}
