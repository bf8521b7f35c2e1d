package model

import "time"

// Account — сохранённое состояние аккаунта.
// Хранится в файле <base58>.acct.json, data сериализуется как base64.
type Account struct {
	// Address — адрес аккаунта
	Address Identity `json:"address"`
	// Lamports — баланс аккаунта
	Lamports uint64 `json:"lamports"`
	// Owner — программа-владелец; нулевой идентификатор — системная программа
	Owner Identity `json:"owner"`
	// Data — данные аккаунта фиксированного размера
	Data []byte `json:"data"`
	// UpdatedAt — время последнего коммита (UTC)
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone возвращает глубокую копию аккаунта.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}
