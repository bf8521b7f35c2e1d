package address

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// Prometheus-метрики кэша адресов.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tr_address_cache_hits_total",
		Help: "Общее количество попаданий в кэш производных адресов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tr_address_cache_misses_total",
		Help: "Общее количество промахов кэша производных адресов.",
	})
)

// Deriver — вычисление адресов записей для конкретной программы.
// Результат — чистая функция от (namespace, key, programID), поэтому
// кэширование не хранит состояние между вызовами программы.
type Deriver struct {
	programID model.Identity
	cache     *expirable.LRU[string, Derived]
}

// NewDeriver создаёт вычислитель адресов.
// cacheSize = 0 отключает кэш.
func NewDeriver(programID model.Identity, cacheSize int, ttl time.Duration) *Deriver {
	d := &Deriver{programID: programID}
	if cacheSize > 0 {
		d.cache = expirable.NewLRU[string, Derived](cacheSize, nil, ttl)
	}
	return d
}

// ProgramID возвращает идентификатор программы-владельца адресов.
func (d *Deriver) ProgramID() model.Identity {
	return d.programID
}

// Derive вычисляет адрес записи в пространстве имён namespace для ключа key.
func (d *Deriver) Derive(namespace string, key model.Identity) (Derived, error) {
	if namespace != NamespaceTransfer && namespace != NamespaceMetadata {
		return Derived{}, fmt.Errorf("неизвестное пространство имён %q", namespace)
	}

	cacheKey := namespace + ":" + key.String()
	if d.cache != nil {
		if v, ok := d.cache.Get(cacheKey); ok {
			cacheHitsTotal.Inc()
			return v, nil
		}
		cacheMissesTotal.Inc()
	}

	derived, err := FindProgramAddress(Seeds(namespace, key), d.programID)
	if err != nil {
		return Derived{}, fmt.Errorf("вычисление адреса %s/%s: %w", namespace, key, err)
	}

	if d.cache != nil {
		d.cache.Add(cacheKey, derived)
	}
	return derived, nil
}

// TransferAddress — адрес TransferRecord получателя.
func (d *Deriver) TransferAddress(recipient model.Identity) (Derived, error) {
	return d.Derive(NamespaceTransfer, recipient)
}

// MetadataAddress — адрес FileMetadataRecord сообщения.
func (d *Deriver) MetadataAddress(messageID model.Identity) (Derived, error) {
	return d.Derive(NamespaceMetadata, messageID)
}

// BridgeStateAddress — адрес аккаунта с набором guardian моста.
func (d *Deriver) BridgeStateAddress() (Derived, error) {
	return FindProgramAddress([][]byte{[]byte(BridgeStateSeed)}, d.programID)
}
