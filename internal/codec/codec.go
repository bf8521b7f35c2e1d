// Пакет codec — двоичное кодирование инструкций и записей программы.
//
// Формат совместим с Borsh:
//   - тег варианта — u8
//   - строка — u32 LE длина + байты UTF-8
//   - идентификатор — 32 байта как есть
//   - u64 — 8 байт little-endian
//
// Все чтения проходят через util.Reader с проверкой границ: ни одна длина
// из входных данных не используется для среза без сверки с размером буфера.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/bsv-blockchain/go-sdk/util"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// Ошибки декодирования.
var (
	// ErrTruncated — данных меньше, чем требует очередное поле
	ErrTruncated = errors.New("неожиданный конец данных")
	// ErrTrailingBytes — после последнего поля остались лишние байты
	ErrTrailingBytes = errors.New("лишние байты после конца структуры")
	// ErrUnknownVariant — тег варианта не определён
	ErrUnknownVariant = errors.New("неизвестный вариант")
	// ErrInvalidUTF8 — строковое поле не является корректным UTF-8
	ErrInvalidUTF8 = errors.New("строка не является корректным UTF-8")
	// ErrStringTooLong — строка длиннее допустимого предела
	ErrStringTooLong = errors.New("строка превышает допустимую длину")
)

// decoder — последовательное чтение полей поверх util.Reader.
type decoder struct {
	r *util.Reader
}

func newDecoder(data []byte) *decoder {
	return &decoder{r: util.NewReader(data)}
}

// remaining возвращает количество непрочитанных байтов.
func (d *decoder) remaining() int {
	return len(d.r.Data) - d.r.Pos
}

func (d *decoder) bytes(n int, field string) ([]byte, error) {
	if n < 0 || n > d.remaining() {
		return nil, fmt.Errorf("%s: нужно %d байт, осталось %d: %w", field, n, d.remaining(), ErrTruncated)
	}
	b, err := d.r.ReadBytes(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", field, err, ErrTruncated)
	}
	return b, nil
}

func (d *decoder) u8(field string) (uint8, error) {
	b, err := d.bytes(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u32(field string) (uint32, error) {
	b, err := d.bytes(4, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) u64(field string) (uint64, error) {
	b, err := d.bytes(8, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *decoder) identity(field string) (model.Identity, error) {
	b, err := d.bytes(model.IdentitySize, field)
	if err != nil {
		return model.Identity{}, err
	}
	var id model.Identity
	copy(id[:], b)
	return id, nil
}

// str читает строку Borsh: u32 длина, затем байты.
func (d *decoder) str(field string, maxLen int) (string, error) {
	n, err := d.u32(field)
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(maxLen) {
		return "", fmt.Errorf("%s: длина %d > %d: %w", field, n, maxLen, ErrStringTooLong)
	}
	b, err := d.bytes(int(n), field)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%s: %w", field, ErrInvalidUTF8)
	}
	return string(b), nil
}

// finish проверяет, что все байты прочитаны.
func (d *decoder) finish() error {
	if d.remaining() != 0 {
		return fmt.Errorf("%d байт: %w", d.remaining(), ErrTrailingBytes)
	}
	return nil
}

// finishPadded допускает хвост из нулей — аккаунты фиксированного размера
// длиннее закодированной записи.
func (d *decoder) finishPadded() error {
	for _, b := range d.r.ReadRemaining() {
		if b != 0 {
			return fmt.Errorf("ненулевой хвост записи: %w", ErrTrailingBytes)
		}
	}
	return nil
}

// encoder — буферизованная запись полей поверх util.Writer.
type encoder struct {
	w *util.Writer
}

func newEncoder() *encoder {
	return &encoder{w: util.NewWriter()}
}

func (e *encoder) u8(v uint8) {
	e.w.WriteByte(v)
}

func (e *encoder) u32(v uint32) {
	e.w.WriteBytes(binary.LittleEndian.AppendUint32(nil, v))
}

func (e *encoder) u64(v uint64) {
	e.w.WriteBytes(binary.LittleEndian.AppendUint64(nil, v))
}

func (e *encoder) identity(id model.Identity) {
	e.w.WriteBytes(id[:])
}

func (e *encoder) str(field, s string, maxLen int) error {
	if len(s) > maxLen {
		return fmt.Errorf("%s: длина %d > %d: %w", field, len(s), maxLen, ErrStringTooLong)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s: %w", field, ErrInvalidUTF8)
	}
	e.u32(uint32(len(s)))
	e.w.WriteBytes([]byte(s))
	return nil
}

func (e *encoder) bytes() []byte {
	return e.w.Buf
}
