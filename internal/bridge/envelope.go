// Пакет bridge — разбор и проверка подлинности сообщений моста.
//
// Сообщение моста (envelope) состоит из заголовка с подписями guardian
// и тела. Подписывается двойной SHA-256 тела, поэтому подписи не
// зависят от порядка и количества других подписей.
//
//	header: version u8 | guardian_set_index u32 BE | sig_count u8 |
//	        sig_count × (guardian_index u8 | varint len | DER подпись)
//	body:   timestamp u32 BE | nonce u32 BE | emitter_chain u16 BE |
//	        emitter_address [32] | sequence u64 BE | consistency u8 | payload
package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"

	crypto "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/bsv-blockchain/go-sdk/util"
)

// EnvelopeVersion — поддерживаемая версия формата.
const EnvelopeVersion uint8 = 1

// maxSignatureLen — предельная длина DER-подписи secp256k1.
const maxSignatureLen = 72

// bodyHeaderLen — длина фиксированной части тела до payload.
const bodyHeaderLen = 4 + 4 + 2 + 32 + 8 + 1

// maxHeaderLen — заголовок с полным набором подписей: у каждой индекс,
// однобайтовый varint длины и DER не длиннее maxSignatureLen.
const maxHeaderLen = 1 + 4 + 1 + MaxGuardians*(1+1+maxSignatureLen)

// MaxEnvelopeLen — предельная длина сообщения моста с payload длины payloadLen.
func MaxEnvelopeLen(payloadLen int) int {
	return maxHeaderLen + bodyHeaderLen + payloadLen
}

// Ошибки разбора.
var (
	// ErrTruncated — данных меньше, чем требует очередное поле
	ErrTruncated = errors.New("сообщение моста обрезано")
	// ErrMalformed — структура сообщения некорректна
	ErrMalformed = errors.New("некорректное сообщение моста")
)

// Signature — подпись одного guardian.
type Signature struct {
	GuardianIndex uint8
	DER           []byte
}

// Envelope — разобранное сообщение моста.
type Envelope struct {
	Version          uint8
	GuardianSetIndex uint32
	Signatures       []Signature

	Timestamp      uint32
	Nonce          uint32
	EmitterChain   uint16
	EmitterAddress [32]byte
	Sequence       uint64
	Consistency    uint8
	Payload        []byte

	body []byte
}

// ParseEnvelope разбирает сообщение моста. Каждая длина сверяется с
// размером буфера до чтения.
func ParseEnvelope(data []byte) (*Envelope, error) {
	r := util.NewReader(data)
	env := &Envelope{}

	version, err := readN(r, 1, "version")
	if err != nil {
		return nil, err
	}
	env.Version = version[0]
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("версия %d: %w", env.Version, ErrMalformed)
	}

	idx, err := readN(r, 4, "guardian_set_index")
	if err != nil {
		return nil, err
	}
	env.GuardianSetIndex = binary.BigEndian.Uint32(idx)

	count, err := readN(r, 1, "signature_count")
	if err != nil {
		return nil, err
	}
	if int(count[0]) > MaxGuardians {
		return nil, fmt.Errorf("%d подписей, максимум %d: %w", count[0], MaxGuardians, ErrMalformed)
	}
	env.Signatures = make([]Signature, 0, count[0])
	for i := 0; i < int(count[0]); i++ {
		gi, err := readN(r, 1, "guardian_index")
		if err != nil {
			return nil, err
		}
		if r.IsComplete() {
			return nil, fmt.Errorf("длина подписи %d: %w", i, ErrTruncated)
		}
		n, err := r.ReadVarInt()
		if err != nil {
			return nil, fmt.Errorf("длина подписи %d: %v: %w", i, err, ErrTruncated)
		}
		if n == 0 || n > maxSignatureLen {
			return nil, fmt.Errorf("длина подписи %d = %d: %w", i, n, ErrMalformed)
		}
		der, err := readN(r, int(n), "signature")
		if err != nil {
			return nil, err
		}
		env.Signatures = append(env.Signatures, Signature{
			GuardianIndex: gi[0],
			DER:           append([]byte(nil), der...),
		})
	}

	bodyStart := r.Pos
	header, err := readN(r, bodyHeaderLen, "body")
	if err != nil {
		return nil, err
	}
	env.Timestamp = binary.BigEndian.Uint32(header[0:4])
	env.Nonce = binary.BigEndian.Uint32(header[4:8])
	env.EmitterChain = binary.BigEndian.Uint16(header[8:10])
	copy(env.EmitterAddress[:], header[10:42])
	env.Sequence = binary.BigEndian.Uint64(header[42:50])
	env.Consistency = header[50]
	env.Payload = append([]byte(nil), r.ReadRemaining()...)
	env.body = append([]byte(nil), data[bodyStart:]...)

	return env, nil
}

// Body возвращает подписываемую часть сообщения.
func (e *Envelope) Body() []byte {
	if e.body == nil {
		e.body = e.encodeBody()
	}
	return e.body
}

// Digest возвращает двойной SHA-256 тела — подписываемое значение.
func (e *Envelope) Digest() []byte {
	return crypto.Sha256d(e.Body())
}

// Encode сериализует сообщение моста.
func (e *Envelope) Encode() []byte {
	w := util.NewWriter()
	w.WriteByte(e.Version)
	w.WriteBytes(binary.BigEndian.AppendUint32(nil, e.GuardianSetIndex))
	w.WriteByte(uint8(len(e.Signatures)))
	for _, s := range e.Signatures {
		w.WriteByte(s.GuardianIndex)
		w.WriteIntBytes(s.DER)
	}
	w.WriteBytes(e.Body())
	return w.Buf
}

func (e *Envelope) encodeBody() []byte {
	w := util.NewWriter()
	w.WriteBytes(binary.BigEndian.AppendUint32(nil, e.Timestamp))
	w.WriteBytes(binary.BigEndian.AppendUint32(nil, e.Nonce))
	w.WriteBytes(binary.BigEndian.AppendUint16(nil, e.EmitterChain))
	w.WriteBytes(e.EmitterAddress[:])
	w.WriteBytes(binary.BigEndian.AppendUint64(nil, e.Sequence))
	w.WriteByte(e.Consistency)
	w.WriteBytes(e.Payload)
	return w.Buf
}

func readN(r *util.Reader, n int, field string) ([]byte, error) {
	if n > len(r.Data)-r.Pos {
		return nil, fmt.Errorf("%s: нужно %d байт, осталось %d: %w", field, n, len(r.Data)-r.Pos, ErrTruncated)
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", field, err, ErrTruncated)
	}
	return b, nil
}
