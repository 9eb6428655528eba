package redisstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	recordVersionCurrent = 1
	maxPayloadLen        = 1 << 24
)

// ErrCorruptRecord is returned when a stored session record cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt session record")

// Codec converts a session payload to and from bytes.
type Codec[D any] interface {
	Encode(D) ([]byte, error)
	Decode([]byte) (D, error)
}

// JSONCodec is the default payload codec.
type JSONCodec[D any] struct{}

func (JSONCodec[D]) Encode(data D) ([]byte, error) { return json.Marshal(data) }

func (JSONCodec[D]) Decode(raw []byte) (D, error) {
	var data D
	err := json.Unmarshal(raw, &data)
	return data, err
}

// record is the stored form of one session.
//
// Layout (big endian): version u8, user id length u8, user id, created-at
// i64 unix seconds, expires-at i64 unix seconds (0 = no absolute cap),
// payload length u32, payload.
type record struct {
	UserID    string
	CreatedAt int64
	ExpiresAt int64
	Payload   []byte
}

func encodeRecord(r *record) ([]byte, error) {
	if len(r.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	if len(r.Payload) > maxPayloadLen {
		return nil, errors.New("session payload too large")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 1 + len(r.UserID) + 8 + 8 + 4 + len(r.Payload))

	buf.WriteByte(recordVersionCurrent)
	buf.WriteByte(byte(len(r.UserID)))
	buf.WriteString(r.UserID)

	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(r.Payload))); err != nil {
		return nil, err
	}
	buf.Write(r.Payload)

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if version != recordVersionCurrent {
		return nil, fmt.Errorf("%w: unsupported record version %d", ErrCorruptRecord, version)
	}

	r := &record{}

	userLen, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	r.UserID = string(userID)

	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	var payloadLen uint32
	if err := binary.Read(reader, binary.BigEndian, &payloadLen); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if int(payloadLen) != reader.Len() {
		return nil, fmt.Errorf("%w: payload length mismatch", ErrCorruptRecord)
	}
	r.Payload = make([]byte, payloadLen)
	if _, err := io.ReadFull(reader, r.Payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	return r, nil
}
