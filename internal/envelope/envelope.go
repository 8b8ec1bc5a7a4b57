package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType: тег типа в поле messageType.
type MessageType string

const (
	TypeAuthenticate   MessageType = "ProtocolAuthenticate"
	TypeOpenRequest    MessageType = "ProtocolOpenRequest"
	TypeSubmitRequest  MessageType = "ProtocolSubmitRequest"
	TypeSubmitResponse MessageType = "ProtocolSubmitResponse"
	TypeWaveletUpdate  MessageType = "ProtocolWaveletUpdate"
)

// Known сообщает, входит ли тип в закрытый набор протокола.
func (t MessageType) Known() bool {
	_, ok := codecs[t]
	return ok
}

var ErrNilPayload = errors.New("envelope: nil payload")

// Envelope: сообщение транспортного уровня.
type Envelope struct {
	SequenceNumber int64
	MessageType    MessageType
	Payload        Payload
}

// Wrap упаковывает payload в конверт; тип берётся из самого payload.
func Wrap(seq int64, p Payload) *Envelope {
	e := &Envelope{SequenceNumber: seq, Payload: p}
	if p != nil {
		e.MessageType = p.Type()
	}
	return e
}

// порядок полей важен: сервер сравнивает формат с WebSocketChannel
type wireEnvelope struct {
	SequenceNumber int64           `json:"sequenceNumber"`
	MessageType    MessageType     `json:"messageType"`
	Message        json.RawMessage `json:"message"`
}

type wireEnvelopeIn struct {
	SequenceNumber *int64          `json:"sequenceNumber"`
	MessageType    *MessageType    `json:"messageType"`
	Message        json.RawMessage `json:"message"`
}

// Marshal сериализует конверт в компактный JSON.
func Marshal(e *Envelope) ([]byte, error) {
	if e == nil || e.Payload == nil {
		return nil, ErrNilPayload
	}
	if e.SequenceNumber < 0 {
		return nil, fmt.Errorf("envelope: negative sequence number %d", e.SequenceNumber)
	}
	body, err := MarshalPayload(e.Payload)
	if err != nil {
		return nil, err
	}
	typ := e.MessageType
	if typ == "" {
		typ = e.Payload.Type()
	}
	// без HTML-экранирования: текст документов уходит байт в байт
	return marshalJSON(wireEnvelope{
		SequenceNumber: e.SequenceNumber,
		MessageType:    typ,
		Message:        body,
	})
}

// MarshalPayload кодирует только тело сообщения (поле message).
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, ErrNilPayload
	}
	c, ok := codecs[p.Type()]
	if !ok {
		u, isUnknown := p.(*Unknown)
		if !isUnknown {
			return nil, fmt.Errorf("envelope: no codec for %q", p.Type())
		}
		if len(u.Raw) == 0 {
			return []byte("{}"), nil
		}
		return u.Raw, nil
	}
	body, err := c.encode(p)
	if err != nil {
		return nil, fmt.Errorf("envelope: encode %s: %w", p.Type(), err)
	}
	return body, nil
}

// Unmarshal разбирает текст, пришедший с транспорта. Ошибка всегда *DecodeError.
func Unmarshal(data []byte) (*Envelope, error) {
	var w wireEnvelopeIn
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &DecodeError{Reason: "malformed json", Err: err}
	}
	switch {
	case w.SequenceNumber == nil:
		return nil, &DecodeError{Reason: "missing sequenceNumber"}
	case w.MessageType == nil:
		return nil, &DecodeError{Reason: "missing messageType"}
	case len(w.Message) == 0 || bytes.Equal(w.Message, []byte("null")):
		return nil, &DecodeError{Reason: "missing message"}
	}
	if *w.SequenceNumber < 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("negative sequenceNumber %d", *w.SequenceNumber)}
	}

	typ := *w.MessageType
	c, ok := codecs[typ]
	if !ok {
		raw := make(json.RawMessage, len(w.Message))
		copy(raw, w.Message)
		return &Envelope{
			SequenceNumber: *w.SequenceNumber,
			MessageType:    typ,
			Payload:        &Unknown{Tag: typ, Raw: raw},
		}, nil
	}
	p, err := c.decode(w.Message)
	if err != nil {
		return nil, &DecodeError{Reason: "bad " + string(typ) + " message", Err: err}
	}
	return &Envelope{
		SequenceNumber: *w.SequenceNumber,
		MessageType:    typ,
		Payload:        p,
	}, nil
}

// DecodeError: входящий текст не является корректным конвертом.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "envelope: decode: " + e.Reason + ": " + e.Err.Error()
	}
	return "envelope: decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }
