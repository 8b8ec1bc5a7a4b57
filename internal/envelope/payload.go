package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Payload: один из вариантов тела сообщения.
type Payload interface {
	Type() MessageType
}

// Authenticate: первое сообщение после подключения, несёт токен сессии.
type Authenticate struct {
	Token string `json:"token"`
}

func (*Authenticate) Type() MessageType { return TypeAuthenticate }

// OpenRequest открывает подписку на волну. Ответы приходят как WaveletUpdate.
type OpenRequest struct {
	Body *structpb.Struct
}

func (*OpenRequest) Type() MessageType { return TypeOpenRequest }

// SubmitRequest: дельта для отправки на сервер, ждёт SubmitResponse.
type SubmitRequest struct {
	Body *structpb.Struct
}

func (*SubmitRequest) Type() MessageType { return TypeSubmitRequest }

// SubmitResponse: ответ на SubmitRequest с тем же sequenceNumber.
type SubmitResponse struct {
	Body *structpb.Struct
}

func (*SubmitResponse) Type() MessageType { return TypeSubmitResponse }

// WaveletUpdate: обновление, которое сервер присылает сам.
type WaveletUpdate struct {
	Body *structpb.Struct
}

func (*WaveletUpdate) Type() MessageType { return TypeWaveletUpdate }

// Unknown: сообщение с типом вне протокола; тело сохраняется как есть.
type Unknown struct {
	Tag MessageType
	Raw json.RawMessage
}

func (u *Unknown) Type() MessageType { return u.Tag }

func NewOpenRequest(fields map[string]any) (*OpenRequest, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return &OpenRequest{Body: s}, nil
}

func NewSubmitRequest(fields map[string]any) (*SubmitRequest, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return &SubmitRequest{Body: s}, nil
}

func NewSubmitResponse(fields map[string]any) (*SubmitResponse, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return &SubmitResponse{Body: s}, nil
}

func NewWaveletUpdate(fields map[string]any) (*WaveletUpdate, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return &WaveletUpdate{Body: s}, nil
}

// Fields возвращает тело как обычную map; nil-тело даёт пустую map.
func Fields(p Payload) map[string]any {
	var s *structpb.Struct
	switch v := p.(type) {
	case *OpenRequest:
		s = v.Body
	case *SubmitRequest:
		s = v.Body
	case *SubmitResponse:
		s = v.Body
	case *WaveletUpdate:
		s = v.Body
	case *Authenticate:
		return map[string]any{"token": v.Token}
	}
	if s == nil {
		return map[string]any{}
	}
	return s.AsMap()
}

// Clone возвращает глубокую копию тела, чтобы клиент не зависел от того,
// что вызывающий сделает со своим Struct после отправки.
func Clone(p Payload) Payload {
	switch v := p.(type) {
	case *OpenRequest:
		return &OpenRequest{Body: cloneStruct(v.Body)}
	case *SubmitRequest:
		return &SubmitRequest{Body: cloneStruct(v.Body)}
	case *SubmitResponse:
		return &SubmitResponse{Body: cloneStruct(v.Body)}
	case *WaveletUpdate:
		return &WaveletUpdate{Body: cloneStruct(v.Body)}
	case *Authenticate:
		c := *v
		return &c
	case *Unknown:
		return &Unknown{Tag: v.Tag, Raw: append(json.RawMessage(nil), v.Raw...)}
	}
	return p
}

func cloneStruct(s *structpb.Struct) *structpb.Struct {
	if s == nil {
		return nil
	}
	return proto.Clone(s).(*structpb.Struct)
}

// marshalJSON: json.Marshal без HTML-экранирования и без перевода строки.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ========================= codecs =========================

type codec struct {
	encode func(Payload) ([]byte, error)
	decode func(json.RawMessage) (Payload, error)
}

var codecs = map[MessageType]codec{
	TypeAuthenticate: {
		encode: func(p Payload) ([]byte, error) {
			a, ok := p.(*Authenticate)
			if !ok {
				return nil, fmt.Errorf("unexpected payload %T", p)
			}
			return marshalJSON(a)
		},
		decode: func(raw json.RawMessage) (Payload, error) {
			var a Authenticate
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, err
			}
			return &a, nil
		},
	},
	TypeOpenRequest: structCodec(
		func(p Payload) (*structpb.Struct, bool) {
			v, ok := p.(*OpenRequest)
			if !ok || v == nil {
				return nil, ok
			}
			return v.Body, true
		},
		func(s *structpb.Struct) Payload { return &OpenRequest{Body: s} },
	),
	TypeSubmitRequest: structCodec(
		func(p Payload) (*structpb.Struct, bool) {
			v, ok := p.(*SubmitRequest)
			if !ok || v == nil {
				return nil, ok
			}
			return v.Body, true
		},
		func(s *structpb.Struct) Payload { return &SubmitRequest{Body: s} },
	),
	TypeSubmitResponse: structCodec(
		func(p Payload) (*structpb.Struct, bool) {
			v, ok := p.(*SubmitResponse)
			if !ok || v == nil {
				return nil, ok
			}
			return v.Body, true
		},
		func(s *structpb.Struct) Payload { return &SubmitResponse{Body: s} },
	),
	TypeWaveletUpdate: structCodec(
		func(p Payload) (*structpb.Struct, bool) {
			v, ok := p.(*WaveletUpdate)
			if !ok || v == nil {
				return nil, ok
			}
			return v.Body, true
		},
		func(s *structpb.Struct) Payload { return &WaveletUpdate{Body: s} },
	),
}

func structCodec(get func(Payload) (*structpb.Struct, bool), wrap func(*structpb.Struct) Payload) codec {
	return codec{
		encode: func(p Payload) ([]byte, error) {
			s, ok := get(p)
			if !ok {
				return nil, fmt.Errorf("unexpected payload %T", p)
			}
			if s == nil {
				return []byte("{}"), nil
			}
			// protojson специально добавляет случайные пробелы; кодирование
			// конверта потом всё равно уплотнит RawMessage
			return protojson.Marshal(s)
		},
		decode: func(raw json.RawMessage) (Payload, error) {
			s := &structpb.Struct{}
			if err := protojson.Unmarshal(raw, s); err != nil {
				return nil, err
			}
			return wrap(s), nil
		},
	}
}
