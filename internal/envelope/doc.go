// Package envelope реализует конверт протокола wave-сокета: каждое сообщение
// на проводе это JSON-объект из трёх полей
//
//	{"sequenceNumber":7,"messageType":"ProtocolSubmitRequest","message":{...}}
//
// где message: вложенный объект, схема которого определяется только
// messageType. Поэтому конверт нельзя описать одним protobuf: внутри лежит
// произвольное сообщение. Тело хранится как structpb.Struct и кодируется
// через protojson, сам конверт через encoding/json.
//
// Полезная нагрузка: закрытый набор вариантов (Authenticate, OpenRequest,
// SubmitRequest, SubmitResponse, WaveletUpdate) плюс Unknown для типов,
// которых мы не знаем: такие сообщения декодируются без ошибки.
//
// Пример:
//
//	req, _ := envelope.NewSubmitRequest(map[string]any{"waveletName": "w+1/conv+root"})
//	data, err := envelope.Marshal(envelope.Wrap(3, req))
//
//	env, err := envelope.Unmarshal(data)
//	if resp, ok := env.Payload.(*envelope.SubmitResponse); ok { ... }
package envelope
