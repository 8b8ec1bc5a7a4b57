// Package waveclient реализует клиентскую часть протокола wave-сокета поверх
// ненадёжного двунаправленного соединения. Клиент:
//   - присваивает исходящим запросам возрастающие sequenceNumber;
//   - копит сообщения, пока соединения нет, и отправляет их по порядку
//     сразу после подключения;
//   - сопоставляет SubmitRequest и SubmitResponse через реконнекты;
//   - отделяет серверные WaveletUpdate от ответов на конкретные запросы.
//
// Сам сокет является внешним Transport (см. пакет wsock), о событиях соединения
// транспорт сообщает через Events, которые реализует *Client.
//
// Жизненный цикл: (CONNECTING → CONNECTED → DISCONNECTED)* ; ошибки протокола
// публикуются событием PROTOCOL_ERROR, само ядро после них не переподключается:
// решение за приложением (снова вызвать Connect).
//
// Все входы (Connect, Disconnect, Open, Submit и события транспорта) идут через
// последовательный исполнитель экземпляра: вызовы из разных горутин и
// повторные вызовы из обработчиков ставятся в очередь и выполняются по одному,
// ни один вызов не блокируется на вводе-выводе.
//
// Пример:
//
//	c, err := waveclient.New(waveclient.Options{
//	    BaseURL:       "https://wave.example.com/",
//	    ClientVersion: "1.0",
//	    Tokens:        session.Static("T123"),
//	    Transport:     wsock.Factory(wsock.DefaultConfig()),
//	})
//	if err != nil { log.Fatal(err) }
//	_ = c.AttachHandler(waveclient.UpdateHandlerFunc(func(u *envelope.WaveletUpdate) error {
//	    fmt.Println(envelope.Fields(u))
//	    return nil
//	}))
//	c.ConnectWithCallback(func(err error) { ... })
//
//	req, _ := envelope.NewSubmitRequest(map[string]any{"waveletName": name})
//	_ = c.Submit(req, func(r *envelope.SubmitResponse) error { return nil })
package waveclient
