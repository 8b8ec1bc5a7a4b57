// Package wsock реализует транспорт для waveclient поверх gorilla/websocket.
// Сокет подключается к <base>/socket (http→ws, https→wss), передаёт версию
// клиента заголовком и держит соединение живым:
//   - запись сериализована (мьютекс + write-deadline);
//   - keep-alive через ping/pong, соединение без входящих кадров дольше
//     PongWait считается мёртвым;
//   - после обрыва идёт реконнект с экспоненциальной задержкой, частота попыток
//     ограничена rate.Limiter;
//   - отказ сервера на рукопожатии (HTTP 4xx/5xx) уходит в Events.OnError,
//     обычные сетевые ошибки только логируются.
//
// Пример:
//
//	c, _ := waveclient.New(waveclient.Options{
//	    BaseURL:   "https://wave.example.com/",
//	    Transport: wsock.Factory(wsock.DefaultConfig()),
//	})
//	c.Connect()
package wsock
