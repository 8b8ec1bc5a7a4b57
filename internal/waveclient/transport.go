package waveclient

// Transport: двунаправленный текстовый канал. Connect и Disconnect
// асинхронные: результат приходит позже через Events. Connect при уже
// открытом соединении должен снова сообщить OnConnect: клиент мог сам
// посчитать соединение сломанным и ждёт нового рукопожатия.
type Transport interface {
	Connect()
	Disconnect()
	SendMessage(text string) error
}

// Events: приёмник событий транспорта; его реализует *Client.
type Events interface {
	OnConnect()
	OnDisconnect()
	OnMessage(text string)
	OnError(code string)
}

// TransportConfig: то, что клиент передаёт транспорту при создании.
type TransportConfig struct {
	BaseURL       string
	ClientVersion string
}

// TransportFactory создаёт транспорт, который будет сообщать о событиях в ev.
type TransportFactory func(cfg TransportConfig, ev Events) Transport

// TokenSource отдаёт текущий токен сессии. Нужен только при первом
// подключении; без токена аутентификация просто пропускается.
type TokenSource interface {
	Token() (string, bool)
}
