// Package session содержит источники токена сессии для waveclient.TokenSource.
//
// Токен нужен клиенту ровно один раз (при первом подключении) и запрашивается
// синхронно, поэтому все источники отдают уже имеющееся значение и никогда не
// ходят в сеть внутри Token(). HTTP-источник обновляет токен в фоне.
package session

import (
	"os"
	"strings"
)

// Static: токен, известный заранее. Пустая строка означает «токена нет».
type Static string

func (s Static) Token() (string, bool) {
	t := strings.TrimSpace(string(s))
	return t, t != ""
}

// Env читает токен из переменной окружения при каждом вызове.
type Env string

func (e Env) Token() (string, bool) {
	t := strings.TrimSpace(os.Getenv(string(e)))
	return t, t != ""
}

// First отдаёт токен первого источника, у которого он есть.
type First []interface{ Token() (string, bool) }

func (f First) Token() (string, bool) {
	for _, src := range f {
		if src == nil {
			continue
		}
		if t, ok := src.Token(); ok {
			return t, true
		}
	}
	return "", false
}
