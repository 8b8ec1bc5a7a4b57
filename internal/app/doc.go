// Package app собирает клиента целиком по config.Config: транспорт wsock,
// источник токена, метрики с /metrics и переподписку на волны после
// реконнекта.
package app
