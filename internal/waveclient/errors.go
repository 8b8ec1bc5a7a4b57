package waveclient

import (
	"errors"
	"fmt"
)

var (
	ErrNilTransport      = errors.New("waveclient: transport factory is nil")
	ErrNilHandler        = errors.New("waveclient: nil update handler")
	ErrHandlerAttached   = errors.New("waveclient: update handler already attached")
	ErrConnectSuperseded = errors.New("waveclient: start callback replaced by a newer connect")
)

// HandshakeError: сбой аутентификации или сброса очереди сразу после подключения.
type HandshakeError struct {
	Err error
}

func (e *HandshakeError) Error() string { return "waveclient: handshake failed: " + e.Err.Error() }
func (e *HandshakeError) Unwrap() error { return e.Err }

// UpdateHandlerError: обработчик WaveletUpdate вернул ошибку или запаниковал.
type UpdateHandlerError struct {
	Err error
}

func (e *UpdateHandlerError) Error() string { return "waveclient: update handler: " + e.Err.Error() }
func (e *UpdateHandlerError) Unwrap() error { return e.Err }

// ResponseHandlerError: колбэк SubmitResponse вернул ошибку или запаниковал.
type ResponseHandlerError struct {
	Seq int64
	Err error
}

func (e *ResponseHandlerError) Error() string {
	return fmt.Sprintf("waveclient: submit response handler (seq %d): %s", e.Seq, e.Err)
}
func (e *ResponseHandlerError) Unwrap() error { return e.Err }

// TransportError описывает ошибку транспорта: либо непрозрачный код из OnError,
// либо неудачная запись.
type TransportError struct {
	Code string
	Err  error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.Code != "":
		return "waveclient: transport " + e.Code + ": " + e.Err.Error()
	case e.Err != nil:
		return "waveclient: transport: " + e.Err.Error()
	default:
		return "waveclient: transport error " + e.Code
	}
}
func (e *TransportError) Unwrap() error { return e.Err }

// safeCall превращает панику обработчика приложения в ошибку, чтобы она не
// ушла в горутину транспорта.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
