package waveclient

import (
	"fmt"
	"time"

	"github.com/EgorLis/wavesocket/internal/envelope"
	"github.com/EgorLis/wavesocket/internal/status"
)

// ========================= события транспорта =========================

func (c *Client) OnConnect() {
	c.exec.do(c.handleConnect)
}

func (c *Client) OnDisconnect() {
	c.exec.do(func() {
		c.setState(StateDisconnected)
		c.publish(status.Disconnected, nil)
	})
}

// OnError: транспорт сообщил об ошибке. Состояние не меняем: если канал
// умер, транспорт отдельно пришлёт OnDisconnect.
func (c *Client) OnError(code string) {
	c.exec.do(func() {
		c.publish(status.ProtocolError, &TransportError{Code: code})
	})
}

func (c *Client) OnMessage(text string) {
	c.exec.do(func() { c.handleMessage(text) })
}

func (c *Client) handleConnect() {
	c.setState(StateConnected)

	if err := c.handshake(); err != nil {
		c.setState(StateDisconnected)
		herr := &HandshakeError{Err: err}
		// о провале явного старта сообщаем только в колбэк, иначе событием
		if cb := c.takeStart(); cb != nil {
			c.log.Warn("connect failed", "err", herr)
			c.resolveStart(cb, herr)
		} else {
			c.publish(status.ProtocolError, herr)
		}
		return
	}

	if cb := c.takeStart(); cb != nil {
		c.resolveStart(cb, nil)
	}
	c.publish(status.Connected, nil)
}

// handshake: при первом подключении шлём токен, затем сбрасываем очередь.
func (c *Client) handshake() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if !c.connectedOnce && c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			auth := envelope.Wrap(c.nextSeq(), &envelope.Authenticate{Token: token})
			if err := c.transmit(auth); err != nil {
				c.setState(StateDisconnected)
				return fmt.Errorf("authenticate: %w", err)
			}
		}
	}
	c.connectedOnce = true

	if c.queue.Len() == 0 {
		return nil
	}
	flushed := 0
	for e := range c.queue.Drain() {
		if err := c.send(e); err != nil {
			c.metrics.SetQueueDepth(c.queue.Len())
			return fmt.Errorf("flush: %w", err)
		}
		flushed++
		if c.State() != StateConnected {
			break
		}
	}
	c.metrics.SetQueueDepth(c.queue.Len())
	c.log.Debug("flushed queued messages", "count", flushed, "left", c.queue.Len())
	return nil
}

func (c *Client) handleMessage(text string) {
	defer func() {
		if r := recover(); r != nil {
			c.publish(status.ProtocolError, fmt.Errorf("waveclient: processing message: panic: %v", r))
		}
	}()

	c.log.Debug("received JSON message", "text", text)
	start := time.Now()
	env, err := envelope.Unmarshal([]byte(text))
	c.metrics.ObserveDecode(time.Since(start))
	if err != nil {
		c.metrics.DecodeError()
		c.log.Warn("invalid JSON message", "text", text, "err", err)
		return
	}
	c.metrics.Received(typeLabel(env.MessageType))

	switch p := env.Payload.(type) {
	case *envelope.WaveletUpdate:
		h := c.updateHandler()
		if h == nil {
			return
		}
		if err := safeCall(func() error { return h.OnWaveletUpdate(p) }); err != nil {
			c.publish(status.ProtocolError, &UpdateHandlerError{Err: err})
		}

	case *envelope.SubmitResponse:
		cb, ok := c.pending.Resolve(env.SequenceNumber)
		c.metrics.SetPendingCalls(c.pending.Len())
		if !ok {
			c.log.Debug("submit response without pending call", "seq", env.SequenceNumber)
			return
		}
		if err := safeCall(func() error { return cb(p) }); err != nil {
			// в отличие от WaveletUpdate, сбой колбэка ответа ломает соединение
			c.setState(StateDisconnected)
			c.publish(status.ProtocolError, &ResponseHandlerError{Seq: env.SequenceNumber, Err: err})
			c.publish(status.Disconnected, nil)
		}

	default:
		c.log.Debug("ignoring message", "type", string(env.MessageType), "seq", env.SequenceNumber)
	}
}

// typeLabel: тег приходит с сервера, поэтому чужие типы сводим к одной
// метке, иначе число рядов в Prometheus ничем не ограничено.
func typeLabel(t envelope.MessageType) string {
	if !t.Known() {
		return "unknown"
	}
	return string(t)
}
