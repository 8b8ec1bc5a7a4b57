package waveclient

import (
	"errors"
	"time"

	"github.com/EgorLis/wavesocket/internal/envelope"
	"github.com/EgorLis/wavesocket/internal/status"
)

// ========================= high-level API =========================

// Open подписывается на волну. Ответа как такового нет: данные придут
// обычными WaveletUpdate. Ошибка возможна, только если запрос нельзя сериализовать.
func (c *Client) Open(req *envelope.OpenRequest) error {
	if req == nil {
		return envelope.ErrNilPayload
	}
	// в очередь уходит копия: проверяем и отправляем ровно её
	msg := envelope.Clone(req)
	if _, err := envelope.MarshalPayload(msg); err != nil {
		return err
	}
	c.exec.do(func() {
		c.sendReporting(envelope.Wrap(c.nextSeq(), msg))
	})
	return nil
}

// Submit отправляет дельту; cb будет вызван, когда придёт ответ с тем же
// sequenceNumber. При отключении с отбрасыванием cb не вызывается никогда.
func (c *Client) Submit(req *envelope.SubmitRequest, cb SubmitCallback) error {
	if req == nil {
		return envelope.ErrNilPayload
	}
	msg := envelope.Clone(req)
	if _, err := envelope.MarshalPayload(msg); err != nil {
		return err
	}
	c.exec.do(func() {
		seq := c.nextSeq()
		if cb != nil {
			c.pending.Register(seq, cb)
			c.metrics.SetPendingCalls(c.pending.Len())
		}
		if err := c.sendReporting(envelope.Wrap(seq, msg)); err != nil && !isWriteError(err) {
			// конверт выброшен, ответа не будет
			c.pending.Resolve(seq)
			c.metrics.SetPendingCalls(c.pending.Len())
		}
	})
	return nil
}

// ========================= low-level =========================

func (c *Client) sendReporting(e *envelope.Envelope) error {
	err := c.send(e)
	if err != nil {
		c.publish(status.ProtocolError, err)
	}
	return err
}

// send: при CONNECTED пишем сразу, иначе кладём в очередь. Неудачная запись
// переводит в DISCONNECTED и возвращает конверт в голову очереди, чтобы
// порядок сохранился.
func (c *Client) send(e *envelope.Envelope) error {
	if c.State() != StateConnected {
		c.queue.Enqueue(e)
		c.metrics.Queued(string(e.MessageType))
		c.metrics.SetQueueDepth(c.queue.Len())
		return nil
	}
	err := c.transmit(e)
	if isWriteError(err) {
		c.setState(StateDisconnected)
		c.queue.PushFront(e)
		c.metrics.SetQueueDepth(c.queue.Len())
	}
	return err
}

func (c *Client) transmit(e *envelope.Envelope) error {
	start := time.Now()
	data, err := envelope.Marshal(e)
	c.metrics.ObserveEncode(time.Since(start))
	if err != nil {
		c.log.Error("cannot serialize envelope", "seq", e.SequenceNumber, "type", string(e.MessageType), "err", err)
		return err
	}

	text := string(data)
	c.log.Debug("sending JSON data", "text", text)
	if err := c.transport.SendMessage(text); err != nil {
		c.metrics.WriteError()
		return &TransportError{Code: "write", Err: err}
	}
	c.metrics.Sent(string(e.MessageType))
	return nil
}

func isWriteError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
