package hal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/comm/serial"
	"go.uber.org/zap"
)

// Line protocol spoken by the serial bridge. Requests are one line each;
// the bridge answers a poll with the hal_in document on its own line and
// may acknowledge writes with "ok".
var (
	pollMsg   = []byte("GET hal_in\n")
	outPrefix = []byte("PUT hal_out ")
	ackMsg    = []byte("ok")
)

// Serial reaches a bridge on a serial line. The bridge does not tag its
// replies, so one poll is outstanding at a time.
type Serial struct {
	port    *serial.Port
	logger  *zap.Logger
	rxChan  <-chan io.Reader
	TxChan  chan []byte
	polling chan struct{}
	updates chan *In
	done    chan struct{}
}

var _ Client = (*Serial)(nil)

// NewSerial starts listening on port until ctx ends.
func NewSerial(ctx context.Context, port *serial.Port, logger *zap.Logger) (*Serial, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	txCh := make(chan []byte, 100)
	rxCh, err := port.ChannelPort(ctx, txCh)
	if err != nil {
		return nil, err
	}
	s := &Serial{
		port:    port,
		logger:  logger,
		rxChan:  rxCh,
		TxChan:  txCh,
		polling: make(chan struct{}, 1),
		updates: make(chan *In, 1),
		done:    make(chan struct{}),
	}
	go s.Listen(ctx)
	return s, nil
}

func (s *Serial) update(in *In) {
	select {
	case s.updates <- in:
	default:
		// replace the unread one
		select {
		case <-s.updates:
		default:
		}
		s.updates <- in
	}
}

// Listen parses bridge lines until the line closes or ctx ends.
func (s *Serial) Listen(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.rxChan:
			if !ok {
				return
			}
			bb, err := io.ReadAll(msg)
			if err != nil {
				s.logger.Error("Failed to read message", zap.Error(err))
				continue
			}
			bb = bytes.TrimSpace(bb)
			if len(bb) == 0 || bytes.Equal(bb, ackMsg) {
				continue
			}
			in := new(In)
			if err := json.Unmarshal(bb, in); err != nil {
				s.logger.Debug("Failed to parse message", zap.String("msg", string(bb)), zap.Error(err))
				continue
			}
			s.update(in)
		}
	}
}

func (s *Serial) send(ctx context.Context, b []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	case s.TxChan <- b:
		return nil
	}
}

// Poll asks for a fresh document and waits for it. A document that arrived
// before the request is discarded. Concurrent polls wait their turn.
func (s *Serial) Poll(ctx context.Context) (axis.Sample, error) {
	select {
	case <-ctx.Done():
		return axis.Sample{}, ctx.Err()
	case <-s.done:
		return axis.Sample{}, ErrClosed
	case s.polling <- struct{}{}:
	}
	defer func() { <-s.polling }()
	select {
	case <-s.updates:
	default:
	}
	if err := s.send(ctx, pollMsg); err != nil {
		return axis.Sample{}, err
	}
	select {
	case <-ctx.Done():
		return axis.Sample{}, ctx.Err()
	case <-s.done:
		return axis.Sample{}, ErrClosed
	case in := <-s.updates:
		return in.Sample(), nil
	}
}

func (s *Serial) Send(ctx context.Context, out *Out) error {
	body, err := json.Marshal(out)
	if err != nil {
		return err
	}
	msg := make([]byte, 0, len(outPrefix)+len(body)+1)
	msg = append(msg, outPrefix...)
	msg = append(msg, body...)
	msg = append(msg, '\n')
	return s.send(ctx, msg)
}

func (s *Serial) Close() error {
	return s.port.Close()
}
