// Package serial turns a serial line into a pair of channels: one message per
// received line, and raw writes.
package serial

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

type Port struct {
	rw     io.ReadWriteCloser
	logger *zap.Logger
}

func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}

func OpenPort(port string, baud int, logger *zap.Logger) (*Port, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}

	err = p.SetReadTimeout(time.Duration(500) * time.Millisecond)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return NewPort(p, logger), nil
}

// NewPort wraps an already open line, such as one end of a pipe.
func NewPort(rw io.ReadWriteCloser, logger *zap.Logger) *Port {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Port{rw: rw, logger: logger}
}

func (p *Port) Close() error {
	return p.rw.Close()
}

// patientReader retries the zero-length reads a port returns on read timeout,
// which would otherwise stop a bufio.Scanner.
type patientReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *patientReader) Read(b []byte) (int, error) {
	for {
		n, err := r.r.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}
	}
}

// ChannelPort starts the reader and writer goroutines. The returned channel is
// closed when the line closes or ctx ends.
func (p *Port) ChannelPort(ctx context.Context, writeCh <-chan []byte) (<-chan io.Reader, error) {
	rxCh := make(chan io.Reader, 100)
	go func() {
		defer close(rxCh)
		scanner := bufio.NewScanner(&patientReader{ctx: ctx, r: p.rw})
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case <-ctx.Done():
				return
			case rxCh <- bytes.NewBuffer(line):
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			p.logger.Warn("serial read stopped", zap.Error(err))
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case data := <-writeCh:
				if _, err := p.rw.Write(data); err != nil {
					p.logger.Warn("serial write failed", zap.Error(err))
				}
			}
		}
	}()

	return rxCh, nil
}
