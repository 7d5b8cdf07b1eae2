/*
Copyright © 2024 Jonathan Taylor <jonrtaylor12@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jt05610/lathe/amqp"
	"github.com/jt05610/lathe/api"
	"github.com/jt05610/lathe/comm/serial"
	"github.com/jt05610/lathe/control"
	"github.com/jt05610/lathe/env"
	"github.com/jt05610/lathe/feed"
	"github.com/jt05610/lathe/hal"
	"github.com/jt05610/lathe/linuxcnc"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type closer func() error

// connectHAL opens the transport the environment asks for.
func connectHAL(ctx context.Context, environ *env.Environment) (hal.Client, closer, error) {
	switch environ.Transport {
	case env.TransportSerial:
		port, err := serial.OpenPort(environ.SerialPort, environ.Baud, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", environ.SerialPort, err)
		}
		s, err := hal.NewSerial(ctx, port, logger)
		if err != nil {
			return nil, nil, multierr.Append(err, port.Close())
		}
		return s, s.Close, nil
	default:
		return hal.NewHTTP(environ.HALURL, nil), func() error { return nil }, nil
	}
}

// connectExecutor opens the cycle executor the environment asks for.
func connectExecutor(environ *env.Environment) (control.Executor, closer, error) {
	switch environ.Executor {
	case env.ExecutorAMQP:
		conn, err := amqp.Dial(environ)
		if err != nil {
			return nil, nil, fmt.Errorf("dial broker: %w", err)
		}
		return amqp.NewExecutor(conn.Channel, environ.Exchange, environ.ExecutorID, logger), conn.Close, nil
	default:
		return linuxcnc.New(environ.LinuxCNCURL, nil, logger), func() error { return nil }, nil
	}
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the control loop with the operator API",
	Long: `Run the control loop against the configured HAL transport and serve the
operator API and gRPC health checks until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		environ, err := env.LoadEnv(logger)
		if err != nil {
			return err
		}
		if machineFile == "" {
			machineFile = environ.Config
		}
		m, sys, err := loadMachine()
		if err != nil {
			return err
		}
		presets, err := loadPresets(m)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		h, closeHAL, err := connectHAL(ctx, environ)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, closeHAL())
		}()
		ex, closeExecutor, err := connectExecutor(environ)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, closeExecutor())
		}()

		loop := control.New(control.Config{
			HAL:       h,
			Executor:  ex,
			Tools:     m.Tools,
			System:    sys,
			Period:    environ.PollPeriod,
			Ramp:      m.Jog,
			Pitch:     control.Pitch{X: m.Leadscrew.X, Z: m.Leadscrew.Z},
			Selection: feed.Selection{Mode: feed.Longitudinal, Direction: feed.Idle},
			Menu:      control.Manual,
			Logger:    logger.Named("control"),
		})
		if err := loop.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := loop.Stop(); err != nil && !errors.Is(err, control.ErrNotRunning) {
				logger.Warn("Stopping control loop", zap.Error(err))
			}
		}()

		hs, err := newHealthServer(environ.HealthAddr)
		if err != nil {
			return err
		}
		healthErr := make(chan error, 1)
		go func() {
			healthErr <- hs.serve(ctx, loop, logger.Named("health"))
		}()

		srv := api.New(api.Config{
			Loop:    loop,
			Tools:   m.Tools,
			Presets: presets,
			System:  sys,
			Logger:  logger.Named("api"),
		})
		logger.Info("Lathe ready",
			zap.String("transport", environ.Transport),
			zap.String("executor", environ.Executor),
			zap.Stringer("units", sys),
		)
		err = srv.ListenAndServe(ctx, environ.APIAddr)
		stop()
		return multierr.Append(err, <-healthErr)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
