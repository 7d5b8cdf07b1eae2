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
	"net"
	"time"

	"github.com/jt05610/lathe/control"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthService is the service name health checks ask about. The empty name
// reports the same status.
const healthService = "lathe.control"

type healthServer struct {
	srv    *grpc.Server
	health *health.Server
	lis    net.Listener
}

func newHealthServer(addr string) (*healthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	h := &healthServer{
		srv:    grpc.NewServer(),
		health: health.NewServer(),
		lis:    lis,
	}
	healthpb.RegisterHealthServer(h.srv, h.health)
	h.set(false)
	return h, nil
}

func (h *healthServer) set(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(healthService, status)
}

// serve reports the loop as serving while it runs, until ctx ends.
func (h *healthServer) serve(ctx context.Context, loop *control.Loop, logger *zap.Logger) error {
	errs := make(chan error, 1)
	go func() {
		errs <- h.srv.Serve(h.lis)
	}()
	logger.Info("Serving health checks", zap.String("addr", h.lis.Addr().String()))
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	h.set(loop.Running())
	for {
		select {
		case err := <-errs:
			return err
		case <-ctx.Done():
			h.health.Shutdown()
			h.srv.GracefulStop()
			return nil
		case <-ticker.C:
			h.set(loop.Running())
		}
	}
}
