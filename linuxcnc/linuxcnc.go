// Package linuxcnc hands generated cycles to the LinuxCNC REST bridge, which
// turns each record into a canned-cycle program and runs it.
package linuxcnc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jt05610/lathe/cycle"
	"go.uber.org/zap"
)

const cyclePath = "/linuxcnc/"

type Client struct {
	base   string
	client *http.Client
	logger *zap.Logger
}

// New returns a client for the bridge at base, e.g. http://lathe:8001.
func New(base string, client *http.Client, logger *zap.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{base: strings.TrimSuffix(base, "/"), client: client, logger: logger}
}

// Execute PUTs the record's wire map to /linuxcnc/<kind>.
func (c *Client) Execute(ctx context.Context, p cycle.Params) error {
	body, err := json.Marshal(p.Fields())
	if err != nil {
		return err
	}
	url := c.base + cyclePath + p.Kind().String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("linuxcnc %s: %w", p.Kind(), err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("linuxcnc %s: %s", p.Kind(), resp.Status)
	}
	c.logger.Info("Sent cycle", zap.Stringer("kind", p.Kind()), zap.Int("passes", p.Passes()))
	return nil
}
