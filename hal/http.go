package hal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jt05610/lathe/axis"
)

const (
	inPath  = "/hal/hal_in"
	outPath = "/hal/hal_out"
)

// HTTP reaches the hardware service's REST interface.
type HTTP struct {
	base   string
	client *http.Client
}

var _ Client = (*HTTP)(nil)

// NewHTTP returns a client for the service at base, e.g. http://lathe:8000. A
// nil client gets one with a timeout shorter than a few poll periods.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 250 * time.Millisecond}
	}
	return &HTTP{base: strings.TrimSuffix(base, "/"), client: client}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

func (h *HTTP) Poll(ctx context.Context) (axis.Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+inPath, nil)
	if err != nil {
		return axis.Sample{}, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return axis.Sample{}, err
	}
	defer drain(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return axis.Sample{}, fmt.Errorf("hal_in: %s", resp.Status)
	}
	var in In
	if err := json.NewDecoder(resp.Body).Decode(&in); err != nil {
		return axis.Sample{}, fmt.Errorf("hal_in: %w", err)
	}
	return in.Sample(), nil
}

func (h *HTTP) Send(ctx context.Context, out *Out) error {
	body, err := json.Marshal(out)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.base+outPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("hal_out: %s", resp.Status)
	}
	return nil
}
