package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	TransportHTTP   = "http"
	TransportSerial = "serial"
	ExecutorHTTP    = "http"
	ExecutorAMQP    = "amqp"

	DefaultPollPeriod = 33333333 * time.Nanosecond
)

var ErrInvalid = errors.New("invalid environment")

type Environment struct {
	HALURL      string
	LinuxCNCURL string
	Transport   string
	SerialPort  string
	Baud        int
	Executor    string
	ExecutorID  string
	URI         string
	Exchange    string
	PollPeriod  time.Duration
	APIAddr     string
	HealthAddr  string
	Config      string
}

func lookup(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// LoadEnv reads .env when there is one, then the process environment. Every
// problem found is reported in the returned error.
func LoadEnv(logger *zap.Logger) (*Environment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
		logger.Debug("No .env file")
	}

	environ := &Environment{
		HALURL:      lookup("LATHE_HAL_URL", "http://localhost:8000"),
		LinuxCNCURL: lookup("LATHE_LINUXCNC_URL", "http://localhost:8001"),
		Transport:   lookup("LATHE_TRANSPORT", TransportHTTP),
		SerialPort:  lookup("LATHE_SERIAL_PORT", ""),
		Baud:        115200,
		Executor:    lookup("LATHE_EXECUTOR", ExecutorHTTP),
		ExecutorID:  lookup("LATHE_EXECUTOR_ID", "linuxcnc"),
		URI:         lookup("RABBITMQ_URI", ""),
		Exchange:    lookup("AMQP_EXCHANGE", ""),
		PollPeriod:  DefaultPollPeriod,
		APIAddr:     lookup("LATHE_API_ADDR", "127.0.0.1:8080"),
		HealthAddr:  lookup("LATHE_HEALTH_ADDR", "127.0.0.1:50051"),
		Config:      lookup("LATHE_CONFIG", ""),
	}

	var err error
	if baud, ok := os.LookupEnv("LATHE_SERIAL_BAUD"); ok {
		b, perr := strconv.Atoi(baud)
		if perr != nil || b <= 0 {
			err = multierr.Append(err, fmt.Errorf("%w: LATHE_SERIAL_BAUD %q", ErrInvalid, baud))
		}
		environ.Baud = b
	}
	if period, ok := os.LookupEnv("LATHE_POLL_PERIOD"); ok {
		d, perr := time.ParseDuration(period)
		if perr != nil || d <= 0 {
			err = multierr.Append(err, fmt.Errorf("%w: LATHE_POLL_PERIOD %q", ErrInvalid, period))
		}
		environ.PollPeriod = d
	}
	return environ, multierr.Append(err, environ.Validate())
}

func (e *Environment) Validate() error {
	var err error
	switch e.Transport {
	case TransportHTTP:
	case TransportSerial:
		if e.SerialPort == "" {
			err = multierr.Append(err, fmt.Errorf("%w: LATHE_SERIAL_PORT not set", ErrInvalid))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("%w: LATHE_TRANSPORT %q", ErrInvalid, e.Transport))
	}
	switch e.Executor {
	case ExecutorHTTP:
	case ExecutorAMQP:
		if e.URI == "" {
			err = multierr.Append(err, fmt.Errorf("%w: RABBITMQ_URI not set", ErrInvalid))
		}
		if e.Exchange == "" {
			err = multierr.Append(err, fmt.Errorf("%w: AMQP_EXCHANGE not set", ErrInvalid))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("%w: LATHE_EXECUTOR %q", ErrInvalid, e.Executor))
	}
	return err
}
