// Package amqp publishes generated cycles to a motion executor listening on a
// topic exchange. Each cycle is one persistent message routed to
// <executor>.commands.<kind>; the body is the record's wire map as JSON.
package amqp

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jt05610/lathe/cycle"
	"github.com/jt05610/lathe/env"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var ErrInvalidRoutingKey = errors.New("invalid routing key")

// Command is one cycle dispatch.
type Command struct {
	To     string
	Name   string
	ID     string
	Passes int
	Fields map[string]interface{}
}

func NewCommand(to string, p cycle.Params) *Command {
	return &Command{
		To:     to,
		Name:   p.Kind().String(),
		ID:     uuid.NewString(),
		Passes: p.Passes(),
		Fields: p.Fields(),
	}
}

func (c *Command) snakeCaseName() string {
	return strings.Replace(strings.ToLower(c.Name), " ", "_", -1)
}

func (c *Command) RoutingKey() string {
	return c.To + ".commands." + c.snakeCaseName()
}

type CommandService struct{}

func (a *CommandService) Flush(_ context.Context, cmd *Command) (amqp.Publishing, error) {
	body, err := structpb.NewStruct(cmd.Fields)
	if err != nil {
		return amqp.Publishing{}, err
	}
	bytes, err := protojson.Marshal(body)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		Body:         bytes,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    cmd.ID,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			"x-event-name": cmd.Name,
			"x-event-id":   cmd.ID,
			"x-passes":     strconv.Itoa(cmd.Passes),
		},
	}, nil
}

// Load decodes a delivery published by Flush. Numbers come back as float64.
func (a *CommandService) Load(_ context.Context, data amqp.Delivery) (*Command, error) {
	sk := strings.Split(data.RoutingKey, ".")
	if len(sk) != 3 || sk[1] != "commands" {
		return nil, ErrInvalidRoutingKey
	}
	res := &Command{To: sk[0], Name: sk[2]}
	if data.Headers != nil {
		if id, ok := data.Headers["x-event-id"].(string); ok {
			res.ID = id
		}
		if n, ok := data.Headers["x-passes"].(string); ok {
			res.Passes, _ = strconv.Atoi(n)
		}
	}
	if len(data.Body) == 0 {
		return res, nil
	}
	var body structpb.Struct
	if err := protojson.Unmarshal(data.Body, &body); err != nil {
		return nil, err
	}
	res.Fields = body.AsMap()
	return res, nil
}

// Publisher is the part of *amqp.Channel the executor needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Executor sends cycles to the executor named to on exchange.
type Executor struct {
	pub      Publisher
	exchange string
	to       string
	timeout  time.Duration
	cmd      CommandService
	logger   *zap.Logger
}

func NewExecutor(pub Publisher, exchange, to string, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		pub:      pub,
		exchange: exchange,
		to:       to,
		timeout:  time.Duration(1) * time.Second,
		logger:   logger,
	}
}

func (e *Executor) Execute(ctx context.Context, p cycle.Params) error {
	cmd := NewCommand(e.to, p)
	msg, err := e.cmd.Flush(ctx, cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	e.logger.Info("Sending cycle",
		zap.String("routing_key", cmd.RoutingKey()),
		zap.String("id", cmd.ID),
		zap.Int("passes", cmd.Passes),
	)
	return e.pub.PublishWithContext(
		ctx,
		e.exchange,       // exchange
		cmd.RoutingKey(), // routing key
		false,            // mandatory
		false,            // immediate
		msg,
	)
}

type Connection struct {
	*amqp.Connection
	*amqp.Channel
}

func (c *Connection) Close() error {
	var err error
	if c.Channel != nil {
		err = c.Channel.Close()
	}
	return multierr.Append(err, c.Connection.Close())
}

// Dial connects to the broker and declares the topic exchange.
func Dial(environ *env.Environment) (*Connection, error) {
	conn, err := amqp.Dial(environ.URI)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, multierr.Append(err, conn.Close())
	}
	c := &Connection{conn, ch}
	err = ch.ExchangeDeclare(
		environ.Exchange, // name
		"topic",          // type
		false,            // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		return nil, multierr.Append(err, c.Close())
	}
	return c, nil
}
