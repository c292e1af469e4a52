package assurance

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/mobilecore/internal/config"
	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
)

// Publisher delivers encoded events to a sink.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close()
}

// ConnectFunc opens a Publisher.
type ConnectFunc func(ctx context.Context) (Publisher, error)

const streamMaxAge = 24 * time.Hour

// NATSPublisher publishes events to a JetStream stream.
type NATSPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream string
}

// StreamName derives the JetStream stream name from a subject prefix.
func StreamName(prefix string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(prefix))
}

// DialNATS connects to url and ensures a stream captures prefix.>.
func DialNATS(ctx context.Context, url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("mobilecore-assurance"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryAssurance, "failed to connect to NATS").
			WithContext("url", url).
			Retryable().
			Build()
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.WrapError(err, errors.CategoryAssurance, "failed to create JetStream context").Build()
	}
	name := StreamName(prefix)
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        name,
		Description: "mobilecore event stream",
		Subjects:    []string{prefix + ".>"},
		MaxAge:      streamMaxAge,
	})
	if err != nil {
		conn.Close()
		return nil, errors.WrapError(err, errors.CategoryAssurance, "failed to create stream").
			WithContext("stream", name).
			Build()
	}
	slog.Info("NATS assurance publisher connected", logfields.URL(url), slog.String("stream", name))
	return &NATSPublisher{conn: conn, js: js, stream: name}, nil
}

// NATSConnector returns a ConnectFunc dialing the configured server.
func NATSConnector(cfg config.AssuranceConfig) ConnectFunc {
	return func(ctx context.Context) (Publisher, error) {
		p, err := DialNATS(ctx, cfg.NATSURL, cfg.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return errors.WrapError(err, errors.CategoryAssurance, "failed to publish event").
			WithContext("subject", subject).
			Retryable().
			Build()
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
