package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSSink publishes events as JSON on <subject>.<kind>.
type NATSSink struct {
	conn    *nats.Conn
	subject string
	levels  bool
}

// ConnectNATS dials url. Level events are only forwarded when levels is true.
func ConnectNATS(url, subject string, levels bool, log *zap.SugaredLogger) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("whspr"),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnw("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infow("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	log.Infow("connected to NATS", "url", url, "subject", subject)
	return &NATSSink{conn: conn, subject: subject, levels: levels}, nil
}

func (n *NATSSink) Publish(ev Event) error {
	if ev.Kind == KindLevel && !n.levels {
		return nil
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.conn.Publish(n.subject+"."+string(ev.Kind), b)
}

// Close flushes pending messages and closes the connection.
func (n *NATSSink) Close() {
	if n == nil || n.conn == nil {
		return
	}
	_ = n.conn.Flush()
	n.conn.Close()
}
