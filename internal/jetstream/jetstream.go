// Package jetstream runs an embedded NATS JetStream instance used to fan
// emitted SSE frames out to the analytics consumer without blocking the
// serving path.
package jetstream

import (
	"fmt"
	"strings"
	"time"

	server "github.com/nats-io/nats-server/v2/server"
	nats "github.com/nats-io/nats.go"
)

const (
	StreamName    = "BRIDGE"
	SubjectPrefix = "bridge.req."
)

type Server struct{ ns *server.Server }

func NewServer(storeDir string) (*Server, error) {
	ns, err := server.NewServer(&server.Options{
		DontListen: true,
		JetStream:  true,
		StoreDir:   storeDir,
	})
	if err != nil {
		return nil, err
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("NATS server not ready")
	}
	return &Server{ns: ns}, nil
}

func (s *Server) Connect() (*nats.Conn, error) {
	return nats.Connect(s.ns.ClientURL(), nats.InProcessServer(s.ns))
}

func (s *Server) Shutdown() {
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}

func EnsureStream(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"bridge.>"},
		Storage:   nats.FileStorage,
		MaxAge:    24 * time.Hour,
		Retention: nats.WorkQueuePolicy,
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}

// FrameSubject carries one SSE frame of one request's stream.
func FrameSubject(requestID string) string {
	return SubjectPrefix + requestID
}

// DoneSubject marks the end of one request's stream.
func DoneSubject(requestID string) string {
	return SubjectPrefix + requestID + ".done"
}

// RequestID recovers the request id from either subject form. Second return
// reports whether the subject is a done marker.
func RequestID(subject string) (string, bool) {
	rest := strings.TrimPrefix(subject, SubjectPrefix)
	if id, ok := strings.CutSuffix(rest, ".done"); ok {
		return id, true
	}
	return rest, false
}

// Publisher adapts a JetStream context to the serving path's frame fan-out.
type Publisher struct {
	js nats.JetStreamContext
}

func NewPublisher(js nats.JetStreamContext) *Publisher {
	return &Publisher{js: js}
}

func (p *Publisher) PublishFrame(requestID string, frame []byte) {
	p.js.Publish(FrameSubject(requestID), frame)
}

func (p *Publisher) PublishDone(requestID string) {
	p.js.Publish(DoneSubject(requestID), nil)
}
