package sinks

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rtklabs/gnssrelay/pkg/log"
)

// Mesh publishes sentences to the mesh broker so peer relays can pick them
// up. A node only transmits in the "sender" role; receivers consume the
// same topic as their positioning source instead (see internal/source).
type Mesh struct {
	name   string
	client mqtt.Client
	topic  string
	sender bool
	log    log.Logger
}

// DialMesh connects to the broker. The role decides whether this node ever
// transmits.
func DialMesh(broker, clientID, topic, role string, logger log.Logger) (*Mesh, error) {
	if logger == nil {
		logger = log.Nop()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mesh connect: %w", token.Error())
	}
	logger.Info("mesh broker connected", log.Str("broker", broker), log.Str("role", role))

	return &Mesh{
		name:   "mesh",
		client: client,
		topic:  topic,
		sender: role == "sender",
		log:    logger,
	}, nil
}

func (m *Mesh) Name() string { return m.name }

// Ready is true only for connected senders.
func (m *Mesh) Ready() bool { return m.sender && m.client.IsConnected() }

// Write publishes one sentence. Blocks until the broker acknowledges, which
// is acceptable: the router isolates this sink from the others.
func (m *Mesh) Write(p []byte) error {
	token := m.client.Publish(m.topic, 0, false, p)
	token.Wait()
	return token.Error()
}

// Close disconnects from the broker.
func (m *Mesh) Close() error {
	m.client.Disconnect(250)
	return nil
}
