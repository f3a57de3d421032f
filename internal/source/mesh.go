package source

import (
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rtklabs/gnssrelay/pkg/log"
)

// Mesh consumes the mesh topic as the positioning stream, for nodes that
// have no receiver of their own and relay a peer's output instead. There
// is no backchannel to the peer's receiver, so writes are discarded.
type Mesh struct {
	client mqtt.Client
	pr     *io.PipeReader
	pw     *io.PipeWriter
	log    log.Logger
}

// DialMesh connects to the broker and subscribes to the sentence topic.
func DialMesh(broker, clientID, topic string, logger log.Logger) (*Mesh, error) {
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

	pr, pw := io.Pipe()
	m := &Mesh{client: client, pr: pr, pw: pw, log: logger}

	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if _, err := pw.Write(msg.Payload()); err != nil {
			logger.Debug("mesh pipe closed", log.Err(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("mesh subscribe: %w", token.Error())
	}
	logger.Info("mesh source subscribed", log.Str("broker", broker), log.Str("topic", topic))
	return m, nil
}

func (m *Mesh) Read(p []byte) (int, error) { return m.pr.Read(p) }

// Write discards p: mesh receivers cannot reach the peer's receiver.
func (m *Mesh) Write(p []byte) (int, error) { return len(p), nil }

func (m *Mesh) Close() error {
	m.client.Disconnect(250)
	m.pw.Close()
	return m.pr.Close()
}
