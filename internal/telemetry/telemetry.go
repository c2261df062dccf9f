// Package telemetry publishes session lifecycle and drive status over MQTT.
// It carries metadata only, never frames or actuator commands.
package telemetry

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher reports what the rig is doing. Publish failures are logged and
// otherwise ignored; telemetry must never stall the control loop.
type Publisher interface {
	SessionStarted(id string)
	SessionStopped(id string, frames int)
	Status(source string, recording bool, frames int)
	Close()
}

type nopPublisher struct{}

func (nopPublisher) SessionStarted(string)      {}
func (nopPublisher) SessionStopped(string, int) {}
func (nopPublisher) Status(string, bool, int)   {}
func (nopPublisher) Close()                     {}

// Nop returns a publisher that discards everything. Used when no broker is
// configured.
func Nop() Publisher { return nopPublisher{} }

type sessionEvent struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	Frames    int    `json:"frames,omitempty"`
	Time      string `json:"time"`
}

type statusEvent struct {
	Source    string `json:"source"`
	Recording bool   `json:"recording"`
	Frames    int    `json:"frames"`
	Time      string `json:"time"`
}

type mqttPublisher struct {
	client       mqtt.Client
	sessionTopic string
	statusTopic  string
}

// Connect dials the MQTT broker and returns a live publisher.
func Connect(broker, clientID, sessionTopic, statusTopic string) (Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	log.Printf("telemetry: connected to MQTT broker at %s", broker)

	return &mqttPublisher{
		client:       client,
		sessionTopic: sessionTopic,
		statusTopic:  statusTopic,
	}, nil
}

func (p *mqttPublisher) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("telemetry: marshal error: %v", err)
		return
	}
	if token := p.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		log.Printf("telemetry: publish error (%s): %v", topic, token.Error())
	}
}

func (p *mqttPublisher) SessionStarted(id string) {
	p.publish(p.sessionTopic, sessionEvent{
		Event:     "start",
		SessionID: id,
		Time:      time.Now().Format(time.RFC3339),
	})
}

func (p *mqttPublisher) SessionStopped(id string, frames int) {
	p.publish(p.sessionTopic, sessionEvent{
		Event:     "stop",
		SessionID: id,
		Frames:    frames,
		Time:      time.Now().Format(time.RFC3339),
	})
}

func (p *mqttPublisher) Status(source string, recording bool, frames int) {
	p.publish(p.statusTopic, statusEvent{
		Source:    source,
		Recording: recording,
		Frames:    frames,
		Time:      time.Now().Format(time.RFC3339),
	})
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}
