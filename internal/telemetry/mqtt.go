package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher publishes under <topic>/hr and <topic>/events at QoS 0.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

type MQTTOptions struct {
	Broker   string
	Port     int
	Topic    string
	Username string
	Password string
}

func NewMQTT(o MQTTOptions) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", o.Broker, o.Port))
	opts.SetClientID(fmt.Sprintf("ecg-monitor-%d", time.Now().Unix()))

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect failed: %w", token.Error())
	}

	return &MQTTPublisher{client: client, topic: o.Topic}, nil
}

func (p *MQTTPublisher) PublishBPM(bpm int, ts time.Time) error {
	b, err := json.Marshal(bpmMessage{
		Subject: p.topic + "/hr",
		Ts:      ts.UnixMilli(),
		HR:      bpm,
	})
	if err != nil {
		return err
	}
	p.client.Publish(p.topic+"/hr", 0, false, b)
	return nil
}

func (p *MQTTPublisher) PublishEvents(names []string, ts time.Time) error {
	b, err := json.Marshal(eventMessage{
		Subject: p.topic + "/events",
		Ts:      ts.UnixMilli(),
		Events:  names,
	})
	if err != nil {
		return err
	}
	p.client.Publish(p.topic+"/events", 0, false, b)
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(1000)
}
