// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

// Package events publishes apartment state changes to an MQTT broker for the
// dashboard and building-automation collaborators.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/lumenarc/maquette/internal/config"
	"github.com/lumenarc/maquette/internal/inventory"
)

const publishTimeout = 2 * time.Second

// Publisher emits state-change events. It is optional: a nil *Publisher is
// safe to call and does nothing.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
	log    *zap.Logger
}

// stateChange is the published JSON payload.
type stateChange struct {
	Apartment string `json:"apartment"`
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
}

// Connect builds and connects the MQTT client.
func Connect(cfg *config.MQTTConfig, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout to %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "maquette/state"
	}
	return &Publisher{client: client, topic: topic, qos: cfg.QoS, log: log}, nil
}

// StateChanged publishes one apartment state change. Broker problems are
// logged, not returned; lighting must not depend on the event bus.
func (p *Publisher) StateChanged(apartmentID string, st inventory.State) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(stateChange{
		Apartment: apartmentID,
		State:     string(st),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		p.log.Warn("event marshal failed", zap.Error(err))
		return
	}
	topic := p.topic + "/" + apartmentID
	token := p.client.Publish(topic, p.qos, true, payload)
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		p.log.Warn("event publish failed",
			zap.String("topic", topic), zap.Error(token.Error()))
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.client.Disconnect(250)
}
