/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTCoupling couples a Service to an MQTT broker: ops arrive on
// the subscription topics, and emitted navigation results go out on
// the outbound topic.
type MQTTCoupling struct {
	Client               mqtt.Client
	Quiesce              uint
	SubTopics            []string
	DefaultOutboundTopic string
	QoS                  byte

	s *Service
}

// MQTTOpts follows the mosquitto_sub flavor of MQTT client options.
type MQTTOpts struct {
	Broker    string `json:"broker,omitempty"`
	ClientId  string `json:"clientId,omitempty"`
	Port      int    `json:"port,omitempty"`
	KeepAlive int    `json:"keepAlive,omitempty"`
	UserName  string `json:"user,omitempty"`
	Password  string `json:"password,omitempty"`
	Clean     bool   `json:"clean,omitempty"`
	Quiesce   uint   `json:"quiesce,omitempty"`

	SubTopics []string `json:"topics,omitempty"`
	OutTopic  string   `json:"outTopic,omitempty"`
	QoS       byte     `json:"qos,omitempty"`
}

// NewMQTTCoupling connects to the broker and subscribes to the op
// topics.
func NewMQTTCoupling(ctx context.Context, s *Service, o *MQTTOpts) (*MQTTCoupling, error) {

	mqtt.ERROR = log.New(os.Stderr, "mqtt.error", 0)

	if o.Port == 0 {
		o.Port = 1883
	}
	if o.KeepAlive == 0 {
		o.KeepAlive = 10
	}
	if o.Quiesce == 0 {
		o.Quiesce = 100
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s:%d", o.Broker, o.Port))
	opts.SetClientID(o.ClientId)
	opts.SetKeepAlive(time.Duration(o.KeepAlive) * time.Second)
	opts.SetCleanSession(o.Clean)
	if o.UserName != "" {
		opts.SetUsername(o.UserName)
	}
	if o.Password != "" {
		opts.SetPassword(o.Password)
	}

	c := &MQTTCoupling{
		Quiesce:              o.Quiesce,
		SubTopics:            o.SubTopics,
		DefaultOutboundTopic: o.OutTopic,
		QoS:                  o.QoS,
		s:                    s,
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	c.Client = client

	handler := func(_ mqtt.Client, m mqtt.Message) {
		var op SOp
		if err := json.Unmarshal(m.Payload(), &op); err != nil {
			s.err(fmt.Errorf("MQTT op parse error %v on topic %s", err, m.Topic()))
			return
		}
		if err := op.Do(ctx, s); err != nil {
			// Conveyed via op.Err below, too.
			Logf("MQTT op error %v", err)
		}
		c.publish(&op)
	}

	for _, topic := range c.SubTopics {
		if token := client.Subscribe(topic, c.QoS, handler); token.Wait() && token.Error() != nil {
			client.Disconnect(c.Quiesce)
			return nil, token.Error()
		}
	}

	go func() {
		<-ctx.Done()
		client.Disconnect(c.Quiesce)
	}()

	return c, nil
}

func (c *MQTTCoupling) publish(x interface{}) {
	if c.DefaultOutboundTopic == "" {
		return
	}
	js, err := json.Marshal(&x)
	if err != nil {
		c.s.err(fmt.Errorf("MQTT publish marshal error %v", err))
		return
	}
	if token := c.Client.Publish(c.DefaultOutboundTopic, c.QoS, false, js); token.Wait() && token.Error() != nil {
		c.s.err(fmt.Errorf("MQTT publish error %v", token.Error()))
	}
}

// ForwardEmitted publishes everything the service emits.
func (c *MQTTCoupling) ForwardEmitted(ctx context.Context, emitted chan interface{}) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case x := <-emitted:
				c.publish(x)
			}
		}
	}()
}
