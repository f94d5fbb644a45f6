// Package mqtt connects SchoolHub Core to an MQTT broker.
//
// The broker is an optional fan-out channel for domain events. When enabled,
// every event published on the in-process bus is mirrored to
//
//	schoolhub/events/{role}/{type}
//
// as a JSON document, and the admin live feed subscribes to
// schoolhub/events/# so that several API replicas share one stream.
//
// The client keeps a registry of subscriptions and restores them after the
// paho auto-reconnect brings the session back. A retained status document on
// schoolhub/system/status, backed by a Last Will, lets operators see whether
// a node is online.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	bus.Subscribe("mqtt", mqtt.NewEventSink(client, byte(cfg.MQTT.QoS)))
package mqtt
