// Package mqtt provides the broker connection bleflow uses to receive
// Bluetooth advertisements from gateways and to publish flow outcomes.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Subscriptions that survive reconnects
//   - Last Will and Testament on bleflow/system/status
//   - Publishing with QoS and payload size checks
//
// # Topics
//
//	bleflow/ble/{gateway}/advertisement    inbound, one JSON advertisement
//	bleflow/flow/{domain}/{flow_id}        outbound, terminal flow result
//	bleflow/system/status                  retained online/offline status
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllAdvertisements(), 1,
//	    func(topic string, payload []byte) error {
//	        gateway, _ := mqtt.ParseAdvertisementTopic(topic)
//	        return dispatcher.HandleAdvertisement(gateway, payload)
//	    })
package mqtt
