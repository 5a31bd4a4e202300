// Package kafka publishes imgprep run events to a Kafka topic with
// segmentio/kafka-go.
//
// Config carries broker, TLS, SASL and producer settings:
//
//	events:
//	  enabled: true
//	  brokers: ["localhost:9092"]
//	  topic: imgprep.runs
//
// The producer subpackage wraps a kafka-go Writer with retries and exposes
// a Publisher that writes Event envelopes as JSON.
package kafka
