// Package messaging publishes and consumes events over NSQ, NATS, Kafka or
// Google Pub/Sub behind one small interface.
//
// Delivery is at-least-once where the broker supports redelivery: a handler
// returning nil acknowledges the message and a handler error asks the broker
// to redeliver it. Headers travel natively on NATS, Kafka and Pub/Sub, and
// inside a JSON envelope on NSQ.
package messaging
