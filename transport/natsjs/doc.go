// Package natsjs implements the busbench transport and admin contracts on
// NATS JetStream.
//
// A topic maps to a stream named after the topic that captures the subjects
// "<topic>.*". Partition n of the topic is the subject "<topic>.<n>"; events
// are routed by hashing their partition key. A subscription maps to one
// durable pull consumer per partition subject.
//
// Delivery runs one pull loop per partition. The default consumer group uses
// ordered consumers positioned at DeliveryOptions.StartTime, while a named
// consumer group binds to the subscription's durable consumers and acks every
// handled message.
package natsjs
