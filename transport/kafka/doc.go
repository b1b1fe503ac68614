// Package kafka implements the busbench transport and admin contracts on a
// Kafka-compatible endpoint, such as the Kafka surface of an Event Hubs
// namespace, using franz-go.
//
// A topic maps to a Kafka topic created with LogAppendTime timestamps so that
// record timestamps are broker enqueue times. A subscription maps to a
// consumer group whose offsets start at the topic's end offsets.
//
// When a SAS signer is configured the client authenticates with SASL/PLAIN:
// the user name is "$ConnectionString" and the password a connection string
// carrying a freshly signed namespace token.
package kafka
