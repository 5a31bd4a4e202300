package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/logger"
)

// NewWriter builds the kafka-go writer that carries run events to
// cfg.Topic. Nothing is dialed until the first write. Unusable TLS or SASL
// settings are INVALID_INPUT naming the events.* field at fault.
//
// Messages are hashed by key, and the publisher keys events by run id, so
// every event of one run lands on the same partition in order.
func NewWriter(cfg Config, log *logger.Logger) (*kafkago.Writer, error) {
	if log == nil {
		log = logger.Nop()
	}
	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}
	transport := &kafkago.Transport{
		IdleTimeout: ParseDuration(cfg.IdleTimeout),
		MetadataTTL: ParseDuration(cfg.MetadataTTL),
	}
	if cfg.EnableTLS {
		if transport.TLS, err = tlsConfig(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.EnableSASL {
		if transport.SASL, err = saslMechanism(cfg); err != nil {
			return nil, err
		}
	}

	topicLog := log.WithFields(logger.Fields("topic", cfg.Topic))
	return &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: ParseDuration(cfg.BatchTimeout),
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:  codec,
		WriteTimeout: ParseDuration(cfg.WriteTimeout),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			topicLog.Warn("event writer: " + fmt.Sprintf(msg, args...))
		}),
	}, nil
}

func tlsConfig(cfg Config) (*tls.Config, error) {
	tc := &tls.Config{
		InsecureSkipVerify: cfg.TLSSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, errors.InvalidInput("events.tls_ca_file", "cannot be read").WithCause(err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.InvalidInput("events.tls_ca_file", "holds no PEM certificate")
		}
		tc.RootCAs = pool
	}
	if cfg.TLSCertFile != "" || cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, errors.InvalidInput("events.tls_cert_file", "client key pair cannot be loaded").WithCause(err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

func saslMechanism(cfg Config) (sasl.Mechanism, error) {
	var (
		m   sasl.Mechanism
		err error
	)
	switch cfg.SASLMechanism {
	case "PLAIN":
		m = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	case "SCRAM-SHA-256":
		m, err = scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		m, err = scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, errors.InvalidInput("events.sasl_mechanism",
			fmt.Sprintf("unsupported mechanism %q", cfg.SASLMechanism))
	}
	if err != nil {
		return nil, errors.InvalidInput("events.username", "rejected by "+cfg.SASLMechanism).WithCause(err)
	}
	return m, nil
}

func compressionCodec(name string) (kafkago.Compression, error) {
	switch name {
	case "none":
		return 0, nil
	case "gzip":
		return kafkago.Gzip, nil
	case "snappy", "":
		return kafkago.Snappy, nil
	case "lz4":
		return kafkago.Lz4, nil
	case "zstd":
		return kafkago.Zstd, nil
	}
	return 0, errors.InvalidInput("events.compression", fmt.Sprintf("unknown codec %q", name))
}
