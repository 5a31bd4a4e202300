package kafka

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strings"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/imgprep/errors"
)

// Retryable reports whether a failed run-event write may succeed if it is
// repeated: broker errors kafka-go marks temporary, network failures and
// connections the broker dropped. A cancelled context never is.
func Retryable(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var batch kafkago.WriteErrors
	if stderrors.As(err, &batch) {
		found := false
		for _, e := range batch {
			if e == nil {
				continue
			}
			if !Retryable(e) {
				return false
			}
			found = true
		}
		return found
	}
	var kerr kafkago.Error
	if stderrors.As(err, &kerr) {
		return kerr.Temporary()
	}
	var nerr net.Error
	if stderrors.As(err, &nerr) || stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return connectionLost(err.Error())
}

// connectionLost matches failures that reached us only as text.
func connectionLost(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range []string{"connection refused", "connection reset", "broken pipe", "i/o timeout", "dial tcp"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Classify turns a failed write to topic into an imgprep error. A broker
// refusing the event itself or our credentials is USAGE, since repeating the
// run will not help; anything else is IO with a "retryable" detail. Context
// errors are returned unchanged.
func Classify(topic string, err error) error {
	if err == nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var kerr kafkago.Error
	if stderrors.As(err, &kerr) && rejected(kerr) {
		return errors.Usage("publish", fmt.Sprintf("topic %s refused the event: %s", topic, kerr.Title())).
			WithCause(err).
			WithDetail("topic", topic)
	}
	return errors.IO("publish", topic, err).WithDetail("retryable", Retryable(err))
}

func rejected(e kafkago.Error) bool {
	switch e {
	case kafkago.MessageSizeTooLarge, kafkago.RecordListTooLarge, kafkago.InvalidTopic,
		kafkago.InvalidRequiredAcks, kafkago.TopicAuthorizationFailed,
		kafkago.ClusterAuthorizationFailed, kafkago.SASLAuthenticationFailed:
		return true
	}
	return false
}
