// Package resilience retries operations that fail transiently, such as
// opening the catalog database or publishing a run event.
//
//	p := resilience.Policy{Attempts: 3, Retryable: kafka.Retryable}
//	err := resilience.DoErr(ctx, p.Logged(log, "kafka write"), func(ctx context.Context) error {
//	    return w.WriteMessages(ctx, msgs...)
//	})
package resilience
