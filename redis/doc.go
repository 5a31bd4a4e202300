// Package redis backs image deduplication with a Redis set.
//
// Client wraps go-redis with imgprep configuration and logging. SeenSet
// implements transform.SeenSet on SADD, so several runs, or several
// processes feeding the same dataset, drop images already produced:
//
//	client, err := redis.New(redis.Config{Addr: "localhost:6379"}, log)
//	seen := redis.NewSeenSet(client, "faces-v2")
//	pipeline.NewMap(b, transform.Dedup, transform.DedupParams{Seen: seen})
package redis
