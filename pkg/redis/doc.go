// Package redis opens go-redis clients from environment configuration and
// exposes a readiness probe for them.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// The client is shared by the rate limiter store and the job queue storage.
package redis
