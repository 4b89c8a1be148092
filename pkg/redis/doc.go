// Package redis connects to Redis with go-redis/v9 and exposes a healthcheck
// probe. The client it returns backs the Redis pub/sub backend and the Redis
// rate limiter store.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	probe := redis.Healthcheck(client)
package redis
