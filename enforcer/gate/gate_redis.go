package gate

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/bluesky-social/marshal/enforcer/cachestore"

	"github.com/redis/go-redis/v9"
)

var redisGatePrefix = "gate/"

// Redis reads gate values from redis keys ("gate/<name>", any strconv.ParseBool
// value). Values are memoized in the optional cache, so a flipped switch takes
// up to the cache TTL to be seen. Writing the keys is left to other tooling.
type Redis struct {
	Client *redis.Client
	Cache  cachestore.GateCache
	logger *slog.Logger
}

func NewRedis(redisURL string, cache cachestore.GateCache, logger *slog.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		Client: rdb,
		Cache:  cache,
		logger: logger.With("system", "gate"),
	}, nil
}

func (g *Redis) IsActive(ctx context.Context, name string) bool {
	if g.Cache != nil {
		if active, ok := g.Cache.Lookup(ctx, name); ok {
			return active
		}
	}

	active, err := g.fetch(ctx, name)
	if err != nil {
		// not cached, so the next lookup retries
		g.logger.Warn("reading feature gate from redis", "gate", name, "err", err)
		return false
	}
	if g.Cache != nil {
		g.Cache.Store(ctx, name, active)
	}
	return active
}

// fetch reads one gate. Unset gates are off.
func (g *Redis) fetch(ctx context.Context, name string) (bool, error) {
	val, err := g.Client.Get(ctx, redisGatePrefix+name).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	active, err := strconv.ParseBool(val)
	if err != nil {
		g.logger.Warn("unparsable feature gate value", "gate", name, "val", val)
		return false, nil
	}
	return active, nil
}
