package kv

import (
	"github.com/rs/zerolog/log"
)

// Open returns the Redis-backed store when redisAddr is set and reachable,
// and the file store under dataDir otherwise. The returned func releases it.
func Open(dataDir, redisAddr, redisPassword string, redisDB int) (Store, func(), error) {
	if redisAddr != "" {
		rdb, err := NewRedisClient(redisAddr, redisPassword, redisDB)
		if err == nil {
			log.Info().Str("addr", redisAddr).Msg("using redis persistence")
			return NewRedis(rdb, ""), func() { _ = rdb.Close() }, nil
		}
		log.Warn().Err(err).Msg("redis unavailable, falling back to local files")
	}

	f, err := NewFile(dataDir)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("dir", dataDir).Msg("using file persistence")
	return f, func() {}, nil
}
