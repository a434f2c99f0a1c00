package quality

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/himanishpuri/AutoPESQ/pkg/logger"
	"github.com/himanishpuri/AutoPESQ/pkg/models"
)

// ScoreCache stores oracle results by input digest.
type ScoreCache interface {
	GetScore(key string) (score float64, ok bool, err error)
	PutScore(key string, mode models.Mode, score float64) error
}

// Logger is the subset of the project logger the cache reports through.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// CachedOracle memoizes an Oracle. Cache failures are logged and otherwise
// ignored; the wrapped oracle is always the source of truth on a miss.
type CachedOracle struct {
	Oracle Oracle
	Cache  ScoreCache
	Log    Logger

	// OnLookup, if set, is told whether each lookup hit.
	OnLookup func(ctx context.Context, hit bool)
}

func NewCachedOracle(oracle Oracle, cache ScoreCache, log Logger) *CachedOracle {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedOracle{Oracle: oracle, Cache: cache, Log: log}
}

func (c *CachedOracle) Score(ctx context.Context, sampleRate int, reference, degraded []int16, mode models.Mode) (float64, error) {
	key := CacheKey(sampleRate, mode, reference, degraded)

	score, ok, err := c.Cache.GetScore(key)
	if err != nil {
		c.Log.Warnf("score cache lookup failed: %v", err)
	}
	if c.OnLookup != nil {
		c.OnLookup(ctx, ok)
	}
	if ok {
		c.Log.Debugf("score cache hit %s", key[:12])
		return score, nil
	}

	score, err = c.Oracle.Score(ctx, sampleRate, reference, degraded, mode)
	if err != nil {
		return 0, err
	}

	if err := c.Cache.PutScore(key, mode, score); err != nil {
		c.Log.Warnf("score cache store failed: %v", err)
	}
	return score, nil
}

// CacheKey is the hex SHA-256 of the sample rate, mode and both buffers.
func CacheKey(sampleRate int, mode models.Mode, reference, degraded []int16) string {
	h := sha256.New()
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(mode))
	binary.LittleEndian.PutUint64(hdr[8:], uint64(len(reference)))
	h.Write(hdr[:])
	binary.Write(h, binary.LittleEndian, reference)
	binary.Write(h, binary.LittleEndian, degraded)
	return hex.EncodeToString(h.Sum(nil))
}
