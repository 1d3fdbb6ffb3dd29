package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lending:idemp"

func bodyHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func nowUTC() time.Time { return time.Now().UTC() }

// validReqID accepts a lowercase RFC 4122 UUID, dashed or in the 32-hex form pkg/id generates.
func validReqID(id string) bool {
	if id != strings.ToLower(id) {
		return false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	switch len(id) {
	case 32:
		return true
	case 36:
		return u.Variant() == uuid.RFC4122 && u.Version() >= 1 && u.Version() <= 5
	}
	return false
}

// parseRequestAt reads Ax-Request-At as epoch seconds, epoch milliseconds,
// or RFC3339 with an explicit zone. Zoneless timestamps are rejected.
func parseRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing " + HeaderRequestAt)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, errors.New(HeaderRequestAt + " must be epoch (s/ms) or RFC3339 with timezone")
	}
	return t.UTC(), nil
}

// entryStore keeps one JSON idempotency entry per key in Redis.
type entryStore struct{ rdb redis.Cmdable }

func (s entryStore) key(method, route, caller, reqID string) string {
	return strings.Join([]string{keyPrefix, strings.ToLower(method), route, caller, reqID}, ":")
}

// claim stores entry only if key is free and reports whether it did.
func (s entryStore) claim(ctx context.Context, key string, entry idempEntry, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, key, payload, ttl).Result()
}

func (s entryStore) load(ctx context.Context, key string) (idempEntry, error) {
	var e idempEntry
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(raw, &e)
	return e, err
}

// settle overwrites the claim with the final response.
func (s entryStore) settle(ctx context.Context, key string, entry idempEntry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, payload, ttl).Err()
}

func (s entryStore) release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
