// Package stores implements the Redis-backed single-use token stores behind
// the engine's reset and fallback flows.
package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/obsidianbank/authgate/internal"
)

const tokenRecordVersionV1 = 1

var (
	ErrTokenNotFound         = errors.New("token record not found")
	ErrTokenExpired          = errors.New("token record expired")
	ErrTokenSubjectMismatch  = errors.New("token subject mismatch")
	ErrTokenRedisUnavailable = errors.New("token redis unavailable")
)

type tokenRecord struct {
	SubjectHash [32]byte
	ExpiresAt   int64
	Subject     string
}

// TokenStore hands out opaque single-use tokens bound to a subject (a login
// ID) and redeems each at most once. Redemption is atomic under a Redis
// Watch transaction: two concurrent redeems of the same token see exactly
// one success. A subject mismatch does not consume the token, so probing a
// stolen token with the wrong subject cannot burn it for the real owner.
type TokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

// New returns a store keyed under the given prefix. Distinct flows must use
// distinct prefixes so their tokens are not interchangeable.
func New(redisClient redis.UniversalClient, prefix string) *TokenStore {
	if prefix == "" {
		prefix = "agtk"
	}
	return &TokenStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *TokenStore) key(digest string) string {
	return s.prefix + ":" + digest
}

// Issue creates a fresh token for the subject with the given lifetime and
// returns the only copy of the plaintext token. The store keeps a digest.
func (s *TokenStore) Issue(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	record := &tokenRecord{
		SubjectHash: internal.HashBytes([]byte(subject)),
		ExpiresAt:   time.Now().Add(ttl).Unix(),
		Subject:     subject,
	}

	encoded, err := encodeTokenRecord(record)
	if err != nil {
		return "", err
	}

	// Digest collisions are cryptographically improbable; the SetNX retry
	// guards against them anyway because a collision would hand one user's
	// token to another.
	const maxAttempts = 3
	for i := 0; i < maxAttempts; i++ {
		token, err := internal.NewToken()
		if err != nil {
			return "", err
		}

		ok, err := s.redis.SetNX(ctx, s.key(internal.DigestToken(token)), encoded, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
		}
		if ok {
			return token, nil
		}
	}

	return "", errors.New("token digest collision")
}

// Redeem consumes the token iff it exists, has not expired, and was issued
// for the expected subject. Expired records are deleted on sight.
func (s *TokenStore) Redeem(ctx context.Context, token, expectedSubject string) error {
	const maxRetries = 4
	key := s.key(internal.DigestToken(token))
	expectedHash := internal.HashBytes([]byte(expectedSubject))

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeTokenRecord(data)
			if err != nil {
				return err
			}

			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrTokenExpired
			}

			if subtle.ConstantTimeCompare(record.SubjectHash[:], expectedHash[:]) != 1 {
				// Leave the record in place: a mismatch must not burn the
				// token for the subject it was actually issued to.
				return ErrTokenSubjectMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return ErrTokenNotFound
			case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenSubjectMismatch):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
			}
		}

		return nil
	}

	return ErrTokenNotFound
}

// Sweep scans the store's keyspace and deletes records whose embedded expiry
// has passed. Redis TTLs normally handle this; the sweep exists for records
// written by an older deployment without a key TTL, and it reports how many
// it removed.
func (s *TokenStore) Sweep(ctx context.Context) (int, error) {
	var removed int
	now := time.Now().Unix()

	iter := s.redis.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
		}

		record, err := decodeTokenRecord(data)
		if err != nil || now > record.ExpiresAt {
			if delErr := s.redis.Del(ctx, key).Err(); delErr != nil {
				return removed, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, delErr)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	return removed, nil
}

func encodeTokenRecord(record *tokenRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(tokenRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Subject) > 65535 {
		return nil, errors.New("token record subject too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Subject))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Subject)
	buf.Write(record.SubjectHash[:])

	return buf.Bytes(), nil
}

func decodeTokenRecord(data []byte) (*tokenRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != tokenRecordVersionV1 {
		return nil, errors.New("invalid token record version")
	}

	record := &tokenRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var subjectLen uint16
	if err := binary.Read(reader, binary.BigEndian, &subjectLen); err != nil {
		return nil, err
	}

	subject := make([]byte, subjectLen)
	if _, err := io.ReadFull(reader, subject); err != nil {
		return nil, err
	}
	record.Subject = string(subject)

	if _, err := io.ReadFull(reader, record.SubjectHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
