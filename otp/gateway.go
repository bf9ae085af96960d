// Package otp provides a Redis-backed implementation of the engine's OTP
// verification gateway. Codes are short-lived, attempt-capped, and stored
// only as digests; delivery is delegated to a CodeSender.
package otp

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	authgate "github.com/obsidianbank/authgate"
	"github.com/obsidianbank/authgate/internal"
	"github.com/obsidianbank/authgate/internal/limiters"
)

const recordVersionV1 = 1

// CodeSender delivers a generated code to its destination. Implementations
// own the transport (mail relay, SMS broker, webhook); the gateway only
// cares whether delivery was accepted.
type CodeSender interface {
	SendCode(ctx context.Context, destination, displayName, code string, expiresIn time.Duration) error
}

// Config defines a public type used by authgate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	CodeDigits           int
	Expiry               time.Duration
	MaxAttempts          int
	RateLimitWindow      time.Duration
	RateLimitMaxRequests int
	ResendCooldown       time.Duration
	RedisPrefix          string
}

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return Config{
		CodeDigits:           6,
		Expiry:               120 * time.Second,
		MaxAttempts:          3,
		RateLimitWindow:      60 * time.Second,
		RateLimitMaxRequests: 3,
		ResendCooldown:       30 * time.Second,
		RedisPrefix:          "agotp",
	}
}

// Gateway implements authgate.OtpVerificationGateway on Redis.
type Gateway struct {
	redis   redis.UniversalClient
	config  Config
	sender  CodeSender
	limiter *limiters.Window
	logger  zerolog.Logger
}

// NewGateway describes the newgateway operation and its observable behavior.
//
// NewGateway does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewGateway(redisClient redis.UniversalClient, cfg Config, sender CodeSender, logger zerolog.Logger) *Gateway {
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "agotp"
	}
	if cfg.CodeDigits <= 0 {
		cfg.CodeDigits = 6
	}
	return &Gateway{
		redis:  redisClient,
		config: cfg,
		sender: sender,
		limiter: limiters.New(redisClient, cfg.RedisPrefix+":rl", limiters.Config{
			Window:      cfg.RateLimitWindow,
			MaxRequests: cfg.RateLimitMaxRequests,
		}),
		logger: logger.With().Str("component", "otp_gateway").Logger(),
	}
}

type codeRecord struct {
	Attempts  uint16
	ExpiresAt int64
	Verified  bool
	CodeHash  [32]byte
}

func (g *Gateway) recordKey(destination, purpose string) string {
	return g.config.RedisPrefix + ":" + purpose + ":" + destination
}

func (g *Gateway) cooldownKey(destination, purpose string) string {
	return g.config.RedisPrefix + ":cd:" + purpose + ":" + destination
}

func normalizeDestination(destination string) string {
	return strings.ToLower(strings.TrimSpace(destination))
}

// Send generates, stores, and dispatches a code for the destination under
// the given purpose. Every failure mode is reported as a status.
func (g *Gateway) Send(ctx context.Context, destination, displayName, purpose string) authgate.OtpOutcome {
	destination = normalizeDestination(destination)
	limitKey := purpose + ":" + destination

	retryAfter, err := g.limiter.Allow(ctx, limitKey)
	if err != nil {
		if errors.Is(err, limiters.ErrRateLimited) {
			g.logger.Warn().Str("purpose", purpose).Msg("otp rate limit exceeded")
			return authgate.OtpOutcome{
				Status:            authgate.OtpRateLimited,
				RetryAfterSeconds: int(retryAfter.Seconds()),
			}
		}
		g.logger.Error().Err(err).Str("purpose", purpose).Msg("otp limiter unavailable")
		return authgate.OtpOutcome{Status: authgate.OtpSendFailed, Reason: "rate limiter unavailable"}
	}

	ok, err := g.redis.SetNX(ctx, g.cooldownKey(destination, purpose), 1, g.config.ResendCooldown).Result()
	if err != nil {
		g.logger.Error().Err(err).Str("purpose", purpose).Msg("otp cooldown check failed")
		return authgate.OtpOutcome{Status: authgate.OtpSendFailed, Reason: "otp store unavailable"}
	}
	if !ok {
		wait, err := g.redis.PTTL(ctx, g.cooldownKey(destination, purpose)).Result()
		if err != nil || wait < 0 {
			wait = g.config.ResendCooldown
		}
		return authgate.OtpOutcome{
			Status:            authgate.OtpRateLimited,
			RetryAfterSeconds: int(wait.Seconds()),
		}
	}

	code, err := internal.NewOTP(g.config.CodeDigits)
	if err != nil {
		return authgate.OtpOutcome{Status: authgate.OtpSendFailed, Reason: "code generation failed"}
	}

	record := &codeRecord{
		ExpiresAt: time.Now().Add(g.config.Expiry).Unix(),
		CodeHash:  internal.HashBytes([]byte(code)),
	}
	encoded, err := encodeCodeRecord(record)
	if err != nil {
		return authgate.OtpOutcome{Status: authgate.OtpSendFailed, Reason: "record encoding failed"}
	}

	key := g.recordKey(destination, purpose)
	if err := g.redis.Set(ctx, key, encoded, g.config.Expiry).Err(); err != nil {
		g.logger.Error().Err(err).Str("purpose", purpose).Msg("otp record store failed")
		return authgate.OtpOutcome{Status: authgate.OtpSendFailed, Reason: "otp store unavailable"}
	}

	if err := g.sender.SendCode(ctx, destination, displayName, code, g.config.Expiry); err != nil {
		g.logger.Error().Err(err).Str("purpose", purpose).Msg("otp delivery failed")
		_ = g.redis.Del(ctx, key).Err()
		return authgate.OtpOutcome{Status: authgate.OtpSendFailed, Reason: err.Error()}
	}

	g.logger.Info().Str("purpose", purpose).Msg("otp sent")
	return authgate.OtpOutcome{
		Status:           authgate.OtpSent,
		ExpiresInSeconds: int(g.config.Expiry.Seconds()),
	}
}

// Verify checks a submitted code. The attempt counter increments atomically
// under a Watch transaction so parallel guesses cannot share an attempt.
// A verified record stays in place until expiry so duplicate submissions
// surface as already_verified rather than invalid.
func (g *Gateway) Verify(ctx context.Context, destination, code, purpose string) authgate.OtpOutcome {
	destination = normalizeDestination(destination)
	key := g.recordKey(destination, purpose)
	submittedHash := internal.HashBytes([]byte(code))

	const maxRetries = 4
	for i := 0; i < maxRetries; i++ {
		var outcome authgate.OtpOutcome

		err := g.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeCodeRecord(data)
			if err != nil {
				return err
			}

			if record.Verified {
				outcome = authgate.OtpOutcome{Status: authgate.OtpAlreadyVerified}
				return nil
			}

			if time.Now().Unix() > record.ExpiresAt {
				outcome = authgate.OtpOutcome{Status: authgate.OtpExpired}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			if int(record.Attempts) >= g.config.MaxAttempts {
				outcome = authgate.OtpOutcome{Status: authgate.OtpMaxAttempts}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				ttl = time.Second
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], submittedHash[:]) != 1 {
				record.Attempts++
				outcome = authgate.OtpOutcome{
					Status:            authgate.OtpInvalidCode,
					RemainingAttempts: g.config.MaxAttempts - int(record.Attempts),
				}

				updated, err := encodeCodeRecord(record)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				return err
			}

			record.Verified = true
			outcome = authgate.OtpOutcome{Status: authgate.OtpVerified}

			updated, err := encodeCodeRecord(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// No record at all looks the same as a wrong guess.
				return authgate.OtpOutcome{Status: authgate.OtpInvalidCode}
			}
			g.logger.Error().Err(err).Str("purpose", purpose).Msg("otp verify failed")
			return authgate.OtpOutcome{Status: authgate.OtpSendFailed, Reason: "otp store unavailable"}
		}

		if outcome.Status == authgate.OtpVerified {
			g.logger.Info().Str("purpose", purpose).Msg("otp verified")
		}
		return outcome
	}

	return authgate.OtpOutcome{Status: authgate.OtpInvalidCode}
}

// Invalidate drops any outstanding code for the destination and purpose.
func (g *Gateway) Invalidate(ctx context.Context, destination, purpose string) error {
	destination = normalizeDestination(destination)
	return g.redis.Del(ctx, g.recordKey(destination, purpose)).Err()
}

func encodeCodeRecord(record *codeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if record.Verified {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeCodeRecord(data []byte) (*codeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersionV1 {
		return nil, errors.New("invalid otp record version")
	}

	record := &codeRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	verified, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	record.Verified = verified == 1

	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
