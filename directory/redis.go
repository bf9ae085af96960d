// Package directory provides a Redis-backed implementation of the engine's
// account-of-record boundary. Accounts are stored as JSON under the login ID
// with a secondary index from email to login ID.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	authgate "github.com/obsidianbank/authgate"
)

const defaultPrefix = "agdir"

// RedisDirectory defines a public type used by authgate APIs.
//
// RedisDirectory instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RedisDirectory struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisDirectory describes the newredisdirectory operation and its observable behavior.
//
// NewRedisDirectory does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewRedisDirectory(client redis.UniversalClient, prefix string) *RedisDirectory {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisDirectory{
		redis:  client,
		prefix: prefix,
	}
}

func (d *RedisDirectory) accountKey(loginID string) string {
	return d.prefix + ":login:" + loginID
}

func (d *RedisDirectory) emailKey(email string) string {
	return d.prefix + ":email:" + strings.ToLower(strings.TrimSpace(email))
}

// FindByLoginID describes the findbyloginid operation and its observable behavior.
//
// FindByLoginID may return an error when input validation, dependency calls, or security checks fail.
// FindByLoginID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *RedisDirectory) FindByLoginID(ctx context.Context, loginID string) (*authgate.UserAccount, error) {
	data, err := d.redis.Get(ctx, d.accountKey(loginID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, authgate.ErrUserNotFound
		}
		return nil, err
	}

	var account authgate.UserAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByEmail describes the findbyemail operation and its observable behavior.
//
// FindByEmail may return an error when input validation, dependency calls, or security checks fail.
// FindByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *RedisDirectory) FindByEmail(ctx context.Context, email string) (*authgate.UserAccount, error) {
	loginID, err := d.redis.Get(ctx, d.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, authgate.ErrUserNotFound
		}
		return nil, err
	}
	return d.FindByLoginID(ctx, loginID)
}

// Save writes the account and its email index in one pipeline so a lookup
// never sees the index without the record.
func (d *RedisDirectory) Save(ctx context.Context, account *authgate.UserAccount) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	_, err = d.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, d.accountKey(account.LoginID), data, 0)
		pipe.Set(ctx, d.emailKey(account.Email), account.LoginID, 0)
		return nil
	})
	return err
}
