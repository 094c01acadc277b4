// Package rkv holds the rueidis plumbing shared by the Redis and Valkey drivers: dialing,
// readiness, hash commands and server error matching. Query-engine commands stay in the drivers
// because the two engines disagree on them.
package rkv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/rueidis"
)

const (
	defaultDialTimeout = 5 * time.Second
	readinessInterval  = 100 * time.Millisecond
	clientName         = "shopsight"
)

// Config holds connection parameters.
type Config struct {
	Addrs       []string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Dial creates a rueidis client. Client-side caching is off and RESP2 is forced because FT.SEARCH
// replies are parsed as flat arrays.
func Dial(cfg Config) (rueidis.Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("addrs is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   clientName,
		Dialer:       net.Dialer{Timeout: cfg.DialTimeout},
		DisableCache: true,
		AlwaysRESP2:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// Conn wraps a rueidis client with the commands both drivers share.
type Conn struct {
	Client rueidis.Client
}

// Ping checks connectivity.
func (c Conn) Ping(ctx context.Context) error {
	if err := c.Client.Do(ctx, c.Client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (c Conn) Close() {
	c.Client.Close()
}

// WaitForReady polls Ping until the server responds or timeout expires. The last ping error is
// reported on timeout.
func (c Conn) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readinessInterval)
	defer ticker.Stop()

	var last error
	for {
		select {
		case <-ctx.Done():
			if last != nil {
				return fmt.Errorf("timeout waiting for database: %w", errors.Join(ctx.Err(), last))
			}
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if last = c.Ping(ctx); last == nil {
				return nil
			}
		}
	}
}

// Do runs one command.
func (c Conn) Do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return c.Client.Do(ctx, cmd)
}

// B returns the command builder.
func (c Conn) B() rueidis.Builder {
	return c.Client.B()
}

// IsServerErr reports whether err is a server error whose message contains any of substrs,
// ignoring case. Transport errors never match.
func IsServerErr(err error, substrs ...string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	msg := strings.ToLower(re.Error())
	for _, s := range substrs {
		if strings.Contains(msg, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
