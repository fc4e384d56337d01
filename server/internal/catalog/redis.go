// Package catalog publishes plugin descriptors to Redis so that registries
// running in other processes can load them by service name.
package catalog

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/opendmp/python-script-processor/sdk/api/spi"
	"github.com/opendmp/python-script-processor/sdk/base/codec"
)

const (
	defaultPrefix = "opendmp:plugins"
)

// RedisCatalog stores descriptors as JSON documents under
// "<prefix>:<serviceName>" and keeps the set of names under "<prefix>".
type RedisCatalog struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCatalog connects to the given Redis URL and returns a catalog.
func NewRedisCatalog(ctx context.Context, addr string) (*RedisCatalog, error) {
	opts, err := parseRedisURL(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewUniversalClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCatalog{client: c, prefix: defaultPrefix}, nil
}

// NewRedisCatalogWithClient wraps an existing client. An empty prefix uses
// the default "opendmp:plugins".
func NewRedisCatalogWithClient(c redis.UniversalClient, prefix string) *RedisCatalog {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisCatalog{client: c, prefix: prefix}
}

// parseRedisURL parses addr into UniversalOptions supporting single, cluster,
// and sentinel Redis deployments. If no scheme is present, addr is treated as
// a plain host:port string.
func parseRedisURL(addr string) (*redis.UniversalOptions, error) {
	if !strings.Contains(addr, "://") {
		return &redis.UniversalOptions{Addrs: []string{addr}}, nil
	}

	scheme, rest, _ := strings.Cut(addr, "://")
	// url.Parse rejects comma separated cluster hosts, so split them off first.
	hostEnd := len(rest)
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		hostEnd = i
	}
	userHost := rest[:hostEnd]
	at := strings.LastIndex(userHost, "@")
	hosts := userHost[at+1:]
	u, err := url.Parse(scheme + "://" + userHost[:at+1] + "placeholder" + rest[hostEnd:])
	if err != nil {
		return nil, err
	}

	opts := &redis.UniversalOptions{Addrs: strings.Split(hosts, ",")}
	if u.User != nil {
		opts.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			opts.Password = pw
		}
	}

	q := u.Query()
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	parseDB := func(s string) error {
		db, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("redis: invalid db: %v", err)
		}
		opts.DB = db
		return nil
	}
	switch scheme {
	case "redis", "rediss":
		if u.Path != "" && u.Path != "/" {
			if err := parseDB(strings.TrimPrefix(u.Path, "/")); err != nil {
				return nil, err
			}
		} else if dbStr := q.Get("db"); dbStr != "" {
			if err := parseDB(dbStr); err != nil {
				return nil, err
			}
		}
		if scheme == "rediss" {
			opts.TLSConfig = tlsCfg
		}
	case "redis-sentinel", "rediss-sentinel":
		opts.MasterName = strings.TrimPrefix(u.Path, "/")
		if dbStr := q.Get("db"); dbStr != "" {
			if err := parseDB(dbStr); err != nil {
				return nil, err
			}
		}
		if v := q.Get("sentinel_username"); v != "" {
			opts.SentinelUsername = v
		}
		if v := q.Get("sentinel_password"); v != "" {
			opts.SentinelPassword = v
		}
		if scheme == "rediss-sentinel" {
			opts.TLSConfig = tlsCfg
		}
	default:
		return nil, fmt.Errorf("redis: invalid URL scheme: %s", scheme)
	}

	return opts, nil
}

func (c *RedisCatalog) key(name string) string { return c.prefix + ":" + name }

// Publish validates d and stores it, replacing any previous version.
func (c *RedisCatalog) Publish(ctx context.Context, d spi.PluginConfiguration) error {
	if err := d.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, c.key(d.ServiceName), b, 0)
		p.SAdd(ctx, c.prefix, d.ServiceName)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", d.ServiceName, err)
	}
	return nil
}

// Load returns the descriptor stored under name. found is false when the
// catalog has no entry; a stored document that fails validation is an error.
func (c *RedisCatalog) Load(ctx context.Context, name string) (d spi.PluginConfiguration, found bool, err error) {
	b, err := c.client.Get(ctx, c.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return d, false, nil
	}
	if err != nil {
		return d, false, fmt.Errorf("load %s: %w", name, err)
	}
	d, err = codec.Decode(codec.JSON, b)
	if err != nil {
		return spi.PluginConfiguration{}, true, fmt.Errorf("load %s: %w", name, err)
	}
	return d, true, nil
}

// Names returns the published service names in sorted order.
func (c *RedisCatalog) Names(ctx context.Context) ([]string, error) {
	names, err := c.client.SMembers(ctx, c.prefix).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes the descriptor stored under name.
func (c *RedisCatalog) Remove(ctx context.Context, name string) error {
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, c.key(name))
		p.SRem(ctx, c.prefix, name)
		return nil
	})
	return err
}

// Close releases the underlying client.
func (c *RedisCatalog) Close() error { return c.client.Close() }
