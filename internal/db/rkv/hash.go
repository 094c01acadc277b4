package rkv

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/shopsight/internal/db"
)

const (
	// pipelineChunk caps the commands sent in one DoMulti round-trip.
	pipelineChunk = 256
	scanCount     = 500
)

// hsetCmd builds HSET with fields in sorted order so the same product always produces the same
// command.
func (c Conn) hsetCmd(key string, fields map[string]string) (rueidis.Completed, error) {
	if len(fields) == 0 {
		return rueidis.Completed{}, fmt.Errorf("key %s: no fields", key)
	}
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	slices.Sort(names)

	cmd := c.Client.B().Hset().Key(key).FieldValue()
	for _, k := range names {
		cmd = cmd.FieldValue(k, fields[k])
	}
	return cmd.Build(), nil
}

// HSet sets hash fields.
func (c Conn) HSet(ctx context.Context, key string, fields map[string]string) error {
	cmd, err := c.hsetCmd(key, fields)
	if err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	if err := c.Client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HSetMulti stores multiple hashes, pipelined in chunks. Every failing key is reported.
func (c Conn) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	var errs []error
	for chunk := range slices.Chunk(items, pipelineChunk) {
		cmds := make([]rueidis.Completed, 0, len(chunk))
		keys := make([]string, 0, len(chunk))
		for _, item := range chunk {
			cmd, err := c.hsetCmd(item.Key, item.Fields)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			cmds = append(cmds, cmd)
			keys = append(keys, item.Key)
		}
		if len(cmds) == 0 {
			continue
		}
		for i, res := range c.Client.DoMulti(ctx, cmds...) {
			if err := res.Error(); err != nil {
				errs = append(errs, fmt.Errorf("key %s: %w", keys[i], err))
			}
		}
	}
	if len(errs) > 0 {
		return &db.Error{Op: db.OpHSet, Err: errors.Join(errs...)}
	}
	return nil
}

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (c Conn) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := c.Client.Do(ctx, c.Client.B().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HGetAllMulti fetches multiple hashes, pipelined in chunks. Output order matches keys.
func (c Conn) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	out := make([]map[string]string, 0, len(keys))
	for chunk := range slices.Chunk(keys, pipelineChunk) {
		cmds := make([]rueidis.Completed, len(chunk))
		for i, key := range chunk {
			cmds[i] = c.Client.B().Hgetall().Key(key).Build()
		}
		for i, res := range c.Client.DoMulti(ctx, cmds...) {
			m, err := res.AsStrMap()
			if err != nil {
				return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", chunk[i], err)}
			}
			out = append(out, m)
		}
	}
	return out, nil
}

// Del deletes a key.
func (c Conn) Del(ctx context.Context, key string) error {
	if err := c.Client.Do(ctx, c.Client.B().Del().Key(key).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Exists checks if a key exists.
func (c Conn) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.Client.Do(ctx, c.Client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return n > 0, nil
}

// Scan iterates keys matching a pattern. SCAN may return a key more than once; the result
// holds each key once, in first-seen order.
func (c Conn) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	seen := make(map[string]struct{})

	for {
		cmd := c.Client.B().Scan().Cursor(cursor).Match(pattern).Count(scanCount).Build()
		res, err := c.Client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		for _, k := range res.Elements {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		cursor = res.Cursor
		if cursor == 0 {
			return keys, nil
		}
	}
}
