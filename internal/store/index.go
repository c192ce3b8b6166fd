package store

import (
	"context"
	"kvguard/internal/ports"
	"kvguard/internal/types"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// AddIndexes writes index fields into one hash per index name. Entries sharing
// a name are merged first; on a duplicate field the later value wins. Names
// are written in the order they first appear. It returns true only if every
// hash was written.
func (c *Client) AddIndexes(ctx context.Context, indexes []types.Index) (bool, error) {
	var order []string
	merged := make(map[string]map[string]string)
	for _, idx := range indexes {
		if idx.Name == "" {
			return false, types.NullArgument("index name")
		}
		fields, ok := merged[idx.Name]
		if !ok {
			fields = make(map[string]string, len(idx.Fields))
			merged[idx.Name] = fields
			order = append(order, idx.Name)
		}
		for _, f := range idx.Fields {
			if f.Name == "" {
				return false, types.NullArgument("index field name")
			}
			fields[f.Name] = f.Value
		}
	}

	var errs *multierror.Error
	all := true
	for _, name := range order {
		fields := merged[name]
		if len(fields) == 0 {
			continue
		}
		_, ok, err := execute(ctx, c, "hset", name, func(ctx context.Context, w ports.WireStore) (struct{}, error) {
			return struct{}{}, w.HSet(ctx, name, fields)
		})
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		all = all && ok
	}
	if err := errs.ErrorOrNil(); err != nil {
		return false, err
	}
	return all, nil
}

// GetIndex returns the index stored under name with its fields sorted by name,
// or nil if the hash is empty or cannot be read.
func (c *Client) GetIndex(ctx context.Context, name string) (*types.Index, error) {
	fields, err := c.readIndex(ctx, name)
	if err != nil || len(fields) == 0 {
		return nil, err
	}
	idx := &types.Index{Name: name, Fields: make([]types.Field, 0, len(fields))}
	for _, f := range sortedNames(fields) {
		idx.Fields = append(idx.Fields, types.Field{Name: f, Value: fields[f]})
	}
	return idx, nil
}

// GetIndexColumnNames returns the sorted field names of an index, nil if empty.
func (c *Client) GetIndexColumnNames(ctx context.Context, name string) ([]string, error) {
	fields, err := c.readIndex(ctx, name)
	if err != nil || len(fields) == 0 {
		return nil, err
	}
	return sortedNames(fields), nil
}

// GetIndexColumnValues returns the values of an index ordered by field name, nil if empty.
func (c *Client) GetIndexColumnValues(ctx context.Context, name string) ([]string, error) {
	fields, err := c.readIndex(ctx, name)
	if err != nil || len(fields) == 0 {
		return nil, err
	}
	names := sortedNames(fields)
	values := make([]string, len(names))
	for i, f := range names {
		values[i] = fields[f]
	}
	return values, nil
}

// DeleteIndexColumns removes fields from an index. It returns true if at least
// one field was removed.
func (c *Client) DeleteIndexColumns(ctx context.Context, name string, fields ...string) (bool, error) {
	if name == "" {
		return false, types.NullArgument("index name")
	}
	fields = slices.DeleteFunc(slices.Clone(fields), func(f string) bool { return f == "" })
	if len(fields) == 0 {
		return false, nil
	}
	removed, ok, err := execute(ctx, c, "hdel", name+":"+strings.Join(fields, ","), func(ctx context.Context, w ports.WireStore) (int64, error) {
		return w.HDel(ctx, name, fields...)
	})
	return ok && removed > 0, err
}

// Count returns the number of fields in the hash under key. It is 0 for a
// missing key and when every attempt failed.
func (c *Client) Count(ctx context.Context, key string) (int64, error) {
	if err := requireKey(key); err != nil {
		return 0, err
	}
	n, _, err := execute(ctx, c, "hlen", key, func(ctx context.Context, w ports.WireStore) (int64, error) {
		return w.HLen(ctx, key)
	})
	return n, err
}

func (c *Client) readIndex(ctx context.Context, name string) (map[string]string, error) {
	if name == "" {
		return nil, types.NullArgument("index name")
	}
	fields, ok, err := execute(ctx, c, "hgetall", name, func(ctx context.Context, w ports.WireStore) (map[string]string, error) {
		return w.HGetAll(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		log.WithField("index", name).Warn("index could not be read")
		return nil, nil
	}
	return fields, nil
}

func sortedNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	slices.Sort(names)
	return names
}
