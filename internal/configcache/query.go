package configcache

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jmespath/go-jmespath"
)

// Query evaluates a JMESPath expression against a JSON-valued entry.
// It returns nil and no error when the expression matches nothing.
func (c *Cache) Query(ctx context.Context, name, namespace, expression string) (any, error) {
	e, err := c.Lookup(ctx, name, namespace)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal([]byte(e.Value), &doc); err != nil {
		return nil, fmt.Errorf("config %s is not JSON: %w", e.Key(), err)
	}
	v, err := jmespath.Search(expression, doc)
	if err != nil {
		return nil, fmt.Errorf("jmespath: %w", err)
	}
	return v, nil
}
