package service

import (
	"context"
	"fmt"

	"vfxpublish/internal/domain"
)

// attributeCache memoizes schema lookups for the lifetime of one publish run.
type attributeCache struct {
	provider AttributeSchema
	byKind   map[domain.EntityKind]map[string]struct{}
}

func newAttributeCache(provider AttributeSchema) *attributeCache {
	return &attributeCache{
		provider: provider,
		byKind:   make(map[domain.EntityKind]map[string]struct{}),
	}
}

func (c *attributeCache) forKind(ctx context.Context, kind domain.EntityKind) (map[string]struct{}, error) {
	if attrs, ok := c.byKind[kind]; ok {
		return attrs, nil
	}
	names, err := c.provider.AttributesForKind(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s attributes: %w", kind, err)
	}
	attrs := make(map[string]struct{}, len(names))
	for _, name := range names {
		attrs[name] = struct{}{}
	}
	c.byKind[kind] = attrs
	return attrs, nil
}

// partition splits values into schema attributes and free-form data.
func partition(values map[string]any, attrs map[string]struct{}) (attrib, data map[string]any) {
	attrib = map[string]any{}
	data = map[string]any{}
	for key, value := range values {
		if _, ok := attrs[key]; ok {
			attrib[key] = value
		} else {
			data[key] = value
		}
	}
	return attrib, data
}
