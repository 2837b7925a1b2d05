package client

import (
	"context"

	"github.com/ngsi-go/ngsi/pkg/mapper"
)

// Create serializes v and stores it as a new entity.
func (c *Client) Create(ctx context.Context, v any) error {
	doc, err := c.mapper.Serialize(v)
	if err != nil {
		return err
	}
	return c.broker.CreateEntity(ctx, doc)
}

// Get fetches an entity and deserializes it as T. typ may be empty.
func Get[T any](ctx context.Context, c *Client, id, typ string) (T, error) {
	var zero T
	if typ != "" {
		typ = c.mapper.EncodeField(typ)
	}
	doc, err := c.broker.GetEntity(ctx, c.mapper.EncodeField(id), typ)
	if err != nil {
		return zero, err
	}
	return mapper.Deserialize[T](c.mapper, doc)
}
