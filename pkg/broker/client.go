package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/ngsi-go/ngsi/pkg/version"
	"github.com/ngsi-go/ngsi/pkg/wire"
)

// ErrNoLocation is returned when the broker accepts a subscription without
// reporting its id.
var ErrNoLocation = errors.New("broker: subscription created without Location header")

// Client issues the handful of broker calls the client core needs.
type Client struct {
	transport Transport
	prefix    string
}

// NewClient creates a client over transport.
func NewClient(transport Transport) *Client {
	return &Client{transport: transport, prefix: version.CurrentPrefix()}
}

// Transport returns the underlying transport.
func (c *Client) Transport() Transport {
	return c.transport
}

// CreateSubscription registers req with the broker and returns the id the
// broker assigned.
func (c *Client) CreateSubscription(ctx context.Context, req *wire.SubscriptionRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("broker: encode subscription: %w", err)
	}
	resp, err := c.transport.Execute(ctx, http.MethodPost, c.prefix+"/subscriptions", body)
	if err != nil {
		return "", err
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", ErrNoLocation
	}
	if u, err := url.Parse(loc); err == nil {
		loc = u.Path
	}
	id := path.Base(strings.TrimRight(loc, "/"))
	if id == "" || id == "." || id == "/" {
		return "", ErrNoLocation
	}
	return id, nil
}

// DeleteSubscription removes a subscription from the broker.
func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	_, err := c.transport.Execute(ctx, http.MethodDelete, c.prefix+"/subscriptions/"+url.PathEscape(id), nil)
	return err
}

// CreateEntity stores a new entity.
func (c *Client) CreateEntity(ctx context.Context, doc wire.Document) error {
	body, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("broker: encode entity: %w", err)
	}
	_, err = c.transport.Execute(ctx, http.MethodPost, c.prefix+"/entities", body)
	return err
}

// GetEntity fetches one entity in normalized form. typ may be empty.
func (c *Client) GetEntity(ctx context.Context, id, typ string) (wire.Document, error) {
	p := c.prefix + "/entities/" + url.PathEscape(id)
	if typ != "" {
		p += "?" + url.Values{"type": {typ}}.Encode()
	}
	resp, err := c.transport.Execute(ctx, http.MethodGet, p, nil)
	if err != nil {
		return nil, err
	}
	doc, err := wire.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("broker: decode entity %q: %w", id, err)
	}
	return doc, nil
}
