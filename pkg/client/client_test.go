package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ngsi-go/ngsi/pkg/broker"
	"github.com/ngsi-go/ngsi/pkg/broker/mocks"
	"github.com/ngsi-go/ngsi/pkg/config"
	"github.com/ngsi-go/ngsi/pkg/log"
	"github.com/ngsi-go/ngsi/pkg/model"
	"github.com/ngsi-go/ngsi/pkg/subscription"
	"github.com/ngsi-go/ngsi/pkg/wire"
)

type room struct {
	ID          string  `ngsi:"id"`
	Type        string  `ngsi:"type"`
	Name        string  `ngsi:"name"`
	Temperature float64 `ngsi:"temperature"`
}

func (room) EntityType() string { return "Room" }

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Broker.URL = "http://orion:1026"
	cfg.Listener.Address = "127.0.0.1:0"
	cfg.Listener.PublicURL = "http://client:8666/notify"
	return cfg
}

func newTestClient(t *testing.T, cfg config.Config) (*Client, *mocks.Transport) {
	t.Helper()
	tr := mocks.NewTransport(t)
	c, err := New(cfg, WithTransport(tr))
	require.NoError(t, err)
	return c, tr
}

func created(id string) *broker.Response {
	h := http.Header{}
	h.Set("Location", "/v2/subscriptions/"+id)
	return &broker.Response{StatusCode: http.StatusCreated, Header: h}
}

func requestBody(t *testing.T, fn func(req wire.SubscriptionRequest) bool) any {
	return mock.MatchedBy(func(body []byte) bool {
		var req wire.SubscriptionRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return false
		}
		return fn(req)
	})
}

func notification(subID string, docs ...string) []byte {
	return []byte(`{"subscriptionId":"` + subID + `","data":[` + strings.Join(docs, ",") + `]}`)
}

func TestNew(t *testing.T) {
	_, err := New(config.Default())
	assert.ErrorIs(t, err, config.ErrInvalid)

	cfg := config.Default()
	cfg.Discovery.Enabled = true
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrNoBroker)

	c, err := New(testConfig())
	require.NoError(t, err)
	assert.NotNil(t, c.Broker())
	assert.NotNil(t, c.Mapper())
	assert.Equal(t, "/notify", c.Listener().Path())
	assert.Empty(t, c.Subscriptions())
}

func TestSubscribe(t *testing.T) {
	c, tr := newTestClient(t, testConfig())
	tr.On("Execute", mock.Anything, http.MethodPost, "/v2/subscriptions", requestBody(t, func(req wire.SubscriptionRequest) bool {
		e := req.Subject.Entities[0]
		return e.IDPattern == ".*" && e.Type == "Room" &&
			req.Notification.HTTP.URL == "http://client:8666/notify" &&
			req.Notification.AttrsFormat == wire.FormatNormalized
	})).Return(created("sub-1"), nil).Once()

	var got []*room
	id, err := Subscribe(context.Background(), c, func(id string, r *room) {
		got = append(got, r)
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", id)
	assert.Equal(t, []string{"sub-1"}, c.Subscriptions())

	sub, ok := c.Subscription("sub-1")
	require.True(t, ok)
	assert.Equal(t, subscription.StateActive, sub.State())
	assert.True(t, sub.FullEntity)

	c.Dispatcher().Dispatch(notification("sub-1",
		`{"id":"r1","type":"Room","temperature":{"value":21.5,"type":"Number"}}`))

	require.Len(t, got, 1)
	assert.Equal(t, &room{ID: "r1", Type: "Room", Temperature: 21.5}, got[0])
}

func TestSubscribeOptions(t *testing.T) {
	c, tr := newTestClient(t, testConfig())
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.On("Execute", mock.Anything, http.MethodPost, "/v2/subscriptions", requestBody(t, func(req wire.SubscriptionRequest) bool {
		e := req.Subject.Entities[0]
		return e.ID == "r1" && e.IDPattern == "" && e.Type == "Office" &&
			req.Subject.Condition != nil && assert.ObjectsAreEqual([]string{"temperature"}, req.Subject.Condition.Attrs) &&
			assert.ObjectsAreEqual([]string{"temperature", "name"}, req.Notification.Attrs) &&
			req.Description == "office climate" &&
			req.Throttling == 5 &&
			req.Expires != nil && req.Expires.Equal(expires)
	})).Return(created("sub-2"), nil).Once()

	_, err := SubscribeChanges[room](context.Background(), c, func(string, map[string]any) {},
		ForEntity("r1"),
		ForType("Office"),
		OnChangeOf("temperature"),
		WithAttributes("temperature", "name"),
		WithDescription("office climate"),
		WithThrottling(5),
		WithExpiry(expires),
		TrackInstances(0),
	)
	require.NoError(t, err)

	sub, ok := c.Subscription("sub-2")
	require.True(t, ok)
	assert.False(t, sub.FullEntity)
	assert.True(t, sub.TracksInstances())
	assert.Equal(t, "office climate", sub.Description)
}

func TestSubscribeChangesAccumulates(t *testing.T) {
	c, tr := newTestClient(t, testConfig())
	tr.On("Execute", mock.Anything, http.MethodPost, "/v2/subscriptions", mock.Anything).
		Return(created("sub-3"), nil).Once()

	var changes []map[string]any
	_, err := SubscribeChanges[room](context.Background(), c, func(id string, changed map[string]any) {
		changes = append(changes, changed)
	}, TrackInstances(8))
	require.NoError(t, err)

	c.Dispatcher().Dispatch(notification("sub-3",
		`{"id":"r1","type":"Room","name":{"value":"Kitchen","type":"Text"}}`))
	c.Dispatcher().Dispatch(notification("sub-3",
		`{"id":"r1","type":"Room","temperature":{"value":19,"type":"Number"}}`))

	require.Len(t, changes, 2)
	assert.Equal(t, map[string]any{"name": "Kitchen"}, changes[0])
	assert.Equal(t, map[string]any{"temperature": float64(19)}, changes[1])

	sub, _ := c.Subscription("sub-3")
	obj, ok := sub.Instance("r1")
	require.True(t, ok)
	assert.Equal(t, &room{ID: "r1", Type: "Room", Name: "Kitchen", Temperature: 19}, obj)
}

func TestSubscribeDynamic(t *testing.T) {
	c, tr := newTestClient(t, testConfig())
	tr.On("Execute", mock.Anything, http.MethodPost, "/v2/subscriptions", requestBody(t, func(req wire.SubscriptionRequest) bool {
		return req.Subject.Entities[0].Type == ""
	})).Return(created("sub-4"), nil).Once()

	var got *model.DynamicEntity
	_, err := c.SubscribeDynamic(context.Background(), func(id string, e *model.DynamicEntity) {
		got = e
	})
	require.NoError(t, err)

	c.Dispatcher().Dispatch(notification("sub-4",
		`{"id":"s1","type":"Sensor","level":{"value":3,"type":"Number"}}`))

	require.NotNil(t, got)
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "Sensor", got.Type)
	assert.Equal(t, int64(3), got.Attributes["level"].Value.Interface())
}

func TestSubscribeErrors(t *testing.T) {
	t.Run("no public url", func(t *testing.T) {
		cfg := testConfig()
		cfg.Listener.PublicURL = ""
		c, _ := newTestClient(t, cfg)

		_, err := Subscribe(context.Background(), c, func(string, room) {})
		assert.ErrorIs(t, err, ErrNoPublicURL)
	})

	t.Run("broker rejects", func(t *testing.T) {
		c, tr := newTestClient(t, testConfig())
		rejected := &broker.TransportError{Method: http.MethodPost, Path: "/v2/subscriptions", StatusCode: http.StatusBadRequest}
		tr.On("Execute", mock.Anything, http.MethodPost, "/v2/subscriptions", mock.Anything).
			Return(nil, rejected).Once()

		_, err := Subscribe(context.Background(), c, func(string, room) {})
		var te *broker.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, http.StatusBadRequest, te.StatusCode)
		assert.Empty(t, c.Subscriptions())
	})

	t.Run("duplicate id rolls back", func(t *testing.T) {
		c, tr := newTestClient(t, testConfig())
		tr.On("Execute", mock.Anything, http.MethodPost, "/v2/subscriptions", mock.Anything).
			Return(created("same"), nil).Twice()
		tr.On("Execute", mock.Anything, http.MethodDelete, "/v2/subscriptions/same", []byte(nil)).
			Return(&broker.Response{StatusCode: http.StatusNoContent}, nil).Once()

		_, err := Subscribe(context.Background(), c, func(string, room) {})
		require.NoError(t, err)
		_, err = Subscribe(context.Background(), c, func(string, room) {})
		assert.ErrorIs(t, err, subscription.ErrDuplicateID)
		assert.Equal(t, []string{"same"}, c.Subscriptions())
	})
}

func TestUnsubscribe(t *testing.T) {
	c, tr := newTestClient(t, testConfig())
	tr.On("Execute", mock.Anything, http.MethodPost, "/v2/subscriptions", mock.Anything).
		Return(created("a"), nil).Once()
	tr.On("Execute", mock.Anything, http.MethodPost, "/v2/subscriptions", mock.Anything).
		Return(created("b"), nil).Once()
	tr.On("Execute", mock.Anything, http.MethodDelete, "/v2/subscriptions/a", []byte(nil)).
		Return(&broker.Response{StatusCode: http.StatusNoContent}, nil).Once()
	tr.On("Execute", mock.Anything, http.MethodDelete, "/v2/subscriptions/b", []byte(nil)).
		Return(nil, &broker.TransportError{StatusCode: http.StatusNotFound}).Once()

	ctx := context.Background()
	_, err := Subscribe(ctx, c, func(string, room) {})
	require.NoError(t, err)
	_, err = Subscribe(ctx, c, func(string, room) {})
	require.NoError(t, err)

	require.NoError(t, c.Unsubscribe(ctx, "a"))
	require.NoError(t, c.Unsubscribe(ctx, "b"), "a subscription gone on the broker is still removed")
	assert.Empty(t, c.Subscriptions())

	assert.ErrorIs(t, c.Unsubscribe(ctx, "a"), subscription.ErrSubscriptionNotFound)
}

func TestStopRemovesSubscriptions(t *testing.T) {
	c, tr := newTestClient(t, testConfig())
	ctx := context.Background()
	for _, id := range []string{"s1", "s2", "s3"} {
		tr.On("Execute", mock.Anything, http.MethodPost, "/v2/subscriptions", mock.Anything).
			Return(created(id), nil).Once()
		_, err := Subscribe(ctx, c, func(string, room) {})
		require.NoError(t, err)
	}

	failure := errors.New("connection reset")
	tr.On("Execute", mock.Anything, http.MethodDelete, "/v2/subscriptions/s1", []byte(nil)).
		Return(&broker.Response{StatusCode: http.StatusNoContent}, nil).Once()
	tr.On("Execute", mock.Anything, http.MethodDelete, "/v2/subscriptions/s2", []byte(nil)).
		Return(nil, failure).Once()
	tr.On("Execute", mock.Anything, http.MethodDelete, "/v2/subscriptions/s3", []byte(nil)).
		Return(&broker.Response{StatusCode: http.StatusNoContent}, nil).Once()

	err := c.Stop(ctx, true)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, []string{"s2"}, c.Subscriptions())
}

func TestStopWithoutRemoval(t *testing.T) {
	c, tr := newTestClient(t, testConfig())
	tr.On("Execute", mock.Anything, http.MethodPost, "/v2/subscriptions", mock.Anything).
		Return(created("keep"), nil).Once()
	_, err := Subscribe(context.Background(), c, func(string, room) {})
	require.NoError(t, err)

	require.NoError(t, c.Stop(context.Background(), false))
	assert.Equal(t, []string{"keep"}, c.Subscriptions())
}

func TestCreateAndGet(t *testing.T) {
	c, tr := newTestClient(t, testConfig())
	ctx := context.Background()

	tr.On("Execute", mock.Anything, http.MethodPost, "/v2/entities", mock.MatchedBy(func(body []byte) bool {
		doc, err := wire.Parse(body)
		if err != nil {
			return false
		}
		id, _, _ := doc.GetString(wire.KeyID)
		typ, _, _ := doc.GetString(wire.KeyType)
		_, hasName := doc["name"]
		return id == "r1" && typ == "Room" && hasName
	})).Return(&broker.Response{StatusCode: http.StatusCreated}, nil).Once()

	require.NoError(t, c.Create(ctx, &room{ID: "r1", Name: "Kitchen", Temperature: 21.5}))

	tr.On("Execute", mock.Anything, http.MethodGet, "/v2/entities/r1?type=Room", []byte(nil)).
		Return(&broker.Response{
			StatusCode: http.StatusOK,
			Body:       []byte(`{"id":"r1","type":"Room","name":{"value":"Kitchen","type":"Text"},"temperature":{"value":21.5,"type":"Number"}}`),
		}, nil).Once()

	r, err := Get[room](ctx, c, "r1", "Room")
	require.NoError(t, err)
	assert.Equal(t, room{ID: "r1", Type: "Room", Name: "Kitchen", Temperature: 21.5}, r)
}

func TestCreateRejectsMissingIdentity(t *testing.T) {
	c, _ := newTestClient(t, testConfig())
	err := c.Create(context.Background(), &room{})
	assert.Error(t, err)
}

func TestStartReceivesPushes(t *testing.T) {
	cfg := testConfig()
	cfg.Listener.PublicURL = ""
	rec := &log.Recorder{}
	tr := mocks.NewTransport(t)
	c, err := New(cfg, WithTransport(tr), WithProtocolLogger(rec))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Start(ctx))
	defer c.Stop(ctx, false)

	base := "http://" + c.Listener().Addr().String()
	tr.On("Execute", mock.Anything, http.MethodPost, "/v2/subscriptions", requestBody(t, func(req wire.SubscriptionRequest) bool {
		return req.Notification.HTTP.URL == base+"/notify"
	})).Return(created("live"), nil).Once()

	got := make(chan *room, 1)
	_, err = Subscribe(ctx, c, func(id string, r *room) { got <- r })
	require.NoError(t, err)

	resp, err := http.Post(base+"/notify", "application/json", bytes.NewReader(notification("live",
		`{"id":"r9","type":"Room","temperature":{"value":30,"type":"Number"}}`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	select {
	case r := <-got:
		assert.Equal(t, "r9", r.ID)
		assert.Equal(t, 30.0, r.Temperature)
	case <-time.After(5 * time.Second):
		t.Fatal("notification not delivered")
	}

	require.NoError(t, c.Stop(ctx, false))
	assert.False(t, c.Listener().Running())
	assert.False(t, c.Dispatcher().Running())
	assert.NotEmpty(t, rec.Events())
}
