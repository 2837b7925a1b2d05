package broker_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ngsi-go/ngsi/pkg/broker"
	"github.com/ngsi-go/ngsi/pkg/broker/mocks"
	"github.com/ngsi-go/ngsi/pkg/wire"
)

func subscriptionRequest() *wire.SubscriptionRequest {
	return &wire.SubscriptionRequest{
		Description: "rooms",
		Subject: wire.SubscriptionSubject{
			Entities: []wire.EntitySelector{{IDPattern: ".*", Type: "Room"}},
		},
		Notification: wire.NotificationSettings{
			HTTP: wire.HTTPEndpoint{URL: "http://client:8666/notify"},
		},
	}
}

func TestCreateSubscription(t *testing.T) {
	tests := []struct {
		name     string
		location string
		want     string
		wantErr  error
	}{
		{"relative", "/v2/subscriptions/57458eb60962ef754e7c0998", "57458eb60962ef754e7c0998", nil},
		{"absolute", "http://orion:1026/v2/subscriptions/abc", "abc", nil},
		{"missing", "", "", broker.ErrNoLocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := mocks.NewTransport(t)
			header := http.Header{}
			if tt.location != "" {
				header.Set("Location", tt.location)
			}
			tr.On("Execute", mock.Anything, http.MethodPost, "/v2/subscriptions", mock.MatchedBy(func(b []byte) bool {
				return len(b) > 0
			})).Return(&broker.Response{StatusCode: http.StatusCreated, Header: header}, nil)

			id, err := broker.NewClient(tr).CreateSubscription(context.Background(), subscriptionRequest())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestCreateSubscriptionInvalidRequest(t *testing.T) {
	tr := mocks.NewTransport(t)
	_, err := broker.NewClient(tr).CreateSubscription(context.Background(), &wire.SubscriptionRequest{})
	assert.Error(t, err)
	tr.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteSubscription(t *testing.T) {
	tr := mocks.NewTransport(t)
	tr.On("Execute", mock.Anything, http.MethodDelete, "/v2/subscriptions/a%2Fb", []byte(nil)).
		Return(&broker.Response{StatusCode: http.StatusNoContent}, nil)

	require.NoError(t, broker.NewClient(tr).DeleteSubscription(context.Background(), "a/b"))
}

func TestDeleteSubscriptionPropagatesTransportError(t *testing.T) {
	tr := mocks.NewTransport(t)
	te := &broker.TransportError{Method: http.MethodDelete, Path: "/v2/subscriptions/x", StatusCode: http.StatusNotFound}
	tr.On("Execute", mock.Anything, http.MethodDelete, "/v2/subscriptions/x", []byte(nil)).Return(nil, te)

	err := broker.NewClient(tr).DeleteSubscription(context.Background(), "x")
	assert.True(t, errors.Is(err, te))
	assert.True(t, broker.IsNotFound(err))
}

func TestCreateEntity(t *testing.T) {
	doc := wire.Document{}
	doc.SetString(wire.KeyID, "r1")
	doc.SetString(wire.KeyType, "Room")
	want, err := doc.Marshal()
	require.NoError(t, err)

	tr := mocks.NewTransport(t)
	tr.On("Execute", mock.Anything, http.MethodPost, "/v2/entities", want).
		Return(&broker.Response{StatusCode: http.StatusCreated}, nil)

	require.NoError(t, broker.NewClient(tr).CreateEntity(context.Background(), doc))
}

func TestGetEntity(t *testing.T) {
	tr := mocks.NewTransport(t)
	tr.On("Execute", mock.Anything, http.MethodGet, "/v2/entities/r1?type=Room", []byte(nil)).
		Return(&broker.Response{StatusCode: http.StatusOK, Body: []byte(`{"id":"r1","type":"Room","temperature":{"value":21,"type":"Number"}}`)}, nil)
	tr.On("Execute", mock.Anything, http.MethodGet, "/v2/entities/r2", []byte(nil)).
		Return(&broker.Response{StatusCode: http.StatusOK, Body: []byte(`not json`)}, nil)

	c := broker.NewClient(tr)

	doc, err := c.GetEntity(context.Background(), "r1", "Room")
	require.NoError(t, err)
	id, _, _ := doc.GetString(wire.KeyID)
	assert.Equal(t, "r1", id)
	assert.Equal(t, []string{"temperature"}, doc.Attributes())

	_, err = c.GetEntity(context.Background(), "r2", "")
	assert.Error(t, err)
}
