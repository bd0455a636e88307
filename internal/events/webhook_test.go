package events_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lapak-id/backend-lapak/internal/events"
)

func TestWebhookSinkDeliversEvent(t *testing.T) {
	var received events.Event
	var topicHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		topicHeader = r.Header.Get("X-Event-Topic")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	sink := events.NewWebhookSink(srv.URL, time.Second)
	ev := events.Event{
		ID:          uuid.New(),
		Topic:       events.TopicOrderCreated,
		AggregateID: uuid.New(),
		Payload:     json.RawMessage(`{"orderId":"abc"}`),
		OccurredAt:  time.Now().UTC(),
	}

	require.NoError(t, sink.Deliver(context.Background(), ev))
	require.Equal(t, ev.ID, received.ID)
	require.Equal(t, events.TopicOrderCreated, topicHeader)
}

func TestWebhookSinkErrorsOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	sink := events.NewWebhookSink(srv.URL, time.Second)
	err := sink.Deliver(context.Background(), events.Event{ID: uuid.New(), Topic: "t"})
	require.Error(t, err)
}

func TestWebhookSinkDisabledWithoutURL(t *testing.T) {
	sink := events.NewWebhookSink("", time.Second)
	require.NoError(t, sink.Deliver(context.Background(), events.Event{ID: uuid.New()}))
}
