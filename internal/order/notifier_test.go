package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkglogger "github.com/retail-aggregator/order-service/pkg/logger"
)

type fakePublisher struct {
	published []OutboxEvent
	fail      bool
}

func (f *fakePublisher) Publish(topic, key string, body []byte) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, OutboxEvent{Topic: topic, EventID: key, Payload: body})
	return nil
}

func TestOutboxDispatcher(t *testing.T) {
	db := setupTestDB(t)
	fx := seedCatalog(t, db)
	storage := NewStorage(db)
	log := pkglogger.NewLogger("error", &NotifierLogHook{})

	placeOne := func(t *testing.T, userID uint) uint {
		basket, err := storage.GetOrCreateBasket(userID)
		require.NoError(t, err)
		require.NoError(t, storage.AddOrderItem(basket.ID, fx.phone.ID, 1))
		contact := seedContact(t, db, userID)
		require.NoError(t, storage.PlaceOrder(userID, basket.ID, contact.ID, fmt.Sprintf("evt-%d", userID)))
		return basket.ID
	}

	t.Run("publishes pending events and marks them sent", func(t *testing.T) {
		orderID := placeOne(t, 1)

		publisher := &fakePublisher{}
		dispatcher := NewOutboxDispatcher(storage, publisher, log)
		dispatcher.DispatchPending()

		require.Len(t, publisher.published, 1)
		assert.Equal(t, TopicOrderCreated, publisher.published[0].Topic)

		var payload OrderCreatedPayload
		require.NoError(t, json.Unmarshal(publisher.published[0].Payload, &payload))
		assert.Equal(t, orderID, payload.OrderID)
		assert.Equal(t, uint(1), payload.UserID)

		pending, err := storage.FetchPendingEvents(10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		// a second pass finds nothing
		dispatcher.DispatchPending()
		assert.Len(t, publisher.published, 1)
	})

	t.Run("failed publish leaves the event pending", func(t *testing.T) {
		placeOne(t, 2)

		publisher := &fakePublisher{fail: true}
		dispatcher := NewOutboxDispatcher(storage, publisher, log)
		dispatcher.DispatchPending()

		pending, err := storage.FetchPendingEvents(10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Nil(t, pending[0].SentAt)

		// once the broker is back the event goes out
		publisher.fail = false
		dispatcher.DispatchPending()

		pending, err = storage.FetchPendingEvents(10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}
