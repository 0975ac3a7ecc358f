package gcppubsub_test

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"stockledger/internal/domain"
	"stockledger/internal/event"
	"stockledger/internal/event/gcppubsub"
)

func newTestClient(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "stockledger-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestForwarder_PublishesThroughBus(t *testing.T) {
	srv, client := newTestClient(t)
	ctx := context.Background()

	topic, err := gcppubsub.OpenTopic(ctx, client, "ledger-events")
	require.NoError(t, err)
	defer topic.Stop()

	logger, _ := logtest.NewNullLogger()
	fwd := gcppubsub.NewForwarder(topic, logger)

	bus := event.NewBus(logger)
	bus.Subscribe(fwd.Handle, domain.EventBalanceStockUpdated)

	bus.Publish(ctx, domain.LedgerEvent{Type: domain.EventBalanceStockUpdated, Count: 3})
	bus.Publish(ctx, domain.LedgerEvent{Type: domain.EventLedgerChanged, Kind: domain.EventKindSale, Count: 1})

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "balance_stock.updated", msgs[0].Attributes["type"])

	var got domain.LedgerEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, 3, got.Count)
	assert.False(t, got.OccurredAt.IsZero())
}

func TestOpenTopic_ReusesExisting(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	first, err := gcppubsub.OpenTopic(ctx, client, "ledger-events")
	require.NoError(t, err)
	first.Stop()

	second, err := gcppubsub.OpenTopic(ctx, client, "ledger-events")
	require.NoError(t, err)
	second.Stop()
	assert.Equal(t, first.ID(), second.ID())
}

func TestForwarder_LogsFailure(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	// never created, so the publish is rejected by the server
	topic := client.Topic("missing")
	defer topic.Stop()

	logger, hook := logtest.NewNullLogger()
	fwd := gcppubsub.NewForwarder(topic, logger)
	fwd.Handle(ctx, domain.LedgerEvent{Type: domain.EventLedgerChanged})

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}
