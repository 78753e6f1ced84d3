//go:build integration

package kafka_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"

	"frost/internal/platform/kafka"
	"frost/pkg/testutil/containers"
)

func TestEnsureTopicIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	redpanda := containers.GetManager().GetRedpanda(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := kafka.New(ctx, []string{redpanda.Broker}, logger)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, kafka.EnsureTopic(ctx, client, "frost.ensure-topic"))
	require.NoError(t, kafka.EnsureTopic(ctx, client, "frost.ensure-topic"))

	topics, err := kadm.NewClient(client).ListTopics(ctx, "frost.ensure-topic")
	require.NoError(t, err)
	require.True(t, topics.Has("frost.ensure-topic"))
}
