package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/starfeed/backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		project, kind, name, want string
	}{
		{"proj", "subscriptions", "moderation-sub", "projects/proj/subscriptions/moderation-sub"},
		{"proj", "subscriptions", "projects/other/subscriptions/x", "projects/other/subscriptions/x"},
		{"proj", "topics", " ledger ", "projects/proj/topics/ledger"},
		{"proj", "topics", "", ""},
		{"", "topics", "ledger", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, resourceName(tc.project, tc.kind, tc.name), "%s %s", tc.kind, tc.name)
	}
}

func TestSubscriptionsSkipsBlank(t *testing.T) {
	require.Empty(t, (&Client{}).subscriptions())
	c := &Client{cfg: config.PubSubConfig{ModerationSubscription: " mod-sub "}}
	require.Equal(t, []string{"mod-sub"}, c.subscriptions())
}

func TestNotFound(t *testing.T) {
	require.NoError(t, notFound("topic", "t", nil))
	require.ErrorContains(t, notFound("topic", "t", status.Error(codes.NotFound, "gone")), `topic "t" does not exist`)
	other := errors.New("deadline")
	require.ErrorIs(t, notFound("topic", "t", other), other)
}

func TestNilClient(t *testing.T) {
	var c *Client
	require.Nil(t, c.Publisher("topic"))
	require.Nil(t, c.Subscription("sub"))
	require.ErrorIs(t, c.Ping(context.Background()), ErrNotInitialized)
	require.NoError(t, c.Close())
}

func TestCredentials(t *testing.T) {
	require.Empty(t, credentials(config.GCPConfig{ProjectID: "proj"}))
	require.Len(t, credentials(config.GCPConfig{ApplicationCredentials: "/etc/gcp/key.json"}), 1)
	require.Len(t, credentials(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/etc/gcp/key.json"}), 1)
	require.Empty(t, credentials(config.GCPConfig{CredentialsJSON: "  "}))
}
