package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "TRACKER_PORT", "DB_PATH", "ENABLE_BT", "ALLOWED_PUBKEYS",
		"RELAY_NAME", "RELAY_DESCRIPTION", "RELAY_PUBKEY", "RELAY_CONTACT",
		"DHT_BOOTSTRAP", "DHT_HOST",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), c)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "4000")
	t.Setenv("DB_PATH", "/tmp/custom.db")
	t.Setenv("ENABLE_BT", "false")
	t.Setenv("RELAY_NAME", "my relay")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, 4000, c.Port)
	require.Equal(t, "/tmp/custom.db", c.DBPath)
	require.False(t, c.EnableBT)
	require.Equal(t, "my relay", c.RelayName)
}

func TestLoadRejectsMalformedPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadSplitsBootstrapAndAllowedPubkeysLists(t *testing.T) {
	clearEnv(t)
	t.Setenv("DHT_BOOTSTRAP", "udp://a.example,udp://b.example  udp://c.example")
	t.Setenv("ALLOWED_PUBKEYS", "deadbeef, npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"udp://a.example", "udp://b.example", "udp://c.example"}, c.DHTBootstrap)
	require.Len(t, c.AllowedPubkeys, 2)
	require.Equal(t, "deadbeef", c.AllowedPubkeys[0])
	require.Equal(t, "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d", c.AllowedPubkeys[1])
}

func TestLoadRejectsMalformedNpub(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_PUBKEYS", "npub1notavalidbech32string")
	_, err := Load()
	require.Error(t, err)
}
