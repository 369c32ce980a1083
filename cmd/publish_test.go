package cmd

import (
	"testing"

	"github.com/streamfold/wan-publisher/internal/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvertisedAddress(t *testing.T) {
	got, err := advertisedAddress("127.0.0.1:5000", "")
	require.NoError(t, err)
	assert.Equal(t, address.Address{Host: "127.0.0.1", Port: 5000}, got)

	got, err = advertisedAddress(":5000", "10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, address.Address{Host: "10.1.2.3", Port: 5000}, got)

	got, err = advertisedAddress(":5000", "10.1.2.3:6789")
	require.NoError(t, err)
	assert.Equal(t, address.Address{Host: "10.1.2.3", Port: 6789}, got)

	_, err = advertisedAddress("localhost", "")
	assert.Error(t, err)
}

func TestGetNames(t *testing.T) {
	t.Setenv("WANPUB_PUBLISHERS", "eu-west, us-east,,ap-south")
	t.Setenv("WANPUB_MAPS", "orders users")

	assert.Equal(t, []string{"eu-west", "us-east", "ap-south"}, getNames("publishers"))
	assert.Equal(t, []string{"orders", "users"}, getNames("maps"))
}

func TestParseEndpoint(t *testing.T) {
	u, err := parseEndpoint("localhost:5317")
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "5317", u.Port())

	u, err = parseEndpoint("https://collector:4317")
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
}
