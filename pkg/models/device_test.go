package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceKind(t *testing.T) {
	assert.Equal(t, KindRouter, ParseDeviceKind("router"))
	assert.Equal(t, KindRouter, ParseDeviceKind(" Router "))
	assert.Equal(t, KindSwitch, ParseDeviceKind("SWITCH"))
	assert.Equal(t, KindServer, ParseDeviceKind("server"))
	assert.Equal(t, KindWorkstation, ParseDeviceKind("workstation"))
	assert.Equal(t, KindUnknown, ParseDeviceKind("toaster"))
	assert.Equal(t, KindUnknown, ParseDeviceKind(""))
}

func TestParseDeviceStatus(t *testing.T) {
	assert.Equal(t, StatusOnline, ParseDeviceStatus("up"))
	assert.Equal(t, StatusOnline, ParseDeviceStatus("UP"))
	assert.Equal(t, StatusOnline, ParseDeviceStatus("online"))
	assert.Equal(t, StatusOffline, ParseDeviceStatus("down"))
	assert.Equal(t, StatusOffline, ParseDeviceStatus("Offline"))
	assert.Equal(t, StatusUnknown, ParseDeviceStatus("degraded"))
	assert.Equal(t, StatusUnknown, ParseDeviceStatus(""))
}

func TestDeviceIdentityKey(t *testing.T) {
	withID := &Device{ID: "abc", Address: "10.0.0.5"}
	assert.Equal(t, "abc", withID.IdentityKey(), "id should win over address")

	addressOnly := &Device{Address: "10.0.0.5"}
	assert.Equal(t, "10.0.0.5", addressOnly.IdentityKey())
}

func TestDeviceCloneIsDeep(t *testing.T) {
	seen := time.Unix(1710000000, 0).UTC()
	original := &Device{
		ID:       "abc",
		Address:  "10.0.0.5",
		Kind:     KindRouter,
		Status:   StatusOnline,
		LastSeen: &seen,
		Metrics:  map[string]interface{}{"responseTime": 12.5},
		Position: &Position{X: 1, Y: 2},
	}

	clone := original.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, original, clone)

	clone.Metrics["responseTime"] = 99.0
	clone.Position.X = 500
	*clone.LastSeen = seen.Add(time.Hour)

	assert.InEpsilon(t, 12.5, original.Metrics["responseTime"], 1e-9,
		"mutating the clone's metrics must not touch the original")
	assert.InEpsilon(t, 1.0, original.Position.X, 1e-9)
	assert.Equal(t, seen, *original.LastSeen)
}

func TestCloneNil(t *testing.T) {
	var d *Device

	assert.Nil(t, d.Clone())
}

func TestParseLayoutStrategy(t *testing.T) {
	s, ok := ParseLayoutStrategy("Hierarchical")
	require.True(t, ok)
	assert.Equal(t, LayoutHierarchical, s)

	_, ok = ParseLayoutStrategy("spiral")
	assert.False(t, ok)
}
