package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netatlas/netatlas/pkg/models"
)

func device(id, address string, kind models.DeviceKind, status models.DeviceStatus) models.Device {
	return models.Device{ID: id, Address: address, Kind: kind, Status: status}
}

func edgeBetween(t *testing.T, edges []models.Edge, a, b string) models.Edge {
	t.Helper()

	id := EdgeID(a, b)
	for _, e := range edges {
		if e.ID == id {
			return e
		}
	}

	t.Fatalf("no edge between %s and %s", a, b)

	return models.Edge{}
}

func TestInferStarAroundRouter(t *testing.T) {
	devices := []models.Device{
		device("r1", "192.168.1.1", models.KindRouter, models.StatusOnline),
		device("w1", "192.168.1.10", models.KindWorkstation, models.StatusOnline),
		device("s1", "192.168.1.20", models.KindServer, models.StatusOnline),
	}

	edges := Infer(devices)
	require.Len(t, edges, 2)

	for _, e := range edges {
		assert.Equal(t, models.LinkGateway, e.LinkType)
		assert.Equal(t, "r1", e.Target)
		assert.Equal(t, models.EdgeActive, e.Status)
		assert.Equal(t, 100, e.Bandwidth)
	}
}

func TestInferGatewayElection(t *testing.T) {
	t.Run("router beats anchor address", func(t *testing.T) {
		edges := Infer([]models.Device{
			device("a", "10.0.0.1", models.KindWorkstation, models.StatusOnline),
			device("b", "10.0.0.50", models.KindRouter, models.StatusOnline),
		})

		require.Len(t, edges, 1)
		assert.Equal(t, "b", edges[0].Target)
	})

	t.Run("smallest address among routers", func(t *testing.T) {
		edges := Infer([]models.Device{
			device("a", "10.0.0.40", models.KindRouter, models.StatusOnline),
			device("b", "10.0.0.30", models.KindRouter, models.StatusOnline),
			device("c", "10.0.0.7", models.KindWorkstation, models.StatusOnline),
		})

		require.Len(t, edges, 2)
		for _, e := range edges {
			assert.Equal(t, "b", e.Target)
		}
	})

	t.Run("dot-254 anchor without router", func(t *testing.T) {
		edges := Infer([]models.Device{
			device("a", "10.0.0.254", models.KindServer, models.StatusOnline),
			device("b", "10.0.0.17", models.KindWorkstation, models.StatusOnline),
		})

		require.Len(t, edges, 1)
		assert.Equal(t, "a", edges[0].Target)
		assert.Equal(t, models.LinkGateway, edges[0].LinkType)
	})
}

func TestInferMeshForSmallGatewaylessGroups(t *testing.T) {
	devices := []models.Device{
		device("a", "172.16.4.10", models.KindServer, models.StatusOnline),
		device("b", "172.16.4.11", models.KindServer, models.StatusOnline),
		device("c", "172.16.4.12", models.KindServer, models.StatusOnline),
	}

	edges := Infer(devices)
	require.Len(t, edges, 3)

	for _, e := range edges {
		assert.Equal(t, models.LinkMesh, e.LinkType)
	}

	edgeBetween(t, edges, "a", "b")
	edgeBetween(t, edges, "a", "c")
	edgeBetween(t, edges, "b", "c")
}

func TestInferLargeGatewaylessGroupGetsNoEdges(t *testing.T) {
	devices := []models.Device{
		device("a", "172.16.4.10", models.KindServer, models.StatusOnline),
		device("b", "172.16.4.11", models.KindServer, models.StatusOnline),
		device("c", "172.16.4.12", models.KindServer, models.StatusOnline),
		device("d", "172.16.4.13", models.KindServer, models.StatusOnline),
		device("e", "172.16.4.14", models.KindServer, models.StatusOnline),
	}

	assert.Empty(t, Infer(devices))
}

func TestInferSkipsUnaddressedDevices(t *testing.T) {
	edges := Infer([]models.Device{
		device("a", "fe80::1", models.KindRouter, models.StatusOnline),
		device("b", "not-an-ip", models.KindRouter, models.StatusOnline),
		device("c", "", models.KindRouter, models.StatusOnline),
		device("d", "10.0.0.5", models.KindServer, models.StatusOnline),
	})

	assert.Empty(t, edges)
}

func TestInferEdgeStatus(t *testing.T) {
	edges := Infer([]models.Device{
		device("r1", "10.0.0.1", models.KindRouter, models.StatusOnline),
		device("w1", "10.0.0.10", models.KindWorkstation, models.StatusOffline),
		device("w2", "10.0.0.11", models.KindWorkstation, models.StatusOnline),
	})

	require.Len(t, edges, 2)
	assert.Equal(t, models.EdgeInactive, edgeBetween(t, edges, "w1", "r1").Status)
	assert.Equal(t, models.EdgeActive, edgeBetween(t, edges, "w2", "r1").Status)
}

func TestInferBandwidthIsMinimumCapacity(t *testing.T) {
	edges := Infer([]models.Device{
		device("r1", "10.0.0.1", models.KindRouter, models.StatusOnline),
		device("sw", "10.0.0.2", models.KindSwitch, models.StatusOnline),
		device("srv", "10.0.0.3", models.KindServer, models.StatusOnline),
		device("x", "10.0.0.4", models.KindUnknown, models.StatusOnline),
	})

	assert.Equal(t, 1000, edgeBetween(t, edges, "sw", "r1").Bandwidth)
	assert.Equal(t, 100, edgeBetween(t, edges, "srv", "r1").Bandwidth)
	assert.Equal(t, 10, edgeBetween(t, edges, "x", "r1").Bandwidth)
}

func TestInferBackboneChainsSubnetGateways(t *testing.T) {
	devices := []models.Device{
		// 10.0.1.0/24: router gateway.
		device("r1", "10.0.1.5", models.KindRouter, models.StatusOnline),
		device("w1", "10.0.1.10", models.KindWorkstation, models.StatusOnline),
		// 10.0.2.0/24: anchor-address gateway.
		device("g2", "10.0.2.254", models.KindSwitch, models.StatusOnline),
		device("w2", "10.0.2.10", models.KindWorkstation, models.StatusOnline),
		// 10.0.3.0/24: gateway-less mesh, contributes no backbone member.
		device("m1", "10.0.3.10", models.KindServer, models.StatusOnline),
		device("m2", "10.0.3.11", models.KindServer, models.StatusOnline),
	}

	edges := Infer(devices)

	var backbone []models.Edge
	for _, e := range edges {
		if e.LinkType == models.LinkBackbone {
			backbone = append(backbone, e)
		}
	}

	require.Len(t, backbone, 1)
	assert.Equal(t, "r1", backbone[0].Source)
	assert.Equal(t, "g2", backbone[0].Target)
	assert.Equal(t, 1000, backbone[0].Bandwidth)
}

func TestInferSingleSubnetHasNoBackbone(t *testing.T) {
	edges := Infer([]models.Device{
		device("r1", "192.168.1.1", models.KindRouter, models.StatusOnline),
		device("w1", "192.168.1.10", models.KindWorkstation, models.StatusOnline),
	})

	for _, e := range edges {
		assert.NotEqual(t, models.LinkBackbone, e.LinkType)
	}
}

func TestInferIsDeterministic(t *testing.T) {
	devices := []models.Device{
		device("r1", "10.0.1.5", models.KindRouter, models.StatusOnline),
		device("w1", "10.0.1.10", models.KindWorkstation, models.StatusOnline),
		device("g2", "10.0.2.254", models.KindSwitch, models.StatusOnline),
		device("w2", "10.0.2.10", models.KindWorkstation, models.StatusOffline),
	}

	reversed := make([]models.Device, len(devices))
	for i := range devices {
		reversed[len(devices)-1-i] = devices[i]
	}

	first := Infer(devices)
	second := Infer(reversed)

	require.Equal(t, first, second)
}

func TestInferEmitsNoDuplicateEdges(t *testing.T) {
	devices := []models.Device{
		device("a", "172.16.4.10", models.KindServer, models.StatusOnline),
		device("b", "172.16.4.11", models.KindServer, models.StatusOnline),
		device("c", "172.16.4.12", models.KindServer, models.StatusOnline),
		device("d", "172.16.4.13", models.KindServer, models.StatusOnline),
	}

	edges := Infer(devices)
	require.Len(t, edges, 6)

	seen := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		_, dup := seen[e.ID]
		assert.False(t, dup, "duplicate edge id %s", e.ID)
		seen[e.ID] = struct{}{}
	}
}

func TestEdgeIDIsOrderInsensitive(t *testing.T) {
	assert.Equal(t, EdgeID("a", "b"), EdgeID("b", "a"))
	assert.NotEqual(t, EdgeID("a", "b"), EdgeID("a", "c"))
	assert.Len(t, EdgeID("a", "b"), 16)
}

func TestSimulatedLinkIsStable(t *testing.T) {
	id := EdgeID("a", "b")

	lat1, util1 := simulatedLink(id)
	lat2, util2 := simulatedLink(id)

	assert.Equal(t, lat1, lat2)
	assert.Equal(t, util1, util2)
	assert.GreaterOrEqual(t, lat1, 1.0)
	assert.LessOrEqual(t, lat1, 20.0)
	assert.GreaterOrEqual(t, util1, 0.0)
	assert.LessOrEqual(t, util1, 1.0)
}

func TestGroupBySubnet(t *testing.T) {
	groups := GroupBySubnet([]models.Device{
		device("a", "10.0.2.4", models.KindServer, models.StatusOnline),
		device("b", "10.0.1.9", models.KindServer, models.StatusOnline),
		device("c", "10.0.1.3", models.KindServer, models.StatusOnline),
		device("d", "bogus", models.KindServer, models.StatusOnline),
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "10.0.1", groups[0].Key)
	assert.Equal(t, "10.0.2", groups[1].Key)
	require.Len(t, groups[0].Devices, 2)
	assert.Equal(t, "10.0.1.3", groups[0].Devices[0].Address)
	assert.Equal(t, "10.0.1.9", groups[0].Devices[1].Address)
}
