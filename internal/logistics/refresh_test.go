package logistics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/haulnet/internal/world"
)

func TestRefreshRoundRobin(t *testing.T) {
	s := NewState()
	za, zb := world.ZoneID("A"), world.ZoneID("B")
	require.NoError(t, s.RegisterProducer(&Producer{ID: "pa", Zone: za, Energy: Energy{Current: 1, Capacity: 100}}))
	require.NoError(t, s.RegisterProducer(&Producer{ID: "pb", Zone: zb, Energy: Energy{Current: 1, Capacity: 100}}))
	sensor := newFakeSensor(zb, za)
	sensor.energy["pa"] = 40
	sensor.energy["pb"] = 60
	r := NewRefresher(s, sensor)

	assert.Equal(t, za, r.Refresh(0))
	assert.Equal(t, 40, s.Producers["pa"].Energy.Current)
	assert.Equal(t, 1, s.Producers["pb"].Energy.Current)

	assert.Equal(t, zb, r.Refresh(1))
	assert.Equal(t, 60, s.Producers["pb"].Energy.Current)

	assert.Equal(t, za, r.Refresh(2))
}

func TestRefreshMissingObjectFallsBackToZero(t *testing.T) {
	s := NewState()
	require.NoError(t, s.RegisterConsumer(&Consumer{ID: "gone", Zone: testZone, Energy: Energy{Current: 70, Capacity: 100}}))

	NewRefresher(s, newFakeSensor(testZone)).Refresh(0)

	assert.Zero(t, s.Consumers["gone"].Energy.Current)
}

func TestRefreshClampsToCapacity(t *testing.T) {
	s := NewState()
	require.NoError(t, s.RegisterConsumer(&Consumer{ID: "c", Zone: testZone, Energy: Energy{Capacity: 100}}))
	sensor := newFakeSensor(testZone)
	sensor.energy["c"] = 250

	NewRefresher(s, sensor).Refresh(0)

	assert.Equal(t, 100, s.Consumers["c"].Energy.Current)
}

func TestRefreshPrunesUnobservedZones(t *testing.T) {
	s := NewState()
	lost := world.ZoneID("lost")
	require.NoError(t, s.RegisterProducer(&Producer{ID: "p", Zone: lost, Energy: Energy{Capacity: 10}}))
	require.NoError(t, s.RegisterConsumer(&Consumer{ID: "c", Zone: lost, Energy: Energy{Capacity: 10}}))
	require.NoError(t, s.RegisterCarrier(&Carrier{ID: "h", Zone: lost, Energy: Energy{Capacity: 10}}))
	require.NoError(t, s.RegisterConsumer(&Consumer{ID: "keep", Zone: testZone, Energy: Energy{Capacity: 10}}))
	s.HaulingDeficit[lost] = Deficit{Demand: 1}

	NewRefresher(s, newFakeSensor(testZone)).Refresh(0)

	assert.NotContains(t, s.Producers, EntityID("p"))
	assert.NotContains(t, s.Consumers, EntityID("c"))
	assert.Contains(t, s.Consumers, EntityID("keep"))
	assert.Contains(t, s.Carriers, EntityID("h"))
	assert.NotContains(t, s.HaulingDeficit, lost)
}

func TestRefreshNothingObserved(t *testing.T) {
	s := NewState()
	require.NoError(t, s.RegisterProducer(&Producer{ID: "p", Zone: testZone, Energy: Energy{Current: 5, Capacity: 10}}))
	sensor := newFakeSensor()

	assert.Equal(t, world.ZoneID(""), NewRefresher(s, sensor).Refresh(7))
	assert.Contains(t, s.Producers, EntityID("p"))
	assert.Zero(t, sensor.reads)
}

func TestRefreshLeavesCarriersAndLeases(t *testing.T) {
	s, r := leaseFixture(t)
	require.NoError(t, s.RegisterCarrier(carrier("h", at(0, 0), 20, 50)))
	id, _ := r.CreateDemandLease("w1", 10)
	sensor := newFakeSensor(testZone)
	sensor.energy["src"] = 100

	NewRefresher(s, sensor).Refresh(0)

	assert.Equal(t, 20, s.Carriers["h"].Energy.Current)
	require.Len(t, r.ListLeases(testZone), 1)
	assert.Equal(t, id, r.ListLeases(testZone)[0].ID)
}

func TestRefreshPruneDropsLeasesOnRemovedSources(t *testing.T) {
	s, r := leaseFixture(t)
	id, err := r.CreateDemandLease("w1", 10)
	require.NoError(t, err)
	_, err = r.BindLeaseToSource(testZone, id, "src")
	require.NoError(t, err)
	unbound, err := r.CreateDemandLease("w2", 10)
	require.NoError(t, err)

	// The source's zone has left view; the deregistration cascade takes its lease along.
	NewRefresher(s, newFakeSensor("elsewhere")).Refresh(0)

	assert.NotContains(t, s.Producers, EntityID("src"))
	leases := r.ListLeases(testZone)
	require.Len(t, leases, 1)
	assert.Equal(t, unbound, leases[0].ID)
	assert.Contains(t, s.Workers, EntityID("w1"))
}
