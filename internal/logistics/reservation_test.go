package logistics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/haulnet/internal/world"
)

const testZone = world.ZoneID("Z0_0")

func leaseFixture(t *testing.T) (*State, *Reservations) {
	t.Helper()
	s := NewState()
	require.NoError(t, s.RegisterProducer(&Producer{
		ID:     "src",
		Energy: Energy{Current: 100, Capacity: 3000},
		Zone:   testZone,
		Kind:   "source",
	}))
	require.NoError(t, s.RegisterWorker(&Worker{ID: "w1", Energy: Energy{Capacity: 50}, Zone: testZone}))
	require.NoError(t, s.RegisterWorker(&Worker{ID: "w2", Energy: Energy{Capacity: 50}, Zone: testZone}))
	return s, NewReservations(s, nil)
}

func TestLeaseLifecycleSuccess(t *testing.T) {
	s, r := leaseFixture(t)
	w := &scriptedWithdrawer{}
	r.Withdrawer = w

	id, err := r.CreateDemandLease("w1", 30)
	require.NoError(t, err)
	require.Len(t, r.ListLeases(testZone), 1)
	assert.False(t, r.ListLeases(testZone)[0].Bound())

	bound, err := r.BindLeaseToSource(testZone, id, "src")
	require.NoError(t, err)
	assert.Equal(t, 30, bound)
	assert.Equal(t, 70, s.Unreserved("src"))

	out, err := r.ConsumeLease(testZone, id)
	require.NoError(t, err)
	assert.Equal(t, WithdrawOK, out.Result)
	assert.Equal(t, 30, out.Amount)
	assert.Equal(t, 1, w.calls)

	assert.Empty(t, r.ListLeases(testZone))
	assert.Equal(t, 70, s.Producers["src"].Energy.Current)
	assert.Equal(t, 70, s.Unreserved("src"))
	assert.Empty(t, s.Producers["src"].Reservations)
	assert.Equal(t, 30, s.Workers["w1"].Energy.Current)
}

func TestLeaseIsSingleShotWhateverTheOutcome(t *testing.T) {
	for _, result := range []WithdrawResult{WithdrawOK, WithdrawNotEnough, WithdrawFull} {
		t.Run(result.String(), func(t *testing.T) {
			_, r := leaseFixture(t)
			r.Withdrawer = &scriptedWithdrawer{result: result}

			id, err := r.CreateDemandLease("w1", 20)
			require.NoError(t, err)
			_, err = r.BindLeaseToSource(testZone, id, "src")
			require.NoError(t, err)

			out, err := r.ConsumeLease(testZone, id)
			require.NoError(t, err)
			assert.Equal(t, result, out.Result)
			assert.Empty(t, r.ListLeases(testZone))

			_, err = r.ConsumeLease(testZone, id)
			assert.ErrorIs(t, err, ErrUnknownLease)
		})
	}
}

func TestConsumeUnboundLease(t *testing.T) {
	_, r := leaseFixture(t)

	id, err := r.CreateDemandLease("w1", 20)
	require.NoError(t, err)

	out, err := r.ConsumeLease(testZone, id)
	require.NoError(t, err)
	assert.Equal(t, WithdrawUnbound, out.Result)
	assert.Empty(t, r.ListLeases(testZone))
}

func TestConsumeSourceVanished(t *testing.T) {
	s, r := leaseFixture(t)
	require.NoError(t, s.RegisterStore(store("box", at(1, 1), 40, 100)))

	id, err := r.CreateDemandLease("w1", 20)
	require.NoError(t, err)
	_, err = r.BindLeaseToSource(testZone, id, "box")
	require.NoError(t, err)

	// Bypass the cascade to simulate a source that disappeared mid-turn.
	delete(s.Stores, "box")

	out, err := r.ConsumeLease(testZone, id)
	require.NoError(t, err)
	assert.Equal(t, WithdrawSourceMissing, out.Result)
	assert.Empty(t, r.ListLeases(testZone))
}

func TestConsumeRequesterVanished(t *testing.T) {
	s, r := leaseFixture(t)
	w := &scriptedWithdrawer{}
	r.Withdrawer = w

	id, err := r.CreateDemandLease("w1", 20)
	require.NoError(t, err)
	_, err = r.BindLeaseToSource(testZone, id, "src")
	require.NoError(t, err)

	delete(s.Workers, "w1")

	out, err := r.ConsumeLease(testZone, id)
	require.NoError(t, err)
	assert.Equal(t, WithdrawRequesterMissing, out.Result)
	assert.Equal(t, "requester_missing", out.Result.String())
	assert.Zero(t, w.calls)
	assert.Equal(t, 100, s.Producers["src"].Energy.Current)
	assert.Empty(t, r.ListLeases(testZone))
	assert.Empty(t, s.Producers["src"].Reservations)
}

func TestConsumeClampsToRequesterRoom(t *testing.T) {
	s, r := leaseFixture(t)
	s.Workers["w1"].Energy.Current = 45

	id, _ := r.CreateDemandLease("w1", 30)
	_, err := r.BindLeaseToSource(testZone, id, "src")
	require.NoError(t, err)

	out, err := r.ConsumeLease(testZone, id)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Amount)
	assert.Equal(t, 50, s.Workers["w1"].Energy.Current)
	assert.Equal(t, 95, s.Producers["src"].Energy.Current)
}

func TestConsumeFullRequester(t *testing.T) {
	s, r := leaseFixture(t)
	s.Workers["w1"].Energy.Current = 50

	id, _ := r.CreateDemandLease("w1", 30)
	_, err := r.BindLeaseToSource(testZone, id, "src")
	require.NoError(t, err)

	out, err := r.ConsumeLease(testZone, id)
	require.NoError(t, err)
	assert.Equal(t, WithdrawFull, out.Result)
	assert.Zero(t, out.Amount)
	assert.Equal(t, 100, s.Producers["src"].Energy.Current)
}

func TestBindNeverOversubscribes(t *testing.T) {
	s, r := leaseFixture(t)

	first, _ := r.CreateDemandLease("w1", 80)
	second, _ := r.CreateDemandLease("w2", 80)

	got, err := r.BindLeaseToSource(testZone, first, "src")
	require.NoError(t, err)
	assert.Equal(t, 80, got)

	// Only 20 units remain unreserved: the second bind is clamped.
	got, err = r.BindLeaseToSource(testZone, second, "src")
	require.NoError(t, err)
	assert.Equal(t, 20, got)
	assert.LessOrEqual(t, s.Reserved("src"), s.Producers["src"].Energy.Current)

	third, _ := r.CreateDemandLease("w1", 10)
	_, err = r.BindLeaseToSource(testZone, third, "src")
	assert.ErrorIs(t, err, ErrOversubscribed)
	assert.Equal(t, 100, s.Reserved("src"))
}

func TestBindErrors(t *testing.T) {
	s, r := leaseFixture(t)
	require.NoError(t, s.RegisterStore(&Store{
		ID:      "sink-only",
		Actions: Actions{Deliver: true},
		Energy:  Energy{Current: 10, Capacity: 100},
		Zone:    testZone,
	}))

	_, err := r.BindLeaseToSource(testZone, "nope", "src")
	assert.ErrorIs(t, err, ErrUnknownLease)

	id, _ := r.CreateDemandLease("w1", 10)
	_, err = r.BindLeaseToSource(testZone, id, "missing")
	assert.ErrorIs(t, err, ErrUnknownSource)

	_, err = r.BindLeaseToSource(testZone, id, "sink-only")
	assert.ErrorIs(t, err, ErrUnknownSource)

	_, err = r.BindLeaseToSource(testZone, id, "src")
	require.NoError(t, err)
	_, err = r.BindLeaseToSource(testZone, id, "src")
	assert.ErrorIs(t, err, ErrLeaseBound)
}

func TestCreateLeaseErrors(t *testing.T) {
	_, r := leaseFixture(t)

	_, err := r.CreateDemandLease("ghost", 10)
	assert.ErrorIs(t, err, ErrUnknownRequester)

	_, err = r.CreateDemandLease("w1", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFindSourceRespectingLeases(t *testing.T) {
	s, r := leaseFixture(t)
	require.NoError(t, s.RegisterStore(store("box", at(1, 1), 60, 100)))

	offer, ok := r.FindSourceRespectingLeases("w1", 40)
	require.True(t, ok)
	assert.Equal(t, SourceOffer{Kind: DestProducer, ID: "src", Amount: 40}, offer)

	id, _ := r.CreateDemandLease("w2", 100)
	_, err := r.BindLeaseToSource(testZone, id, "src")
	require.NoError(t, err)

	offer, ok = r.FindSourceRespectingLeases("w1", 80)
	require.True(t, ok)
	assert.Equal(t, SourceOffer{Kind: DestStore, ID: "box", Amount: 60}, offer)

	s.Stores["box"].Energy.Current = 0
	_, ok = r.FindSourceRespectingLeases("w1", 10)
	assert.False(t, ok)
}

func TestExpireLeases(t *testing.T) {
	s, r := leaseFixture(t)
	r.TTL = 5

	s.Tick = 10
	old, _ := r.CreateDemandLease("w1", 10)
	_, err := r.BindLeaseToSource(testZone, old, "src")
	require.NoError(t, err)
	s.Tick = 14
	fresh, _ := r.CreateDemandLease("w2", 10)

	s.Tick = 15
	assert.Zero(t, r.ExpireLeases(testZone))

	s.Tick = 16
	assert.Equal(t, 1, r.ExpireLeases(testZone))
	leases := r.ListLeases(testZone)
	require.Len(t, leases, 1)
	assert.Equal(t, fresh, leases[0].ID)
	assert.Empty(t, s.Producers["src"].Reservations)
}

func TestCancelLease(t *testing.T) {
	s, r := leaseFixture(t)

	id, _ := r.CreateDemandLease("w1", 10)
	_, err := r.BindLeaseToSource(testZone, id, "src")
	require.NoError(t, err)

	r.CancelLease(testZone, id)
	assert.Empty(t, r.ListLeases(testZone))
	assert.Zero(t, s.Reserved("src"))

	_, ok := r.LeaseOf("w1")
	assert.False(t, ok)
}
