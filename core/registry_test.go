package core

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func testWindow(now time.Time) (time.Time, time.Time) {
	return now.Add(-30 * time.Second), now.Add(time.Hour)
}

func TestCreateAuction_AssignsSequentialIDs(t *testing.T) {
	reg := NewAuctionRegistry(nil)
	now := time.Now()
	start, end := testWindow(now)

	id1, err := reg.CreateAuction("seller-a", NoAsset, start, end, 10, big.NewInt(1))
	check.NoError(t, err)
	check.Equal(t, uint64(1), id1)

	id2, err := reg.CreateAuction("seller-b", NoAsset, start, end, 10, big.NewInt(1))
	check.NoError(t, err)
	check.Equal(t, uint64(2), id2)
}

func TestCreateAuction_FreshRecord(t *testing.T) {
	reg := NewAuctionRegistry(nil)
	start, end := testWindow(time.Now())
	minDeposit, err := ParseEther("0.01")
	check.NoError(t, err)

	asset := AssetRef{Contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3", TokenID: 1}
	id, err := reg.CreateAuction("seller", asset, start, end, 10, minDeposit)
	check.NoError(t, err)

	a, err := reg.GetAuction(id)
	check.NoError(t, err)
	check.Equal(t, Identity("seller"), a.Seller)
	check.Equal(t, asset, a.Asset)
	check.Equal(t, 10, a.MaxBidders)
	check.Equal(t, 0, a.MinDepositWei.Cmp(minDeposit))
	check.False(t, a.Finalized)
	check.Equal(t, CiphertextHandle{}, a.WinnerCiphertext)
	check.Equal(t, "", a.AdapterID)
}

func TestCreateAuction_InvalidWindow(t *testing.T) {
	reg := NewAuctionRegistry(nil)
	now := time.Now()

	_, err := reg.CreateAuction("seller", NoAsset, now.Add(time.Hour), now, 10, nil)
	check.True(t, errors.Is(err, ErrInvalidWindow))

	// Equal start and end is also invalid.
	_, err = reg.CreateAuction("seller", NoAsset, now, now, 10, nil)
	check.True(t, errors.Is(err, ErrInvalidWindow))

	// Failed creation consumes no id.
	id, err := reg.CreateAuction("seller", NoAsset, now, now.Add(time.Hour), 10, nil)
	check.NoError(t, err)
	check.Equal(t, uint64(1), id)
}

func TestCreateAuction_InvalidCapacity(t *testing.T) {
	reg := NewAuctionRegistry(nil)
	start, end := testWindow(time.Now())

	_, err := reg.CreateAuction("seller", NoAsset, start, end, 0, nil)
	check.True(t, errors.Is(err, ErrInvalidCapacity))

	_, err = reg.CreateAuction("seller", NoAsset, start, end, -3, nil)
	check.True(t, errors.Is(err, ErrInvalidCapacity))
}

func TestGetAuction_NotFound(t *testing.T) {
	reg := NewAuctionRegistry(nil)

	_, err := reg.GetAuction(999)
	check.True(t, errors.Is(err, ErrAuctionNotFound))
}

func TestGetAuction_SnapshotIsolated(t *testing.T) {
	reg := NewAuctionRegistry(nil)
	start, end := testWindow(time.Now())
	id, err := reg.CreateAuction("seller", NoAsset, start, end, 5, big.NewInt(7))
	check.NoError(t, err)

	a, err := reg.GetAuction(id)
	check.NoError(t, err)

	// Mutating the snapshot's deposit must not leak into the registry.
	a.MinDepositWei.SetInt64(0)
	a2, err := reg.GetAuction(id)
	check.NoError(t, err)
	check.Equal(t, int64(7), a2.MinDepositWei.Int64())
}

func TestListAuctions_SnapshotIsolated(t *testing.T) {
	reg := NewAuctionRegistry(nil)
	start, end := testWindow(time.Now())
	id, err := reg.CreateAuction("seller", NoAsset, start, end, 5, big.NewInt(7))
	check.NoError(t, err)

	list := reg.ListAuctions()
	check.Equal(t, 1, len(list))
	list[0].MinDepositWei.SetInt64(0)

	a, err := reg.GetAuction(id)
	check.NoError(t, err)
	check.Equal(t, int64(7), a.MinDepositWei.Int64())
}

func TestCreateAuction_EventsOrderedByID(t *testing.T) {
	const n = 32
	bus := NewBus(nil)
	events := bus.Subscribe(n)
	reg := NewAuctionRegistry(bus)
	start, end := testWindow(time.Now())

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.CreateAuction("seller", NoAsset, start, end, 10, nil)
			check.NoError(t, err)
		}()
	}
	wg.Wait()

	// Creation events must arrive in id order even under contention.
	for want := uint64(1); want <= n; want++ {
		ev := (<-events).(AuctionCreated)
		check.Equal(t, want, ev.AuctionID())
	}
}

func TestListAuctions_OrderedByID(t *testing.T) {
	reg := NewAuctionRegistry(nil)
	start, end := testWindow(time.Now())

	for i := 0; i < 5; i++ {
		_, err := reg.CreateAuction("seller", NoAsset, start, end, 10, nil)
		check.NoError(t, err)
	}

	auctions := reg.ListAuctions()
	check.Equal(t, 5, len(auctions))
	for i, a := range auctions {
		check.Equal(t, uint64(i+1), a.ID)
	}
}

func TestCreateAuction_ConcurrentIDsUnique(t *testing.T) {
	reg := NewAuctionRegistry(nil)
	start, end := testWindow(time.Now())

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := reg.CreateAuction("seller", NoAsset, start, end, 10, nil)
			if err == nil {
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	count := 0
	for id := range ids {
		check.False(t, seen[id])
		seen[id] = true
		count++
	}
	check.Equal(t, n, count)
}

func TestCreateAuction_EmitsEvent(t *testing.T) {
	bus := NewBus(nil)
	events := bus.Subscribe(4)
	reg := NewAuctionRegistry(bus)
	start, end := testWindow(time.Now())

	id, err := reg.CreateAuction("seller-x", NoAsset, start, end, 10, nil)
	check.NoError(t, err)

	ev := (<-events).(AuctionCreated)
	check.Equal(t, id, ev.AuctionID())
	check.Equal(t, Identity("seller-x"), ev.Seller)
}
