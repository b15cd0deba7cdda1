//go:build integration

package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"chefmate/internal/platform/postgres"
	"chefmate/pkg/platform/sentinel"
	"chefmate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx context.Context
	pg  *containers.PostgresContainer
	now time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	require.NoError(s.T(), postgres.EnsureSchema(s.ctx, s.pg.DB))
	s.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	require.NoError(s.T(), s.pg.TruncateTables(s.ctx, "entitlements", "webhook_events"))
}

func (s *PostgresStoreSuite) TestApplyPatchCreatesAndMerges() {
	store := NewPostgresEntitlementStore(s.pg.DB)

	_, err := store.Get(s.ctx, "u1")
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)

	until := s.now.Add(30 * 24 * time.Hour)
	rec, err := store.ApplyPatch(s.ctx, "u1", Patch{
		Premium:          boolPtr(true),
		PremiumSince:     &s.now,
		PremiumUntil:     &until,
		StripeCustomerID: strPtr("cus_1"),
	}, s.now)
	require.NoError(s.T(), err)
	assert.True(s.T(), rec.Premium)

	got, err := store.Get(s.ctx, "u1")
	require.NoError(s.T(), err)
	assert.True(s.T(), got.Premium)
	require.NotNil(s.T(), got.PremiumUntil)
	assert.Equal(s.T(), until.Unix(), got.PremiumUntil.Unix())
	assert.Equal(s.T(), "cus_1", got.StripeCustomerID)

	// Set-once and monotonic rules hold through the SQL round trip.
	earlier := until.Add(-24 * time.Hour)
	got, err = store.ApplyPatch(s.ctx, "u1", Patch{
		PremiumUntil:     &earlier,
		StripeCustomerID: strPtr("cus_other"),
	}, s.now.Add(time.Minute))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), until.Unix(), got.PremiumUntil.Unix())
	assert.Equal(s.T(), "cus_1", got.StripeCustomerID)
}

func (s *PostgresStoreSuite) TestFindByCustomerID() {
	store := NewPostgresEntitlementStore(s.pg.DB)

	_, err := store.FindByCustomerID(s.ctx, "cus_1")
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)

	_, err = store.ApplyPatch(s.ctx, "u1", Patch{StripeCustomerID: strPtr("cus_1")}, s.now)
	require.NoError(s.T(), err)

	rec, err := store.FindByCustomerID(s.ctx, "cus_1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "u1", rec.UserID)

	// The partial unique index refuses a second row with the same customer.
	_, err = store.ApplyPatch(s.ctx, "u2", Patch{StripeCustomerID: strPtr("cus_1")}, s.now)
	assert.Error(s.T(), err)
}

func (s *PostgresStoreSuite) TestLedgerLifecycle() {
	ledger := NewPostgresLedgerStore(s.pg.DB)
	ttl := 10 * time.Minute

	res, err := ledger.Acquire(s.ctx, "evt_1", EventInvoicePaid, s.now, ttl)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), FreshLock, res)

	res, err = ledger.Acquire(s.ctx, "evt_1", EventInvoicePaid, s.now.Add(time.Minute), ttl)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), AlreadyLocked, res)

	require.NoError(s.T(), ledger.MarkProcessed(s.ctx, "evt_1", s.now.Add(time.Minute)))

	res, err = ledger.Acquire(s.ctx, "evt_1", EventInvoicePaid, s.now.Add(2*time.Minute), ttl)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), AlreadyProcessed, res)
}

func (s *PostgresStoreSuite) TestLedgerStaleLockReclaim() {
	ledger := NewPostgresLedgerStore(s.pg.DB)
	ttl := 10 * time.Minute

	res, err := ledger.Acquire(s.ctx, "evt_1", EventInvoicePaid, s.now, ttl)
	require.NoError(s.T(), err)
	require.Equal(s.T(), FreshLock, res)

	res, err = ledger.Acquire(s.ctx, "evt_1", EventInvoicePaid, s.now.Add(ttl+time.Second), ttl)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), FreshLock, res)
}

func (s *PostgresStoreSuite) TestLedgerConcurrentAcquireYieldsOneLock() {
	ledger := NewPostgresLedgerStore(s.pg.DB)

	const attempts = 16
	results := make([]AcquireResult, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ledger.Acquire(s.ctx, "evt_dup", EventCheckoutCompleted, s.now, 10*time.Minute)
		}(i)
	}
	wg.Wait()

	var fresh int
	for i := 0; i < attempts; i++ {
		require.NoError(s.T(), errs[i])
		if results[i] == FreshLock {
			fresh++
		}
	}
	assert.Equal(s.T(), 1, fresh, "the conditional insert must admit exactly one claimant")
}

func (s *PostgresStoreSuite) TestMarkProcessedUnknownEvent() {
	ledger := NewPostgresLedgerStore(s.pg.DB)
	err := ledger.MarkProcessed(s.ctx, "evt_missing", s.now)
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}
