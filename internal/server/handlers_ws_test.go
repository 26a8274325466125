package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andyjduncan/eurosight/internal/domain"
	apperrors "github.com/andyjduncan/eurosight/internal/errors"
)

func claimedCountry(t *testing.T, srv *testServer, connectionID string) string {
	t.Helper()
	slot, err := srv.allocator.FindOwnedSlot(context.Background(), connectionID)
	require.NoError(t, err)
	return slot.CountryCode
}

func TestDispatch_InitClaimsCountry(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	err := srv.dispatch(ctx, "conn-1", domain.Inbound{Action: domain.ActionInit})
	require.NoError(t, err)

	code := claimedCountry(t, srv, "conn-1")
	assert.True(t, domain.IsCountry(code))
}

func TestDispatch_InitWhenExhaustedSendsNoCountries(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	// Fill every slot with other owners
	for _, code := range domain.CountryCodes() {
		require.NoError(t, srv.ledger.InsertSlot(ctx, domain.CountrySlot{CountryCode: code, Owner: "someone-else"}))
	}

	err := srv.dispatch(ctx, "conn-late", domain.Inbound{Action: domain.ActionInit})
	require.NoError(t, err)

	delivered := srv.transport.Delivered("conn-late")
	require.Len(t, delivered, 1)
	assert.Equal(t, domain.EventNoCountries, delivered[0].Event)
}

func TestDispatch_InitWithCountryResumesSlot(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	require.NoError(t, srv.ledger.InsertSlot(ctx, domain.CountrySlot{CountryCode: "se", Owner: "old-conn"}))

	err := srv.dispatch(ctx, "new-conn", domain.Inbound{Action: domain.ActionInit, Country: "se"})
	require.NoError(t, err)

	slot, err := srv.ledger.Slot(ctx, "se")
	require.NoError(t, err)
	assert.Equal(t, "new-conn", slot.Owner)
}

func TestDispatch_RefreshSendsSnapshot(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	require.NoError(t, srv.ledger.InsertSlot(ctx, domain.CountrySlot{CountryCode: "fi", Owner: "conn-1"}))

	err := srv.dispatch(ctx, "conn-1", domain.Inbound{Action: domain.ActionRefresh})
	require.NoError(t, err)

	delivered := srv.transport.Delivered("conn-1")
	require.NotEmpty(t, delivered)
	assert.Equal(t, domain.EventCountry, delivered[0].Event)
	assert.Equal(t, "fi", delivered[0].Country)

	events := make([]string, len(delivered))
	for i, msg := range delivered {
		events[i] = msg.Event
	}
	assert.Contains(t, events, domain.EventAllCountries)
	assert.Contains(t, events, domain.EventPerformedCountries)
	assert.Contains(t, events, domain.EventScores)
}

func TestDispatch_RefreshWithoutSlotSendsNoCountries(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	err := srv.dispatch(ctx, "conn-1", domain.Inbound{Action: domain.ActionRefresh})
	require.NoError(t, err)

	delivered := srv.transport.Delivered("conn-1")
	require.Len(t, delivered, 1)
	assert.Equal(t, domain.EventNoCountries, delivered[0].Event)
}

func TestDispatch_VoteAppliesToCurrentPerformer(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	require.NoError(t, srv.ledger.AppendPerformance(ctx, "no", time.Date(2026, 5, 16, 21, 0, 0, 0, time.UTC)))
	require.NoError(t, srv.ledger.AppendPerformance(ctx, "fr", time.Date(2026, 5, 16, 21, 5, 0, 0, time.UTC)))

	err := srv.dispatch(ctx, "conn-1", domain.Inbound{Action: domain.ActionVote, Scores: map[string]int{"song": 5, "staging": 7}})
	require.NoError(t, err)

	records, err := srv.ledger.ScoreRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"song": 5, "staging": 7}, records["fr"])
	assert.NotContains(t, records, "no")
}

func TestDispatch_VoteBeforeAnyPerformanceFails(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	err := srv.dispatch(ctx, "conn-1", domain.Inbound{Action: domain.ActionVote, Scores: map[string]int{"song": 5}})
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeValidation, apperrors.AsStructuredError(err).Type)
}

func TestDispatch_MakeAdmin(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	require.NoError(t, srv.ledger.InsertSlot(ctx, domain.CountrySlot{CountryCode: "de", Owner: "conn-1"}))

	err := srv.dispatch(ctx, "conn-1", domain.Inbound{Action: domain.ActionMakeAdmin, Country: "de"})
	require.NoError(t, err)

	slot, err := srv.ledger.Slot(ctx, "de")
	require.NoError(t, err)
	assert.True(t, slot.Admin)
}

func TestDispatch_MakeAdminRequiresCountry(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	err := srv.dispatch(ctx, "conn-1", domain.Inbound{Action: domain.ActionMakeAdmin})
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeValidation, apperrors.AsStructuredError(err).Type)
}

func TestDispatch_EnableVoting(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	require.NoError(t, srv.ledger.InsertSlot(ctx, domain.CountrySlot{CountryCode: "it", Owner: "conn-1"}))

	err := srv.dispatch(ctx, "conn-1", domain.Inbound{Action: domain.ActionEnableVoting, Country: "it"})
	require.NoError(t, err)

	slot, err := srv.ledger.Slot(ctx, "it")
	require.NoError(t, err)
	assert.True(t, slot.VotingEnabled)
}

func TestDispatch_CountryPerformanceUsesServerClock(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	err := srv.dispatch(ctx, "conn-1", domain.Inbound{Action: domain.ActionCountryPerformance, Country: "es"})
	require.NoError(t, err)

	performed, err := srv.ledger.PerformedCountries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"es"}, performed)
}

func TestDispatch_CountryPerformanceRejectsUnknownCountry(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	err := srv.dispatch(ctx, "conn-1", domain.Inbound{Action: domain.ActionCountryPerformance, Country: "zz"})
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeValidation, apperrors.AsStructuredError(err).Type)

	performed, err := srv.ledger.PerformedCountries(ctx)
	require.NoError(t, err)
	assert.Empty(t, performed)
}

func TestDispatch_UnknownActionFails(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	err := srv.dispatch(ctx, "conn-1", domain.Inbound{Action: "selfDestruct"})
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeValidation, apperrors.AsStructuredError(err).Type)
}

func TestConnectRegistersConnectionAndVoter(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	require.NoError(t, srv.connect(ctx, "conn-1"))

	assert.True(t, srv.ledger.HasConnection("conn-1"))
	assert.Equal(t, []string{"conn-1"}, srv.ledger.Voters())
}

func TestDisconnectPrunesConnectionAndVoter(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	require.NoError(t, srv.connect(ctx, "conn-1"))
	srv.disconnect("conn-1", nil)

	assert.False(t, srv.ledger.HasConnection("conn-1"))
	assert.Empty(t, srv.ledger.Voters())
}
