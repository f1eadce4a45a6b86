package access_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hik1komori/life-dorama-bot/internal/access"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/testsupport"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

const (
	publicA  int64 = -1001
	private  int64 = -1002
	publicB  int64 = -1003
	userID   int64 = 500
	adminID  int64 = 1
	inactive int64 = -1004
)

func setup(t *testing.T) (*store.Store, *testsupport.Transport, *access.Gateway) {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, channel := range []store.Channel{
		{ID: publicA, Username: "alpha"},
		{ID: private, Title: "Secret", InviteLink: "https://t.me/+secret", IsPrivate: true},
		{ID: publicB, Username: "beta"},
		{ID: inactive, Username: "old"},
	} {
		if _, err := st.AddChannel(ctx, channel); err != nil {
			t.Fatalf("AddChannel failed: %v", err)
		}
	}
	if err := st.SetChannelActive(ctx, inactive, false); err != nil {
		t.Fatalf("SetChannelActive failed: %v", err)
	}
	fake := testsupport.NewTransport()
	gateway := access.New(st, st, fake, []int64{adminID}, logging.NewNop())
	return st, fake, gateway
}

func ids(channels []store.Channel) []int64 {
	out := make([]int64, 0, len(channels))
	for _, channel := range channels {
		out = append(out, channel.ID)
	}
	return out
}

func equal(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEvaluateMatchesPerChannelPredicates(t *testing.T) {
	memberStatuses := []transport.MemberStatus{
		transport.StatusMember,
		transport.StatusAdministrator,
		transport.StatusCreator,
		transport.StatusRestricted,
		transport.StatusLeft,
		transport.StatusKicked,
	}
	requestStatuses := store.RequestStatuses()

	st, fake, gateway := setup(t)
	ctx := context.Background()
	user := int64(1000)
	for _, a := range memberStatuses {
		for _, b := range memberStatuses {
			for _, req := range requestStatuses {
				user++
				fake.SetMember(publicA, user, a)
				fake.SetMember(publicB, user, b)
				if req != store.RequestNone {
					if err := st.UpsertRequest(ctx, user, private, req); err != nil {
						t.Fatalf("UpsertRequest failed: %v", err)
					}
				}

				var want []int64
				if a.Gone() {
					want = append(want, publicA)
				}
				if !req.Grants() {
					want = append(want, private)
				}
				if b.Gone() {
					want = append(want, publicB)
				}

				unmet, err := gateway.Evaluate(ctx, user)
				if err != nil {
					t.Fatalf("Evaluate failed: %v", err)
				}
				if !equal(ids(unmet), want) {
					t.Fatalf("a=%s b=%s req=%s: expected unmet %v, got %v", a, b, req, want, ids(unmet))
				}
				if gateway.Granted(ctx, user) != (len(want) == 0) {
					t.Fatalf("Granted disagrees with Evaluate for a=%s b=%s req=%s", a, b, req)
				}
			}
		}
	}
}

func TestEvaluateFailsClosedOnLookupError(t *testing.T) {
	st, fake, gateway := setup(t)
	ctx := context.Background()
	fake.SetMember(publicA, userID, transport.StatusMember)
	fake.SetMember(publicB, userID, transport.StatusMember)
	fake.FailLookups(publicB, errors.New("bot is not an admin"))
	if err := st.UpsertRequest(ctx, userID, private, store.RequestApproved); err != nil {
		t.Fatalf("UpsertRequest failed: %v", err)
	}

	unmet, err := gateway.Evaluate(ctx, userID)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !equal(ids(unmet), []int64{publicB}) {
		t.Fatalf("expected failed lookup to be unmet, got %v", ids(unmet))
	}
}

func TestPrivilegedUserBypassesLookups(t *testing.T) {
	_, fake, gateway := setup(t)
	unmet, err := gateway.Evaluate(context.Background(), adminID)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(unmet) != 0 {
		t.Fatalf("expected admin to pass, got %v", ids(unmet))
	}
	if fake.LookupCount() != 0 {
		t.Fatalf("expected no lookups for admin, got %d", fake.LookupCount())
	}
	if !gateway.IsPrivileged(adminID) || gateway.IsPrivileged(userID) {
		t.Fatal("unexpected privilege result")
	}
}

type failingLister struct{}

func (failingLister) ListActiveChannels(context.Context) ([]store.Channel, error) {
	return nil, errors.New("disk I/O error")
}

func TestChannelListFailureIsNotGranted(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	gateway := access.New(failingLister{}, st, testsupport.NewTransport(), nil, logging.NewNop())

	if _, err := gateway.Evaluate(context.Background(), userID); err == nil {
		t.Fatal("expected error when channels cannot be listed")
	}
	if gateway.Granted(context.Background(), userID) {
		t.Fatal("expected fail-closed result")
	}
}

func TestNoChannelsGrantsAccess(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	gateway := access.New(st, st, testsupport.NewTransport(), nil, logging.NewNop())
	if !gateway.Granted(context.Background(), userID) {
		t.Fatal("expected access with no gate channels")
	}
}
