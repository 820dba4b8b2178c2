package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/guild"
	"github.com/gezibash/arc-ledger/internal/journal"
	"github.com/gezibash/arc-ledger/pkg/api"
	"github.com/gezibash/arc-ledger/pkg/balance"
	"github.com/gezibash/arc-ledger/pkg/client"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

func account(b byte) identity.AccountID {
	var id identity.AccountID
	id[0] = b
	return id
}

func newQuery(t *testing.T, mc *mockClient, format string) *queryCmd {
	t.Helper()
	v := viper.New()
	v.Set("data_dir", t.TempDir())
	v.Set("output", format)
	return &queryCmd{v: v, client: mc}
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestAccount(t *testing.T) {
	alice := account(1)
	var got identity.AccountID
	mc := &mockClient{
		accountFn: func(_ context.Context, who identity.AccountID) (*api.AccountResponse, error) {
			got = who
			return &api.AccountResponse{Free: balance.New(900), Reserved: balance.New(100), Nonce: 3}, nil
		},
	}

	out, err := execute(newAccountCmd(newQuery(t, mc, "text")), alice.String())
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if got != alice {
		t.Fatalf("queried %s, want %s", got, alice)
	}
	for _, want := range []string{"Free", "900", "Reserved", "100", "Nonce", "3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAccountDefaultsToActiveKey(t *testing.T) {
	var got identity.AccountID
	mc := &mockClient{
		accountFn: func(_ context.Context, who identity.AccountID) (*api.AccountResponse, error) {
			got = who
			return &api.AccountResponse{}, nil
		},
	}
	q := newQuery(t, mc, "json")

	out, err := execute(newAccountCmd(q))
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if got.IsZero() {
		t.Fatal("expected the generated default key's account")
	}
	if !strings.Contains(out, got.String()) {
		t.Errorf("output missing account %s:\n%s", got, out)
	}
}

func TestAccountUnknownAlias(t *testing.T) {
	mc := &mockClient{}
	if _, err := execute(newAccountCmd(newQuery(t, mc, "text")), "nobody"); err == nil {
		t.Fatal("expected error for unknown alias")
	}
}

func TestGuild(t *testing.T) {
	owner := account(2)
	mc := &mockClient{
		guildFn: func(_ context.Context, o identity.AccountID) (guild.Guild, error) {
			if o != owner {
				t.Errorf("owner = %s", o)
			}
			return guild.Guild{ID: 7, Name: []byte("smiths"), Members: []identity.AccountID{account(3)}}, nil
		},
	}

	out, err := execute(newGuildCmd(newQuery(t, mc, "json")), owner.String())
	if err != nil {
		t.Fatalf("guild: %v", err)
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if env.Data["name"] != "smiths" {
		t.Errorf("name = %v", env.Data["name"])
	}
	if env.Data["id"] != float64(7) {
		t.Errorf("id = %v", env.Data["id"])
	}
	members, _ := env.Data["members"].([]any)
	if len(members) != 1 || members[0] != account(3).String() {
		t.Errorf("members = %v", env.Data["members"])
	}
}

func TestGuildNotFound(t *testing.T) {
	mc := &mockClient{
		guildFn: func(context.Context, identity.AccountID) (guild.Guild, error) {
			return guild.Guild{}, status.Error(codes.NotFound, "no guild")
		},
	}
	_, err := execute(newGuildCmd(newQuery(t, mc, "text")), account(2).String())
	if status.Code(errors.Unwrap(err)) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestClass(t *testing.T) {
	custody := account(9)
	mc := &mockClient{
		classFn: func(_ context.Context, id assetclass.ClassID) (*api.ClassResponse, error) {
			if id != 4 {
				t.Errorf("class id = %d", id)
			}
			return &api.ClassResponse{
				Info: assetclass.Info{
					Metadata: []byte{0xff, 0x00},
					Owner:    account(1),
					Data: assetclass.Data{
						Deposit:    balance.New(1000),
						Properties: assetclass.Properties{Transferable: true},
					},
				},
				Custody: custody,
			}, nil
		},
	}

	out, err := execute(newClassCmd(newQuery(t, mc, "text")), "4")
	if err != nil {
		t.Fatalf("class: %v", err)
	}
	for _, want := range []string{custody.String(), "1000", "0xff00", "true", "false"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestClassBadID(t *testing.T) {
	if _, err := execute(newClassCmd(newQuery(t, &mockClient{}, "text")), "four"); err == nil {
		t.Fatal("expected error for non-numeric class id")
	}
}

func TestClasses(t *testing.T) {
	mc := &mockClient{
		classesFn: func(context.Context, identity.AccountID) ([]assetclass.ClassID, error) {
			return []assetclass.ClassID{0, 2, 5}, nil
		},
	}
	out, err := execute(newClassesCmd(newQuery(t, mc, "json")), account(1).String())
	if err != nil {
		t.Fatalf("classes: %v", err)
	}
	var env struct {
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Data) != 3 || env.Data[2]["class_id"] != "5" {
		t.Fatalf("data = %v", env.Data)
	}
}

func TestDelegates(t *testing.T) {
	mc := &mockClient{
		delegatesFn: func(context.Context, identity.AccountID) ([]delegation.Delegation, error) {
			return []delegation.Delegation{
				{Delegate: account(4), Kind: delegation.KindAny, Delay: 0},
				{Delegate: account(5), Kind: delegation.KindGovernance, Delay: 12},
			}, nil
		},
	}
	out, err := execute(newDelegatesCmd(newQuery(t, mc, "text")), account(1).String())
	if err != nil {
		t.Fatalf("delegates: %v", err)
	}
	for _, want := range []string{account(4).String(), "governance", "12"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEventsPagination(t *testing.T) {
	var got *client.EventsOptions
	mc := &mockClient{
		eventsFn: func(_ context.Context, opts *client.EventsOptions) (*api.EventsResponse, error) {
			got = opts
			return &api.EventsResponse{
				Records: []journal.Record{
					{Seq: 10, Time: 1_700_000_000_000, Event: event.Event{Kind: event.KindClassCreated, ClassID: 1}},
					{Seq: 11, Time: 1_700_000_000_000, Event: event.Event{Kind: event.KindClassCreated, ClassID: 2}},
				},
				Next: 12,
				More: true,
			}, nil
		},
	}

	out, err := execute(newEventsCmd(newQuery(t, mc, "text")), "--from", "10", "--limit", "2", "--filter", `kind == "class.created"`)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if got.From != 10 || got.Limit != 2 || got.Filter != `kind == "class.created"` {
		t.Errorf("options = %+v", got)
	}
	if !strings.Contains(out, "class=2") {
		t.Errorf("output missing detail:\n%s", out)
	}
	if !strings.Contains(out, "--from=12") {
		t.Errorf("output missing pagination hint:\n%s", out)
	}
}

func TestEventsLastPage(t *testing.T) {
	mc := &mockClient{
		eventsFn: func(context.Context, *client.EventsOptions) (*api.EventsResponse, error) {
			return &api.EventsResponse{
				Records: []journal.Record{{Seq: 3, Event: event.Event{Kind: event.KindCurrencyDeposited, Amount: balance.New(1)}}},
				Next:    3,
			}, nil
		},
	}
	out, err := execute(newEventsCmd(newQuery(t, mc, "text")))
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if strings.Contains(out, "More results") {
		t.Errorf("unexpected pagination hint:\n%s", out)
	}
}

func TestEventsShortPageWithMore(t *testing.T) {
	mc := &mockClient{
		eventsFn: func(context.Context, *client.EventsOptions) (*api.EventsResponse, error) {
			return &api.EventsResponse{Next: 1000, More: true}, nil
		},
	}
	out, err := execute(newEventsCmd(newQuery(t, mc, "text")), "--filter", `kind == "guild.deleted"`)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if !strings.Contains(out, "--from=1000") {
		t.Errorf("output missing pagination hint:\n%s", out)
	}
}

func TestWatch(t *testing.T) {
	var got *client.SubscribeOptions
	mc := &mockClient{
		subscribeFn: func(_ context.Context, opts *client.SubscribeOptions) (<-chan journal.Record, <-chan error, error) {
			got = opts
			records := make(chan journal.Record, 2)
			errs := make(chan error, 1)
			records <- journal.Record{Seq: 1, Event: event.Event{Kind: event.KindGuildCreated, GuildID: 0, Name: []byte("a")}}
			records <- journal.Record{Seq: 2, Event: event.Event{Kind: event.KindClassCreated, ClassID: 3}}
			close(records)
			errs <- status.Error(codes.Canceled, "stream closed")
			close(errs)
			return records, errs, nil
		},
	}

	out, err := execute(newWatchCmd(newQuery(t, mc, "text")), "--from", "1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !got.Replay || got.From != 1 {
		t.Errorf("options = %+v, want replay from 1", got)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "class=3") {
		t.Errorf("line = %q", lines[1])
	}
}

func TestWatchStreamError(t *testing.T) {
	mc := &mockClient{
		subscribeFn: func(context.Context, *client.SubscribeOptions) (<-chan journal.Record, <-chan error, error) {
			records := make(chan journal.Record)
			errs := make(chan error, 1)
			close(records)
			errs <- status.Error(codes.Unavailable, "node gone")
			close(errs)
			return records, errs, nil
		},
	}
	if _, err := execute(newWatchCmd(newQuery(t, mc, "text"))); status.Code(errors.Unwrap(err)) != codes.Unavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}

func TestQueryClosesClient(t *testing.T) {
	mc := &mockClient{
		classesFn: func(context.Context, identity.AccountID) ([]assetclass.ClassID, error) { return nil, nil },
	}
	if _, err := execute(newQueryCmd(newQuery(t, mc, "text")), "classes", account(1).String()); err != nil {
		t.Fatalf("classes: %v", err)
	}
	if !mc.closed {
		t.Error("client not closed")
	}
}
