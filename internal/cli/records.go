package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/journal"
	"github.com/gezibash/arc-ledger/internal/ledger"
)

// RecordHeaders are the columns of a record table.
var RecordHeaders = []string{"Seq", "Time", "Kind", "Account", "Detail"}

// RecordRow formats one journal record as a table row.
func RecordRow(r journal.Record) []string {
	return []string{
		strconv.FormatUint(r.Seq, 10),
		time.UnixMilli(r.Time).UTC().Format(time.RFC3339),
		string(r.Event.Kind),
		r.Event.Account.Short(),
		Detail(r.Event),
	}
}

// Detail summarizes the kind-specific fields of e.
func Detail(e event.Event) string {
	switch e.Kind {
	case event.KindGuildCreated, event.KindGuildUpdated:
		return fmt.Sprintf("guild=%d name=%q", e.GuildID, e.Name)
	case event.KindClassCreated, event.KindClassRegistered:
		return fmt.Sprintf("class=%d", e.ClassID)
	case event.KindCurrencyTransferred:
		return fmt.Sprintf("to=%s amount=%s", e.Counterparty.Short(), e.Amount)
	case event.KindCurrencyReserved, event.KindCurrencyUnreserved, event.KindCurrencyDeposited:
		return "amount=" + e.Amount.String()
	case event.KindDelegationAdded, event.KindDelegationRemoved:
		return fmt.Sprintf("delegate=%s kind=%s delay=%d", e.Counterparty.Short(), e.DelegationKind, e.Delay)
	}
	return ""
}

// Records renders records as a table.
func (o *Output) Records(resultType string, records []journal.Record) *Table {
	t := o.Table(resultType, RecordHeaders...)
	for _, r := range records {
		t.AddRow(RecordRow(r)...)
	}
	return t
}

// Receipt renders the outcome of a dispatched call.
func (o *Output) Receipt(r *ledger.Receipt) *Result {
	msg := fmt.Sprintf("%s ok", r.Kind)
	if !r.OK() {
		msg = fmt.Sprintf("%s failed: %s", r.Kind, r.Error)
	}
	res := o.Result("receipt", msg).
		With("Receipt", r.ID).
		With("Account", r.Account.String()).
		With("Nonce", r.Nonce)
	switch r.Kind {
	case ledger.CallCreateGuild, ledger.CallUpdateGuild:
		res.With("Guild ID", r.GuildID)
	case ledger.CallCreateClass:
		if r.OK() {
			res.With("Class ID", r.ClassID).With("Custody", r.Custody.String())
		}
	}
	return res.With("Events", len(r.Records))
}
