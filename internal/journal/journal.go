// Package journal keeps the committed event history in ledger state, one
// sequence-numbered record per event.
package journal

import (
	"time"

	"github.com/gezibash/arc-ledger/internal/cel"
	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/state"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

const (
	// DefaultLimit is the page size used when a query names none.
	DefaultLimit = 100
	// MaxLimit caps the page size of a query.
	MaxLimit = 1000
	// MaxScan caps the records one query reads, matching or not. A selective
	// filter over a long journal returns a short page and a Next to resume
	// from.
	MaxScan = MaxLimit
)

// Record is one committed event.
type Record struct {
	Seq     uint64             `cbor:"1,keyasint"`
	Receipt string             `cbor:"2,keyasint"`
	Caller  identity.AccountID `cbor:"3,keyasint"`
	Time    int64              `cbor:"4,keyasint"`
	Event   event.Event        `cbor:"5,keyasint"`
}

// Attributes returns the event attributes plus the record's own fields.
func (r Record) Attributes() map[string]any {
	attrs := r.Event.Attributes()
	attrs["seq"] = int64(r.Seq)
	attrs["receipt"] = r.Receipt
	attrs["caller"] = r.Caller.String()
	return attrs
}

// AttributeKeys lists the names a record filter may reference.
var AttributeKeys = func() map[string]bool {
	keys := map[string]bool{"seq": true, "receipt": true, "caller": true}
	for k := range event.AttributeKeys {
		keys[k] = true
	}
	return keys
}()

// CompileFilter compiles a CEL expression over record attributes. An empty
// expression matches every record.
func CompileFilter(expr string) (*cel.Filter, error) {
	return cel.Compile(expr, AttributeKeys)
}

// Journal appends and reads records.
type Journal struct {
	records state.Map[uint64, Record]
	next    state.Value[uint64]
}

// New returns a journal over the "journal/" keyspace.
func New() *Journal {
	return &Journal{
		records: state.NewMap[uint64, Record]("journal/records/", state.Uint64Key{}),
		next:    state.NewValue[uint64]("journal/next", 0),
	}
}

// Append stores events in order under consecutive sequence numbers and
// returns the stored records.
func (j *Journal) Append(tx *state.Tx, receipt string, caller identity.AccountID, at time.Time, events []event.Event) ([]Record, error) {
	if len(events) == 0 {
		return nil, nil
	}
	seq, err := j.next.Get(tx)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(events))
	for _, e := range events {
		r := Record{Seq: seq, Receipt: receipt, Caller: caller, Time: at.UnixMilli(), Event: e}
		if err := j.records.Insert(tx, seq, r); err != nil {
			return nil, err
		}
		records = append(records, r)
		seq++
	}
	if err := j.next.Put(tx, seq); err != nil {
		return nil, err
	}
	return records, nil
}

// Next returns the sequence number the next record will get.
func (j *Journal) Next(tx *state.Tx) (uint64, error) {
	return j.next.Get(tx)
}

// Query selects records.
type Query struct {
	// From is the first sequence number considered.
	From uint64
	// Limit caps the number of records returned. Zero selects DefaultLimit.
	Limit int
	// Filter, if non-nil, must match a record's attributes.
	Filter *cel.Filter
}

// Page is a query result. Next is the sequence number to resume from and More
// reports whether records at or past Next exist.
type Page struct {
	Records []Record
	Next    uint64
	More    bool
}

// Query returns matching records in sequence order, starting at q.From. It
// stops after Limit matches or MaxScan records read, whichever comes first.
func (j *Journal) Query(tx *state.Tx, q Query) (Page, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	end, err := j.next.Get(tx)
	if err != nil {
		return Page{}, err
	}

	page := Page{Next: q.From}
	scanned := 0
	for seq := q.From; seq < end && len(page.Records) < limit && scanned < MaxScan; seq++ {
		scanned++
		r, ok, err := j.records.Get(tx, seq)
		if err != nil {
			return Page{}, err
		}
		page.Next = seq + 1
		if ok && q.Filter.Match(r.Attributes()) {
			page.Records = append(page.Records, r)
		}
	}
	page.More = page.Next < end
	return page, nil
}
