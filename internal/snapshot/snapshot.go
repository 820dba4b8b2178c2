// Package snapshot exports the full state keyspace as a self-verifying CBOR
// stream and restores it into an empty backend.
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/gezibash/arc-ledger/internal/codec"
	"github.com/gezibash/arc-ledger/internal/ledger"
	"github.com/gezibash/arc-ledger/internal/statestore/physical"
)

// Version is the stream format version written by Export.
const Version = 1

const magic = "arc-ledger/snapshot"

var (
	// ErrCorrupt indicates a stream that is truncated, malformed, or fails
	// its digest check.
	ErrCorrupt = errors.New("corrupt snapshot")
	// ErrNotEmpty indicates a restore into a backend that already holds state.
	ErrNotEmpty = errors.New("target state is not empty")
)

type header struct {
	Magic     string `cbor:"1,keyasint"`
	Version   int    `cbor:"2,keyasint"`
	CreatedAt int64  `cbor:"3,keyasint"`
}

// frame is either one key/value pair or, when Trailer is set, the end of
// the stream.
type frame struct {
	Key     []byte   `cbor:"1,keyasint,omitempty"`
	Value   []byte   `cbor:"2,keyasint,omitempty"`
	Trailer *trailer `cbor:"3,keyasint,omitempty"`
}

type trailer struct {
	Keys   int64  `cbor:"1,keyasint"`
	Digest []byte `cbor:"2,keyasint"`
}

// Manifest describes a snapshot.
type Manifest struct {
	Version   int       `yaml:"version"`
	CreatedAt time.Time `yaml:"created_at"`
	ChainID   string    `yaml:"chain_id"`
	Keys      int64     `yaml:"keys"`
	Digest    string    `yaml:"digest"`
}

// digest hashes length-prefixed keys and values in stream order.
type digest struct {
	h hash.Hash
}

func newDigest() *digest {
	h, _ := blake2b.New256(nil)
	return &digest{h: h}
}

func (d *digest) add(k, v []byte) {
	var n [binary.MaxVarintLen64]byte
	d.h.Write(n[:binary.PutUvarint(n[:], uint64(len(k)))])
	d.h.Write(k)
	d.h.Write(n[:binary.PutUvarint(n[:], uint64(len(v)))])
	d.h.Write(v)
}

func (d *digest) sum() []byte {
	return d.h.Sum(nil)
}

// Export writes every key of backend, read from one consistent snapshot, to w.
func Export(ctx context.Context, backend physical.Backend, w io.Writer) (*Manifest, error) {
	m := &Manifest{Version: Version, CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}
	enc := codec.NewEncoder(w)
	if err := enc.Encode(header{Magic: magic, Version: Version, CreatedAt: m.CreatedAt.UnixMilli()}); err != nil {
		return nil, fmt.Errorf("write snapshot header: %w", err)
	}

	d := newDigest()
	err := physical.View(ctx, backend, func(txn physical.Txn) error {
		return txn.Iterate(nil, func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if string(k) == ledger.ChainIDKey {
				_ = codec.Unmarshal(v, &m.ChainID)
			}
			d.add(k, v)
			m.Keys++
			return enc.Encode(frame{Key: k, Value: v})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("export state: %w", err)
	}

	sum := d.sum()
	if err := enc.Encode(frame{Trailer: &trailer{Keys: m.Keys, Digest: sum}}); err != nil {
		return nil, fmt.Errorf("write snapshot trailer: %w", err)
	}
	m.Digest = hex.EncodeToString(sum)
	return m, nil
}

const (
	// stagingPrefix holds restored keys until the whole stream verifies.
	stagingPrefix = "snapshot/staging/"
	// restoreBatch is the number of keys written per transaction.
	restoreBatch = 1000
)

var errBatchFull = errors.New("batch full")

// Restore loads a stream written by Export into backend, which must be
// empty. Keys are written in batches under a staging prefix and moved into
// place only once the whole stream verifies, so a damaged stream leaves the
// backend empty. Staged keys left by an interrupted restore are discarded.
func Restore(ctx context.Context, backend physical.Backend, r io.Reader) (*Manifest, error) {
	return restore(ctx, backend, r, restoreBatch)
}

func restore(ctx context.Context, backend physical.Backend, r io.Reader, batch int) (*Manifest, error) {
	if err := checkEmpty(ctx, backend); err != nil {
		return nil, err
	}
	if err := drainStaging(ctx, backend, batch, false); err != nil {
		return nil, fmt.Errorf("clear staged keys: %w", err)
	}

	dec := codec.NewDecoder(r)
	var h header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("read snapshot header: %w: %w", ErrCorrupt, err)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("not a snapshot stream: %w", ErrCorrupt)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("snapshot version %d, want %d: %w", h.Version, Version, ErrCorrupt)
	}

	m := &Manifest{Version: h.Version, CreatedAt: time.UnixMilli(h.CreatedAt).UTC()}
	if err := stage(ctx, backend, dec, m, batch); err != nil {
		if cerr := drainStaging(context.WithoutCancel(ctx), backend, batch, false); cerr != nil {
			err = errors.Join(err, fmt.Errorf("clear staged keys: %w", cerr))
		}
		return nil, fmt.Errorf("restore state: %w", err)
	}
	if err := drainStaging(ctx, backend, batch, true); err != nil {
		return nil, fmt.Errorf("restore state: %w", err)
	}
	return m, nil
}

func checkEmpty(ctx context.Context, backend physical.Backend) error {
	empty := true
	err := physical.View(ctx, backend, func(txn physical.Txn) error {
		return txn.Iterate(nil, func(k, _ []byte) error {
			if bytes.HasPrefix(k, []byte(stagingPrefix)) {
				return nil
			}
			empty = false
			return io.EOF
		})
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if !empty {
		return ErrNotEmpty
	}
	return nil
}

// stage decodes frames up to the trailer, writing each batch under the
// staging prefix, and verifies the trailer.
func stage(ctx context.Context, backend physical.Backend, dec *cbor.Decoder, m *Manifest, batch int) error {
	d := newDigest()
	pending := make([]frame, 0, batch)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		err := physical.Update(ctx, backend, func(txn physical.Txn) error {
			for _, f := range pending {
				if err := txn.Set(append([]byte(stagingPrefix), f.Key...), f.Value); err != nil {
					return err
				}
			}
			return nil
		})
		pending = pending[:0]
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var f frame
		if err := dec.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("missing trailer: %w", ErrCorrupt)
			}
			return fmt.Errorf("read frame %d: %w: %w", m.Keys, ErrCorrupt, err)
		}
		if f.Trailer != nil {
			if err := verify(m, d, f.Trailer); err != nil {
				return err
			}
			return flush()
		}
		if len(f.Key) == 0 {
			return fmt.Errorf("frame %d has no key: %w", m.Keys, ErrCorrupt)
		}
		if string(f.Key) == ledger.ChainIDKey {
			_ = codec.Unmarshal(f.Value, &m.ChainID)
		}
		d.add(f.Key, f.Value)
		m.Keys++
		pending = append(pending, f)
		if len(pending) == batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// drainStaging deletes staged keys a batch at a time. With apply set each
// key is first written to its place outside the staging prefix.
func drainStaging(ctx context.Context, backend physical.Backend, batch int, apply bool) error {
	prefix := []byte(stagingPrefix)
	for {
		var keys, values [][]byte
		err := physical.View(ctx, backend, func(txn physical.Txn) error {
			return txn.Iterate(prefix, func(k, v []byte) error {
				keys = append(keys, bytes.Clone(k))
				values = append(values, bytes.Clone(v))
				if len(keys) == batch {
					return errBatchFull
				}
				return nil
			})
		})
		if err != nil && !errors.Is(err, errBatchFull) {
			return err
		}
		if len(keys) == 0 {
			return nil
		}

		err = physical.Update(ctx, backend, func(txn physical.Txn) error {
			for i, k := range keys {
				if apply {
					if err := txn.Set(k[len(prefix):], values[i]); err != nil {
						return err
					}
				}
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
}

func verify(m *Manifest, d *digest, t *trailer) error {
	sum := d.sum()
	if t.Keys != m.Keys {
		return fmt.Errorf("trailer counts %d keys, stream has %d: %w", t.Keys, m.Keys, ErrCorrupt)
	}
	if !bytes.Equal(t.Digest, sum) {
		return fmt.Errorf("digest mismatch: %w", ErrCorrupt)
	}
	m.Digest = hex.EncodeToString(sum)
	return nil
}

// Name returns the object name a snapshot of m is stored under.
func Name(m *Manifest) string {
	chain := m.ChainID
	if chain == "" {
		chain = "state"
	}
	return fmt.Sprintf("%s-%s-%s.cbor", chain, m.CreatedAt.UTC().Format("20060102T150405.000Z"), m.Digest[:12])
}
