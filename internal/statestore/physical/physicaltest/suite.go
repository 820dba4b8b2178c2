// Package physicaltest provides a conformance suite shared by state store
// backends.
package physicaltest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gezibash/arc-ledger/internal/statestore/physical"
)

// NewBackend opens a fresh, empty backend for one test.
type NewBackend func(t *testing.T) physical.Backend

// RunAll runs every conformance test against the backend constructor.
func RunAll(t *testing.T, newBackend NewBackend) {
	t.Run("SetGetCommit", func(t *testing.T) { testSetGetCommit(t, newBackend(t)) })
	t.Run("GetNotFound", func(t *testing.T) { testGetNotFound(t, newBackend(t)) })
	t.Run("DiscardDropsWrites", func(t *testing.T) { testDiscard(t, newBackend(t)) })
	t.Run("ReadYourWrites", func(t *testing.T) { testReadYourWrites(t, newBackend(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newBackend(t)) })
	t.Run("IteratePrefixOrder", func(t *testing.T) { testIterate(t, newBackend(t)) })
	t.Run("IterateStops", func(t *testing.T) { testIterateStops(t, newBackend(t)) })
	t.Run("ReadOnly", func(t *testing.T) { testReadOnly(t, newBackend(t)) })
	t.Run("TxnDone", func(t *testing.T) { testTxnDone(t, newBackend(t)) })
	t.Run("NestedOverlay", func(t *testing.T) { testNestedOverlay(t, newBackend(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newBackend(t)) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, newBackend(t)) })
}

func mustUpdate(t *testing.T, b physical.Backend, fn func(physical.Txn) error) {
	t.Helper()
	if err := physical.Update(context.Background(), b, fn); err != nil {
		t.Fatalf("update: %v", err)
	}
}

func mustGet(t *testing.T, b physical.Backend, key string) ([]byte, error) {
	t.Helper()
	var out []byte
	err := physical.View(context.Background(), b, func(txn physical.Txn) error {
		v, err := txn.Get([]byte(key))
		out = v
		return err
	})
	return out, err
}

func testSetGetCommit(t *testing.T, b physical.Backend) {
	mustUpdate(t, b, func(txn physical.Txn) error {
		if err := txn.Set([]byte("a"), []byte("1")); err != nil {
			return err
		}
		return txn.Set([]byte("empty"), []byte{})
	})

	got, err := mustGet(t, b, "a")
	if err != nil || string(got) != "1" {
		t.Fatalf("Get(a) = %q, %v", got, err)
	}
	got, err = mustGet(t, b, "empty")
	if err != nil || len(got) != 0 {
		t.Fatalf("Get(empty) = %q, %v", got, err)
	}
}

func testGetNotFound(t *testing.T, b physical.Backend) {
	if _, err := mustGet(t, b, "missing"); !errors.Is(err, physical.ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
}

func testDiscard(t *testing.T, b physical.Backend) {
	txn, err := b.Begin(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	txn.Discard()

	if _, err := mustGet(t, b, "k"); !errors.Is(err, physical.ErrNotFound) {
		t.Fatalf("discarded write visible: %v", err)
	}
}

func testReadYourWrites(t *testing.T, b physical.Backend) {
	mustUpdate(t, b, func(txn physical.Txn) error {
		if err := txn.Set([]byte("k"), []byte("v1")); err != nil {
			return err
		}
		got, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		if string(got) != "v1" {
			return fmt.Errorf("read own write = %q", got)
		}
		return nil
	})
}

func testDelete(t *testing.T, b physical.Backend) {
	mustUpdate(t, b, func(txn physical.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	})
	mustUpdate(t, b, func(txn physical.Txn) error {
		if err := txn.Delete([]byte("k")); err != nil {
			return err
		}
		if _, err := txn.Get([]byte("k")); !errors.Is(err, physical.ErrNotFound) {
			return fmt.Errorf("deleted key readable in txn: %v", err)
		}
		return nil
	})
	if _, err := mustGet(t, b, "k"); !errors.Is(err, physical.ErrNotFound) {
		t.Fatalf("Get after delete = %v", err)
	}
}

func testIterate(t *testing.T, b physical.Backend) {
	mustUpdate(t, b, func(txn physical.Txn) error {
		for _, k := range []string{"p/c", "p/a", "q/z", "p/b", "o/x"} {
			if err := txn.Set([]byte(k), []byte("v-"+k)); err != nil {
				return err
			}
		}
		return nil
	})

	var keys []string
	err := physical.View(context.Background(), b, func(txn physical.Txn) error {
		return txn.Iterate([]byte("p/"), func(k, v []byte) error {
			if !bytes.Equal(v, append([]byte("v-"), k...)) {
				return fmt.Errorf("value for %q = %q", k, v)
			}
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"p/a", "p/b", "p/c"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}

	// Uncommitted writes and deletes are merged into iteration.
	mustUpdate(t, b, func(txn physical.Txn) error {
		if err := txn.Delete([]byte("p/b")); err != nil {
			return err
		}
		if err := txn.Set([]byte("p/aa"), []byte("v-p/aa")); err != nil {
			return err
		}
		keys = nil
		return txn.Iterate([]byte("p/"), func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	want = []string{"p/a", "p/aa", "p/c"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Fatalf("keys in txn = %v, want %v", keys, want)
	}
}

func testIterateStops(t *testing.T, b physical.Backend) {
	mustUpdate(t, b, func(txn physical.Txn) error {
		for i := range 5 {
			if err := txn.Set(fmt.Appendf(nil, "k%d", i), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})

	stop := errors.New("stop")
	n := 0
	err := physical.View(context.Background(), b, func(txn physical.Txn) error {
		return txn.Iterate([]byte("k"), func(_, _ []byte) error {
			n++
			if n == 2 {
				return stop
			}
			return nil
		})
	})
	if !errors.Is(err, stop) || n != 2 {
		t.Fatalf("Iterate = %v after %d keys", err, n)
	}
}

func testReadOnly(t *testing.T, b physical.Backend) {
	txn, err := b.Begin(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer txn.Discard()
	if err := txn.Set([]byte("k"), []byte("v")); !errors.Is(err, physical.ErrReadOnly) {
		t.Fatalf("Set on read-only txn = %v", err)
	}
	if err := txn.Delete([]byte("k")); !errors.Is(err, physical.ErrReadOnly) {
		t.Fatalf("Delete on read-only txn = %v", err)
	}
}

func testTxnDone(t *testing.T, b physical.Backend) {
	txn, err := b.Begin(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	txn.Discard()
	if err := txn.Set([]byte("k"), []byte("v")); !errors.Is(err, physical.ErrTxnDone) {
		t.Fatalf("Set after commit = %v", err)
	}
	if err := txn.Commit(); !errors.Is(err, physical.ErrTxnDone) {
		t.Fatalf("second Commit = %v", err)
	}
}

func testNestedOverlay(t *testing.T, b physical.Backend) {
	mustUpdate(t, b, func(txn physical.Txn) error {
		if err := txn.Set([]byte("outer"), []byte("1")); err != nil {
			return err
		}

		failed := physical.NewOverlay(txn, physical.ApplyTo(txn), nil)
		if err := failed.Set([]byte("inner"), []byte("x")); err != nil {
			return err
		}
		failed.Discard()

		kept := physical.NewOverlay(txn, physical.ApplyTo(txn), nil)
		if err := kept.Set([]byte("kept"), []byte("y")); err != nil {
			return err
		}
		if err := kept.Delete([]byte("outer")); err != nil {
			return err
		}
		return kept.Commit()
	})

	if _, err := mustGet(t, b, "inner"); !errors.Is(err, physical.ErrNotFound) {
		t.Fatalf("discarded scope leaked: %v", err)
	}
	if got, err := mustGet(t, b, "kept"); err != nil || string(got) != "y" {
		t.Fatalf("Get(kept) = %q, %v", got, err)
	}
	if _, err := mustGet(t, b, "outer"); !errors.Is(err, physical.ErrNotFound) {
		t.Fatalf("scope delete lost: %v", err)
	}
}

func testStats(t *testing.T, b physical.Backend) {
	mustUpdate(t, b, func(txn physical.Txn) error {
		for i := range 3 {
			if err := txn.Set(fmt.Appendf(nil, "s%d", i), []byte("value")); err != nil {
				return err
			}
		}
		return nil
	})
	stats, err := b.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Keys != 3 {
		t.Errorf("Keys = %d, want 3", stats.Keys)
	}
	if stats.BackendType == "" {
		t.Error("BackendType is empty")
	}
}

func testClosed(t *testing.T, b physical.Backend) {
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Begin(context.Background(), false); !errors.Is(err, physical.ErrClosed) {
		t.Fatalf("Begin after close = %v", err)
	}
}
