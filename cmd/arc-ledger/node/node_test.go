package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-ledger/internal/config"
	"github.com/gezibash/arc-ledger/internal/genesis"
	arcnode "github.com/gezibash/arc-ledger/internal/node"
	"github.com/gezibash/arc-ledger/pkg/api"
	"github.com/gezibash/arc-ledger/pkg/balance"
	"github.com/gezibash/arc-ledger/pkg/identity/ed25519"
)

type fakeStatus struct {
	status  *api.StatusResponse
	pingErr error
	closed  bool
}

func (f *fakeStatus) Ping(context.Context) (time.Duration, error) {
	return 3 * time.Millisecond, f.pingErr
}

func (f *fakeStatus) Status(context.Context) (*api.StatusResponse, error) {
	return f.status, nil
}

func (f *fakeStatus) Close() error {
	f.closed = true
	return nil
}

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	v := viper.New()
	v.Set("data_dir", t.TempDir())
	v.Set("output", "text")
	return v
}

func execute(t *testing.T, v *viper.Viper, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := Entrypoint(v)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func runStatus(t *testing.T, fake *fakeStatus) (string, error) {
	t.Helper()
	n := &nodeCmd{v: newViper(t), dial: func() (StatusClient, error) { return fake, nil }}
	var buf bytes.Buffer
	cmd := newStatusCmd(n)
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestStatus(t *testing.T) {
	fake := &fakeStatus{status: &api.StatusResponse{
		ChainID:       "arc-dev",
		ModuleID:      "arc/clas",
		ClassDeposit:  balance.New(1000),
		Head:          12,
		TotalIssuance: balance.New(5000),
		Backend:       "badger",
	}}

	out, err := runStatus(t, fake)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"arc-dev", "arc/clas", "badger", "5000", "3ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}
	if !fake.closed {
		t.Error("client not closed")
	}
}

func TestStatusPingFails(t *testing.T) {
	fake := &fakeStatus{pingErr: errors.New("node is NOT_SERVING")}
	if _, err := runStatus(t, fake); err == nil {
		t.Fatal("expected error when ping fails")
	}
}

func TestGenesisInitAndValidate(t *testing.T) {
	v := newViper(t)
	kp, err := ed25519.FromSeed(bytes.Repeat([]byte{1}, 32))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "genesis.toml")

	_, err = execute(t, v, "genesis", "init",
		"--chain-id", "arc-local",
		"--account", kp.Account().String()+"=2500",
		"--class-deposit", "700",
		"--out", path,
	)
	if err != nil {
		t.Fatalf("genesis init: %v", err)
	}

	f, err := genesis.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.ChainID != "arc-local" || len(f.Accounts) != 1 || f.Params.ClassDeposit != balance.New(700) {
		t.Errorf("genesis = %+v", f)
	}

	v.Set("output", "json")
	out, err := execute(t, v, "genesis", "validate", path)
	if err != nil {
		t.Fatalf("genesis validate: %v", err)
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if env.Data["total_issuance"] != "2500" || env.Data["chain_id"] != "arc-local" {
		t.Errorf("validate = %v", env.Data)
	}
}

func TestGenesisInitRejectsBadAccount(t *testing.T) {
	tests := [][]string{
		{"genesis", "init", "--account", "no-equals-sign"},
		{"genesis", "init", "--account", "unknown-alias=10"},
		{"genesis", "init", "--account", strings.Repeat("ab", 32) + "=-5"},
	}
	for _, args := range tests {
		if _, err := execute(t, newViper(t), args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestGenesisValidateRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.toml")
	if err := os.WriteFile(path, []byte("chain_id = \"x\"\nbogus = 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, newViper(t), "genesis", "validate", path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSnapshotExportRestore(t *testing.T) {
	ctx := context.Background()
	kp, err := ed25519.FromSeed(bytes.Repeat([]byte{2}, 32))
	if err != nil {
		t.Fatal(err)
	}
	srcDir, dstDir, storeDir := t.TempDir(), t.TempDir(), t.TempDir()
	t.Setenv("HOME", t.TempDir())

	gen := genesis.Default("arc-snap")
	gen.Accounts = []genesis.Account{{Account: kp.Account(), Balance: balance.New(900)}}
	genPath := filepath.Join(t.TempDir(), "genesis.toml")
	var buf bytes.Buffer
	if err := gen.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(genPath, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	n, err := arcnode.New(ctx, &config.NodeConfig{
		Storage: config.BackendConfig{Backend: "sqlite", Config: map[string]string{"path": filepath.Join(srcDir, "state.db")}},
		Genesis: config.GenesisConfig{File: genPath},
	}, nil)
	if err != nil {
		t.Fatalf("arcnode.New: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatal(err)
	}

	snapViper := func(dataDir string) *viper.Viper {
		v := viper.New()
		v.Set("data_dir", dataDir)
		v.Set("output", "json")
		v.Set("snapshot.config", map[string]string{"path": storeDir})
		return v
	}

	out, err := execute(t, snapViper(srcDir), "snapshot", "export", "--backend", "sqlite")
	if err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	name, _ := env.Data["name"].(string)
	if !strings.HasPrefix(name, "arc-snap-") || env.Data["chain_id"] != "arc-snap" {
		t.Fatalf("export = %v", env.Data)
	}

	out, err = execute(t, snapViper(srcDir), "snapshot", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, name) {
		t.Errorf("list missing %s:\n%s", name, out)
	}

	if _, err := execute(t, snapViper(dstDir), "snapshot", "restore", name, "--backend", "sqlite"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := execute(t, snapViper(dstDir), "snapshot", "restore", name, "--backend", "sqlite"); err == nil {
		t.Error("expected restore into non-empty state to fail")
	}

	backend, err := arcnode.OpenBackend(ctx, &config.BackendConfig{
		Backend: "sqlite",
		Config:  map[string]string{"path": filepath.Join(dstDir, "state.db")},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()
	stats, err := backend.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Keys == 0 {
		t.Error("restored backend is empty")
	}
}
