package keys

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-ledger/internal/keyring"
)

func run(t *testing.T, v *viper.Viper, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := Entrypoint(v)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set("data_dir", t.TempDir())
	v.Set("output", "text")
	return v
}

func TestGenerateAndShow(t *testing.T) {
	v := newViper(t)

	out, err := run(t, v, "generate", "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(out, "Key created: alice") {
		t.Errorf("generate output = %q", out)
	}

	key, err := keyring.New(v.GetString("data_dir")).Load(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	out, err = run(t, v, "show", "alice")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, key.Account) || !strings.Contains(out, key.Metadata.PublicKey) {
		t.Errorf("show output missing key details:\n%s", out)
	}
}

func TestGenerateRefusesExistingAlias(t *testing.T) {
	v := newViper(t)
	if _, err := run(t, v, "generate", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, v, "generate", "alice"); err == nil {
		t.Fatal("expected error for existing alias")
	}
	if _, err := run(t, v, "generate", "alice", "--force"); err != nil {
		t.Fatalf("generate --force: %v", err)
	}
}

func TestGenerateDefaultSetsDefault(t *testing.T) {
	v := newViper(t)
	if _, err := run(t, v, "generate"); err != nil {
		t.Fatal(err)
	}
	if _, err := keyring.New(v.GetString("data_dir")).LoadDefault(context.Background()); err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
}

func TestImportIsDeterministic(t *testing.T) {
	v := newViper(t)
	seed := strings.Repeat("07", 32)

	if _, err := run(t, v, "import", seed, "bob"); err != nil {
		t.Fatalf("import: %v", err)
	}
	key, err := keyring.New(v.GetString("data_dir")).Load(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	want, err := keyring.New(t.TempDir()).Import(context.Background(), bytes.Repeat([]byte{7}, 32), "")
	if err != nil {
		t.Fatal(err)
	}
	if key.Account != want.Account {
		t.Errorf("account = %s, want %s", key.Account, want.Account)
	}

	if _, err := run(t, v, "import", "zz"); err == nil {
		t.Error("expected error for bad hex")
	}
}

func TestListJSON(t *testing.T) {
	v := newViper(t)
	if _, err := run(t, v, "generate", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, v, "default", "alice"); err != nil {
		t.Fatal(err)
	}

	v.Set("output", "json")
	out, err := run(t, v, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var env struct {
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(env.Data) != 1 || env.Data[0]["aliases"] != "alice" || env.Data[0]["default"] != "*" {
		t.Errorf("list = %v", env.Data)
	}
}

func TestListEmpty(t *testing.T) {
	out, err := run(t, newViper(t), "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No keys found") {
		t.Errorf("output = %q", out)
	}
}

func TestAliasAndDelete(t *testing.T) {
	v := newViper(t)
	if _, err := run(t, v, "generate", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, v, "alias", "work", "alice"); err != nil {
		t.Fatalf("alias: %v", err)
	}

	kr := keyring.New(v.GetString("data_dir"))
	a, err := kr.Load(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	w, err := kr.Load(context.Background(), "work")
	if err != nil || w.Account != a.Account {
		t.Fatalf("alias resolves to %v, %v", w, err)
	}

	if _, err := run(t, v, "delete", "work"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := kr.Load(context.Background(), "alice"); err == nil {
		t.Error("expected key to be deleted")
	}
}
