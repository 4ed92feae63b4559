package ctl

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/text/language"

	"churchbook/internal/core"
	"churchbook/internal/log"
	"churchbook/internal/services"
	"churchbook/internal/storage/memory"
)

var fixedNow = time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T) *services.LedgerService {
	t.Helper()
	svc, err := services.NewLedgerService(context.Background(), memory.New(nil), services.Options{
		Locale:   language.Korean,
		Location: time.UTC,
		Logger:   log.Discard(),
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewLedgerService: %v", err)
	}
	return svc
}

func seed(t *testing.T, svc *services.LedgerService) {
	t.Helper()
	ctx := context.Background()
	if err := svc.SetChurchName(ctx, "Grace Church"); err != nil {
		t.Fatalf("SetChurchName: %v", err)
	}
	m, err := svc.AddMember(ctx, "Kim", core.Elder)
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if _, err := svc.AddTransaction(ctx, core.Transaction{
		Type: core.Income, Date: "2024-06-09", Category: core.Tithe, Amount: 10000, MemberID: &m.ID,
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
}

// run executes one command line against svc and returns its exit status and output.
func run(t *testing.T, svc *services.LedgerService, args ...string) (subcommands.ExitStatus, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	env := &Env{
		Open:     func(context.Context) (Ledger, error) { return svc, nil },
		Out:      &out,
		Err:      &errOut,
		Currency: core.DefaultCurrency,
	}
	fs := flag.NewFlagSet("churchbookctl", flag.ContinueOnError)
	cdr := subcommands.NewCommander(fs, "churchbookctl")
	cdr.Output = &errOut
	cdr.Error = &errOut
	Register(cdr, env)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}
	status := cdr.Execute(context.Background())
	return status, out.String(), errOut.String()
}

func TestSummary(t *testing.T) {
	svc := newService(t)
	seed(t, svc)

	status, out, errOut := run(t, svc, "summary", "-rows", "5")
	if status != subcommands.ExitSuccess {
		t.Fatalf("status = %v, stderr %q", status, errOut)
	}
	for _, want := range []string{"Grace Church", "As of 2024-06-10", "Today's balance", "Year 2024", core.Tithe, "Kim", "100.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryCategoryFilter(t *testing.T) {
	svc := newService(t)
	seed(t, svc)

	status, out, errOut := run(t, svc, "summary", "-category", core.MissionOffering)
	if status != subcommands.ExitSuccess {
		t.Fatalf("status = %v, stderr %q", status, errOut)
	}
	offerings := out[strings.Index(out, "Offerings"):strings.Index(out, "Building offering")]
	if !strings.Contains(offerings, core.MissionOffering) || strings.Contains(offerings, core.Tithe) {
		t.Errorf("offerings section should list only %s:\n%s", core.MissionOffering, offerings)
	}
}

func TestSummaryRejectsNegativeFlags(t *testing.T) {
	svc := newService(t)
	status, _, errOut := run(t, svc, "summary", "-rows", "-1")
	if status != subcommands.ExitUsageError {
		t.Fatalf("status = %v, want usage error", status)
	}
	if !strings.Contains(errOut, "must not be negative") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newService(t)
	seed(t, src)
	path := filepath.Join(t.TempDir(), "export.json")

	if status, _, errOut := run(t, src, "export", "-o", path); status != subcommands.ExitSuccess {
		t.Fatalf("export status = %v, stderr %q", status, errOut)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export file: %v", err)
	}

	dst := newService(t)
	status, out, errOut := run(t, dst, "import", "-i", path)
	if status != subcommands.ExitSuccess {
		t.Fatalf("import status = %v, stderr %q", status, errOut)
	}
	if !strings.Contains(out, "Imported 1 members and 1 transactions") {
		t.Errorf("import output = %q", out)
	}
	st := dst.State(context.Background())
	if len(st.Members) != 1 || len(st.Transactions) != 1 {
		t.Errorf("imported state has %d members and %d transactions", len(st.Members), len(st.Transactions))
	}
}

func TestImportRequiresInput(t *testing.T) {
	status, _, _ := run(t, newService(t), "import")
	if status != subcommands.ExitUsageError {
		t.Fatalf("status = %v, want usage error", status)
	}
}

func TestImportChecksPIN(t *testing.T) {
	svc := newService(t)
	seed(t, svc)
	path := filepath.Join(t.TempDir(), "export.json")
	if status, _, _ := run(t, svc, "export", "-o", path); status != subcommands.ExitSuccess {
		t.Fatal("export failed")
	}
	if err := svc.SetPIN(context.Background(), "", "1234"); err != nil {
		t.Fatalf("SetPIN: %v", err)
	}

	status, _, errOut := run(t, svc, "import", "-i", path)
	if status != subcommands.ExitFailure {
		t.Fatalf("status = %v, want failure", status)
	}
	if !strings.Contains(errOut, services.ErrPINRequired.Error()) {
		t.Errorf("stderr = %q", errOut)
	}

	if status, _, errOut := run(t, svc, "import", "-i", path, "-pin", "1234"); status != subcommands.ExitSuccess {
		t.Fatalf("status = %v, stderr %q", status, errOut)
	}
}

func TestSnapshotAndRestore(t *testing.T) {
	svc := newService(t)
	seed(t, svc)
	ctx := context.Background()

	status, out, errOut := run(t, svc, "snapshot")
	if status != subcommands.ExitSuccess {
		t.Fatalf("snapshot status = %v, stderr %q", status, errOut)
	}
	snaps, err := svc.ListSnapshots(ctx)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("ListSnapshots = %d, %v", len(snaps), err)
	}
	id := snaps[0].ID
	if !strings.Contains(out, id) {
		t.Errorf("snapshot output %q does not name %s", out, id)
	}

	_, out, _ = run(t, svc, "snapshot", "-list")
	if !strings.Contains(out, id) || !strings.Contains(out, "TRANSACTIONS") {
		t.Errorf("snapshot -list output:\n%s", out)
	}

	_, out, _ = run(t, svc, "snapshot", "-show", id)
	if !strings.Contains(out, `"timestamp"`) || !strings.Contains(out, core.Tithe) {
		t.Errorf("snapshot -show output:\n%s", out)
	}

	if status, _, _ := run(t, svc, "snapshot", "-list", "-show", id); status != subcommands.ExitUsageError {
		t.Errorf("-list with -show status = %v, want usage error", status)
	}

	if err := svc.DeleteTransaction(ctx, svc.State(ctx).Transactions[0].ID, ""); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if status, _, errOut := run(t, svc, "restore", "-id", id); status != subcommands.ExitSuccess {
		t.Fatalf("restore status = %v, stderr %q", status, errOut)
	}
	if got := len(svc.State(ctx).Transactions); got != 1 {
		t.Errorf("transactions after restore = %d, want 1", got)
	}
}

func TestRestoreUnknownSnapshot(t *testing.T) {
	status, _, errOut := run(t, newService(t), "restore", "-id", "missing")
	if status != subcommands.ExitFailure {
		t.Fatalf("status = %v, want failure", status)
	}
	if !strings.Contains(errOut, "Error:") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestOpenFailure(t *testing.T) {
	var errOut bytes.Buffer
	env := &Env{
		Open: func(context.Context) (Ledger, error) { return nil, errors.New("no database") },
		Out:  &bytes.Buffer{},
		Err:  &errOut,
	}
	cmd := &snapshotCmd{env: env}
	if status := cmd.Execute(context.Background(), flag.NewFlagSet("snapshot", flag.ContinueOnError)); status != subcommands.ExitFailure {
		t.Fatalf("status = %v, want failure", status)
	}
	if !strings.Contains(errOut.String(), "no database") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestWriteSnapshotsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSnapshots(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "No snapshots\n" {
		t.Errorf("got %q", buf.String())
	}
}
