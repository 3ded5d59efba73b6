package transaction

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestNewReceipt(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	r := NewReceipt(ReceiptInput{
		Package:    "IntelOpenImageDenoise",
		PackageVer: "2.3.1",
		Platform:   "x64.windows",
		Entries:    []string{"lib", "bin", "include"},
	}, now)

	if r.Version != receiptVersion {
		t.Errorf("Version = %d", r.Version)
	}
	if _, err := uuid.Parse(r.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", r.ID, err)
	}
	if !r.Timestamp.Equal(now) || r.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want %v in UTC", r.Timestamp, now)
	}
	if diff := cmp.Diff([]string{"bin", "include", "lib"}, r.Entries); diff != "" {
		t.Errorf("Entries mismatch (-want +got):\n%s", diff)
	}
}

func TestReceipt_SaveLoad(t *testing.T) {
	install := t.TempDir()

	r := NewReceipt(ReceiptInput{
		Package:      "IntelOpenImageDenoise",
		PackageVer:   "2.3.1",
		Platform:     "x64.windows",
		URL:          "https://github.com/RenderKit/oidn/releases/download/v2.3.1/oidn-2.3.1.x64.windows.zip",
		ArchiveSHA:   "abc123",
		Verification: "sha256",
		Entries:      []string{"bin"},
		SourceCommit: "0123456789abcdef",
	}, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))

	if err := r.Save(install); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(ReceiptPath(install) + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary receipt left behind")
	}

	loaded, err := LoadReceipt(install)
	if err != nil {
		t.Fatalf("LoadReceipt failed: %v", err)
	}
	if diff := cmp.Diff(r, loaded); diff != "" {
		t.Errorf("receipt mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadReceipt_Missing(t *testing.T) {
	_, err := LoadReceipt(t.TempDir())
	if !errors.Is(err, ErrNoReceipt) {
		t.Errorf("expected ErrNoReceipt, got %v", err)
	}
}

func TestLoadReceipt_Corrupt(t *testing.T) {
	install := t.TempDir()
	if err := os.MkdirAll(install+"/"+ReceiptDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ReceiptPath(install), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadReceipt(install)
	if err == nil || errors.Is(err, ErrNoReceipt) {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}
