// Package transaction guards builds with a directory lock and records what
// an install placed on disk in an atomically written receipt.
package transaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	// ReceiptDir is the metadata directory created beside the package
	// directory in the install path.
	ReceiptDir = ".oidnpkg"

	// ReceiptFileName is the receipt file inside ReceiptDir.
	ReceiptFileName = "receipt.json"

	receiptVersion = 1
)

// ErrNoReceipt is returned by LoadReceipt when nothing was installed yet.
var ErrNoReceipt = errors.New("no install receipt")

// Receipt describes a completed install.
type Receipt struct {
	Version      int       `json:"version"` // schema version
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Package      string    `json:"package"`
	PackageVer   string    `json:"package_version"`
	Platform     string    `json:"platform"`
	URL          string    `json:"url"`
	ArchiveSHA   string    `json:"archive_sha256"`
	Verification string    `json:"verification,omitempty"`
	Entries      []string  `json:"entries"`
	SourceCommit string    `json:"source_commit,omitempty"`
}

// ReceiptInput carries the facts recorded in a receipt.
type ReceiptInput struct {
	Package      string
	PackageVer   string
	Platform     string
	URL          string
	ArchiveSHA   string
	Verification string
	Entries      []string
	SourceCommit string
}

// NewReceipt creates a receipt stamped with now. Entries are sorted.
func NewReceipt(in ReceiptInput, now time.Time) *Receipt {
	entries := append([]string{}, in.Entries...)
	sort.Strings(entries)

	return &Receipt{
		Version:      receiptVersion,
		ID:           uuid.New().String(),
		Timestamp:    now.UTC(),
		Package:      in.Package,
		PackageVer:   in.PackageVer,
		Platform:     in.Platform,
		URL:          in.URL,
		ArchiveSHA:   in.ArchiveSHA,
		Verification: in.Verification,
		Entries:      entries,
		SourceCommit: in.SourceCommit,
	}
}

// ReceiptPath returns the receipt location for an install path.
func ReceiptPath(installPath string) string {
	return filepath.Join(installPath, ReceiptDir, ReceiptFileName)
}

// Save writes the receipt under installPath atomically.
// Uses write-then-rename pattern for atomicity.
func (r *Receipt) Save(installPath string) error {
	dir := filepath.Join(installPath, ReceiptDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create receipt directory: %w", err)
	}

	finalPath := filepath.Join(dir, ReceiptFileName)
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temporary receipt: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename receipt: %w", err)
	}

	// Sync directory for durability
	df, err := os.Open(dir)
	if err == nil {
		if syncErr := df.Sync(); syncErr != nil {
			df.Close()
			return fmt.Errorf("sync directory: %w", syncErr)
		}
		df.Close()
	}

	return nil
}

// LoadReceipt reads the receipt of an install path.
func LoadReceipt(installPath string) (*Receipt, error) {
	data, err := os.ReadFile(ReceiptPath(installPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoReceipt
		}
		return nil, fmt.Errorf("read receipt: %w", err)
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &r, nil
}
