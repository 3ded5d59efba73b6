package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rezpkg/oidnpkg/internal/provenance"
	"github.com/rezpkg/oidnpkg/internal/transaction"
	"github.com/rezpkg/oidnpkg/internal/verify"
)

// InstallResult describes a completed install.
type InstallResult struct {
	Root    string   // <install>/<dir>
	Entries []string // top-level entries moved into Root
	Receipt *transaction.Receipt
}

// Install replaces <install>/<dir> with the contents of the unpacked
// archive in the build directory and records a receipt.
func (m *Manager) Install(ctx context.Context) (*InstallResult, error) {
	art, err := m.Artifact()
	if err != nil {
		return nil, err
	}
	if m.cfg.InstallPath == "" {
		return nil, fmt.Errorf("install path is not set")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extracted := m.extractedPath(art)
	if info, err := os.Stat(extracted); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoExtractedDir, extracted)
	}

	root := filepath.Join(m.cfg.InstallPath, m.cfg.Definition.Env.Dir)
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("remove previous install: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create install directory: %w", err)
	}

	entries, err := os.ReadDir(extracted)
	if err != nil {
		return nil, fmt.Errorf("read extracted directory: %w", err)
	}

	result := &InstallResult{Root: root}
	for _, e := range entries {
		src := filepath.Join(extracted, e.Name())
		dst := filepath.Join(root, e.Name())
		if err := movePath(src, dst); err != nil {
			return nil, fmt.Errorf("move %s: %w", e.Name(), err)
		}
		result.Entries = append(result.Entries, e.Name())
	}
	m.logger.Info("installed package", "root", root, "entries", len(result.Entries))

	result.Receipt = transaction.NewReceipt(m.receiptInput(ctx, art.URL, result.Entries), m.clock.Now())
	if err := result.Receipt.Save(m.cfg.InstallPath); err != nil {
		return nil, fmt.Errorf("write receipt: %w", err)
	}

	return result, nil
}

func (m *Manager) receiptInput(ctx context.Context, url string, entries []string) transaction.ReceiptInput {
	in := transaction.ReceiptInput{
		Package:      m.cfg.Definition.Name,
		PackageVer:   m.cfg.Coordinate.String(),
		Platform:     m.cfg.Platform.Descriptor().String(),
		URL:          url,
		Entries:      entries,
		SourceCommit: provenance.Lookup(ctx, m.cfg.SourcePath),
	}

	if m.built != nil {
		in.ArchiveSHA = m.built.ArchiveSHA256
		methods := make([]string, 0, len(m.built.Verified))
		for _, method := range m.built.Verified {
			methods = append(methods, method.String())
		}
		in.Verification = strings.Join(methods, ",")
	} else if art, err := m.Artifact(); err == nil {
		if sum, err := verify.SHA256File(m.archivePath(art)); err == nil {
			in.ArchiveSHA = sum
		}
	}

	return in
}
