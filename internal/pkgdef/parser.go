package pkgdef

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/rezpkg/oidnpkg/internal/platform"
	"github.com/rezpkg/oidnpkg/internal/release"
)

//go:embed default.lua
var defaultDescriptor string

// DefaultSource returns the Lua source of the embedded OIDN descriptor.
func DefaultSource() string {
	return defaultDescriptor
}

// Parser parses package descriptors with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new descriptor parser. A nil detector leaves the
// platform table undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseError represents a descriptor parsing error with a friendly message.
type ParseError struct {
	Source  string // file path or "<embedded>"
	Message string // user-facing message
	Detail  string // raw Lua error
}

func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s: %s", e.Source, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// Load parses <sourceDir>/package.lua when it exists and falls back to the
// embedded default otherwise. The returned string names where the
// descriptor came from.
func (p *Parser) Load(ctx context.Context, sourceDir string) (*Definition, string, error) {
	if sourceDir != "" {
		path := filepath.Join(sourceDir, FileName)
		if _, err := os.Stat(path); err == nil {
			def, err := p.ParseFile(ctx, path)
			return def, path, err
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("stat descriptor: %w", err)
		}
	}

	def, err := p.parse(ctx, "<embedded>", defaultDescriptor)
	return def, "<embedded>", err
}

// ParseFile parses a descriptor file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Definition, error) {
	// #nosec G304 -- descriptor path comes from the rez source directory
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return p.parse(ctx, path, string(data))
}

// ParseString parses descriptor code held in memory.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Definition, error) {
	return p.parse(ctx, "", luaCode)
}

func (p *Parser) parse(ctx context.Context, source, luaCode string) (*Definition, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{Source: source, Message: "Lua error", Detail: err.Error()}
	}

	def, err := extractDefinition(L)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Source = source
		}
		return nil, err
	}

	if err := def.Validate(); err != nil {
		return nil, &ParseError{Source: source, Message: "descriptor validation failed", Detail: err.Error()}
	}

	return def, nil
}

// extractDefinition reads the global "pkg" table.
func extractDefinition(L *lua.LState) (*Definition, error) {
	root, ok := L.GetGlobal("pkg").(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'pkg' table",
			Detail:  fmt.Sprintf("expected table, got %s", L.GetGlobal("pkg").Type()),
		}
	}

	def := &Definition{
		Name:        getString(root, "name"),
		Version:     getString(root, "version"),
		Description: getString(root, "description"),
		UUID:        getString(root, "uuid"),
		Authors:     getStringList(root, "authors"),
	}

	if t, ok := root.RawGetString("release").(*lua.LTable); ok {
		def.Release.FileName = getString(t, "filename")
		def.Release.URL = getString(t, "url")
		if archives, ok := t.RawGetString("archives").(*lua.LTable); ok {
			def.Release.Archives = make(map[string]release.Format)
			for name, format := range getStringMap(archives) {
				def.Release.Archives[name] = release.Format(format)
			}
		}
	}

	if t, ok := root.RawGetString("env").(*lua.LTable); ok {
		def.Env = Env{
			Root: getString(t, "root"),
			Dir:  getString(t, "dir"),
			Bin:  getString(t, "bin"),
		}
	}

	if t, ok := root.RawGetString("executables").(*lua.LTable); ok {
		def.Executables = make(map[string]map[string]string)
		t.ForEach(func(key, value lua.LValue) {
			inner, ok := value.(*lua.LTable)
			if key.Type() != lua.LTString || !ok {
				return
			}
			def.Executables[key.String()] = getStringMap(inner)
		})
	}

	if t, ok := root.RawGetString("verify").(*lua.LTable); ok {
		def.Verify = extractVerify(t)
	}

	return def, nil
}

func extractVerify(t *lua.LTable) *Verify {
	v := &Verify{}

	if sums, ok := t.RawGetString("sha256").(*lua.LTable); ok {
		v.SHA256 = getStringMap(sums)
	}
	if pgp, ok := t.RawGetString("pgp").(*lua.LTable); ok {
		v.PGP = &PGP{
			Signature: getString(pgp, "signature"),
			Keyring:   getString(pgp, "keyring"),
		}
	}
	if ms, ok := t.RawGetString("minisign").(*lua.LTable); ok {
		v.Minisign = &Minisign{
			Signature: getString(ms, "signature"),
			PublicKey: getString(ms, "public_key"),
		}
	}

	if v.SHA256 == nil && v.PGP == nil && v.Minisign == nil {
		return nil
	}
	return v
}

func getString(t *lua.LTable, key string) string {
	if v, ok := t.RawGetString(key).(lua.LString); ok {
		return string(v)
	}
	return ""
}

// getStringList returns the string elements of an array field. nil values
// from platform conditionals are skipped.
func getStringList(t *lua.LTable, key string) []string {
	list, ok := t.RawGetString(key).(*lua.LTable)
	if !ok {
		return nil
	}
	var out []string
	list.ForEach(func(_, value lua.LValue) {
		if s, ok := value.(lua.LString); ok {
			out = append(out, string(s))
		}
	})
	return out
}

// getStringMap returns the string-keyed string entries of a table. The
// result is non-nil even for an empty table.
func getStringMap(t *lua.LTable) map[string]string {
	out := make(map[string]string)
	t.ForEach(func(key, value lua.LValue) {
		if key.Type() != lua.LTString {
			return
		}
		if s, ok := value.(lua.LString); ok {
			out[key.String()] = string(s)
		}
	})
	return out
}

// FormatError formats a ParseError for user display. Unless verbose, the
// Lua stack traceback is dropped.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		return err.Error()
	}
	if verbose {
		return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
	}
	detail := parseErr.Detail
	if idx := strings.Index(detail, "stack traceback"); idx > 0 {
		detail = strings.TrimSpace(detail[:idx])
	}
	if parseErr.Source != "" {
		return fmt.Sprintf("%s: %s: %s", parseErr.Source, parseErr.Message, detail)
	}
	return fmt.Sprintf("%s: %s", parseErr.Message, detail)
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
