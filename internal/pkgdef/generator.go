package pkgdef

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// luaIdent matches keys that can be written without brackets.
var luaIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Generator renders a Definition back to descriptor Lua code.
type Generator struct {
	indent string
}

// NewGenerator creates a new descriptor generator.
func NewGenerator() *Generator {
	return &Generator{indent: "  "}
}

// Generate renders def as a package.lua file. Map entries are written in
// sorted order so output is stable.
func (g *Generator) Generate(def *Definition) (string, error) {
	if def == nil {
		return "", fmt.Errorf("definition is nil")
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("-- %s %s, packaged for rez.\n", def.Name, def.Version))
	buf.WriteString("pkg = {\n")

	g.field(&buf, 1, "name", def.Name)
	g.field(&buf, 1, "version", def.Version)
	if def.Description != "" {
		g.field(&buf, 1, "description", def.Description)
	}
	if len(def.Authors) > 0 {
		quoted := make([]string, len(def.Authors))
		for i, a := range def.Authors {
			quoted[i] = quoteLuaString(a)
		}
		g.line(&buf, 1, "authors = { "+strings.Join(quoted, ", ")+" },")
	}
	g.field(&buf, 1, "uuid", def.UUID)
	buf.WriteString("\n")

	g.line(&buf, 1, "release = {")
	g.field(&buf, 2, "filename", def.Release.FileName)
	g.field(&buf, 2, "url", def.Release.URL)
	archives := make(map[string]string, len(def.Release.Archives))
	for os, f := range def.Release.Archives {
		archives[os] = string(f)
	}
	g.table(&buf, 2, "archives", archives)
	g.line(&buf, 1, "},")
	buf.WriteString("\n")

	g.line(&buf, 1, "env = {")
	g.field(&buf, 2, "root", def.Env.Root)
	g.field(&buf, 2, "dir", def.Env.Dir)
	g.field(&buf, 2, "bin", def.Env.Bin)
	g.line(&buf, 1, "},")

	if len(def.Executables) > 0 {
		buf.WriteString("\n")
		g.line(&buf, 1, "executables = {")
		for _, os := range sortedKeys(def.Executables) {
			g.table(&buf, 2, os, def.Executables[os])
		}
		g.line(&buf, 1, "},")
	}

	if v := def.Verify; v != nil {
		buf.WriteString("\n")
		g.line(&buf, 1, "verify = {")
		if len(v.SHA256) > 0 {
			g.table(&buf, 2, "sha256", v.SHA256)
		}
		if v.PGP != nil {
			g.line(&buf, 2, "pgp = {")
			g.field(&buf, 3, "signature", v.PGP.Signature)
			g.field(&buf, 3, "keyring", v.PGP.Keyring)
			g.line(&buf, 2, "},")
		}
		if v.Minisign != nil {
			g.line(&buf, 2, "minisign = {")
			g.field(&buf, 3, "signature", v.Minisign.Signature)
			g.field(&buf, 3, "public_key", v.Minisign.PublicKey)
			g.line(&buf, 2, "},")
		}
		g.line(&buf, 1, "},")
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func (g *Generator) line(buf *bytes.Buffer, depth int, s string) {
	buf.WriteString(strings.Repeat(g.indent, depth))
	buf.WriteString(s)
	buf.WriteString("\n")
}

func (g *Generator) field(buf *bytes.Buffer, depth int, key, value string) {
	g.line(buf, depth, luaKey(key)+" = "+quoteLuaString(value)+",")
}

func (g *Generator) table(buf *bytes.Buffer, depth int, key string, entries map[string]string) {
	if len(entries) == 0 {
		g.line(buf, depth, luaKey(key)+" = {},")
		return
	}
	g.line(buf, depth, luaKey(key)+" = {")
	for _, k := range sortedKeys(entries) {
		g.field(buf, depth+1, k, entries[k])
	}
	g.line(buf, depth, "},")
}

// luaKey writes key as a bare identifier when possible.
func luaKey(key string) string {
	if luaIdent.MatchString(key) {
		return key
	}
	return "[" + quoteLuaString(key) + "]"
}

func quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
