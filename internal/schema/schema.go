// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/apex/log"

	"github.com/mrdp/mrdp/internal/db"
)

//go:embed sql/*.sql
var scripts embed.FS

// Target names a database the DDL applies to.
type Target string

const (
	OLTP      Target = "oltp"
	Warehouse Target = "warehouse"
)

// Targets lists every known target.
var Targets = []Target{OLTP, Warehouse}

// ParseTarget maps a name onto a Target.
func ParseTarget(s string) (Target, error) {
	for _, t := range Targets {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown schema target %q (want oltp or warehouse)", s)
}

// Script returns the raw DDL for t.
func Script(t Target) (string, error) {
	b, err := scripts.ReadFile("sql/" + string(t) + ".sql")
	if err != nil {
		return "", fmt.Errorf("unknown schema target %q", t)
	}
	return string(b), nil
}

// Statements returns the DDL for t split into individual statements.
func Statements(t Target) ([]string, error) {
	s, err := Script(t)
	if err != nil {
		return nil, err
	}
	return Split(s), nil
}

// Split breaks a SQL script into statements on top-level semicolons.
// Semicolons inside quoted strings, quoted identifiers, dollar-quoted bodies
// and comments do not terminate a statement. Comment-only fragments are
// dropped.
func Split(script string) []string {
	var (
		out     []string
		cur     strings.Builder
		content bool
	)
	flush := func() {
		if content {
			out = append(out, strings.TrimSpace(cur.String()))
		}
		cur.Reset()
		content = false
	}

	r := []rune(script)
	for i := 0; i < len(r); i++ {
		c := r[i]
		switch {
		case c == '-' && i+1 < len(r) && r[i+1] == '-':
			for i < len(r) && r[i] != '\n' {
				i++
			}
			cur.WriteRune('\n')
		case c == '/' && i+1 < len(r) && r[i+1] == '*':
			i += 2
			for i+1 < len(r) && !(r[i] == '*' && r[i+1] == '/') {
				i++
			}
			i++
			cur.WriteRune(' ')
		case c == '\'' || c == '"':
			j := i + 1
			for j < len(r) {
				if r[j] == c {
					if j+1 < len(r) && r[j+1] == c {
						j += 2
						continue
					}
					break
				}
				j++
			}
			end := min(j+1, len(r))
			cur.WriteString(string(r[i:end]))
			content = true
			i = end - 1
		case c == '$':
			tag, ok := dollarTag(r, i)
			if !ok {
				cur.WriteRune(c)
				content = true
				continue
			}
			body := string(r[i+len(tag):])
			k := strings.Index(body, string(tag))
			end := len(r)
			if k >= 0 {
				end = i + len(tag) + len([]rune(body[:k])) + len(tag)
			}
			cur.WriteString(string(r[i:end]))
			content = true
			i = end - 1
		case c == ';':
			flush()
		default:
			cur.WriteRune(c)
			if !isSpace(c) {
				content = true
			}
		}
	}
	flush()
	return out
}

// dollarTag returns the $tag$ opener starting at i, if any.
func dollarTag(r []rune, i int) ([]rune, bool) {
	j := i + 1
	for j < len(r) && (r[j] == '_' || r[j] >= 'a' && r[j] <= 'z' || r[j] >= 'A' && r[j] <= 'Z' || r[j] >= '0' && r[j] <= '9') {
		j++
	}
	if j < len(r) && r[j] == '$' {
		return r[i : j+1], true
	}
	return nil, false
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Apply executes every statement for t in order and returns how many ran.
func Apply(ctx context.Context, ex db.Execer, t Target) (int, error) {
	stmts, err := Statements(t)
	if err != nil {
		return 0, err
	}
	for i, s := range stmts {
		if _, err := ex.ExecContext(ctx, s); err != nil {
			return i, fmt.Errorf("statement %d of %s failed: %w", i+1, t, err)
		}
		log.Debugf("applied %s statement %d/%d", t, i+1, len(stmts))
	}
	return len(stmts), nil
}
