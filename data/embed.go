// Package data holds the SQL that prepares a MariaDB server for the service
package data

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed initdb/mariadb/001-ddl-database.sql
var InitdbMariaDBDatabase string

//go:embed initdb/mariadb/003-ddl-privileges.sql
var InitdbMariaDBPrivileges string

// InitParams fills the placeholders in the init scripts
type InitParams struct {
	Database string
	User     string
	Password string
}

// RenderMariaDBInit returns the init scripts, in order, with params applied
func RenderMariaDBInit(params InitParams) ([]string, error) {
	for name, v := range map[string]string{"database": params.Database, "user": params.User} {
		if v == "" || strings.ContainsAny(v, "`'\";") {
			return nil, fmt.Errorf("invalid %s name %q", name, v)
		}
	}
	if strings.ContainsAny(params.Password, "'\\") {
		return nil, fmt.Errorf("password may not contain quotes or backslashes")
	}

	var scripts []string
	for _, src := range []string{InitdbMariaDBDatabase, InitdbMariaDBPrivileges} {
		tmpl, err := template.New("initdb").Parse(src)
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		if err := tmpl.Execute(&b, params); err != nil {
			return nil, err
		}
		scripts = append(scripts, b.String())
	}
	return scripts, nil
}

// SplitStatements breaks a script into statements, dropping -- comments.
// Semicolons and comment markers inside quotes are kept.
func SplitStatements(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		line = stripComment(line)
		for i := 0; i < len(line); i++ {
			ch := line[i]
			if ch == '\'' || ch == '"' || ch == '`' {
				end := strings.IndexByte(line[i+1:], ch)
				if end < 0 {
					cur.WriteString(line[i:])
					break
				}
				cur.WriteString(line[i : i+end+2])
				i += end + 1
				continue
			}
			if ch == ';' {
				if s := strings.TrimSpace(cur.String()); s != "" {
					stmts = append(stmts, s)
				}
				cur.Reset()
				continue
			}
			cur.WriteByte(ch)
		}
		cur.WriteByte('\n')
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '-' && i+1 < len(line) && line[i+1] == '-':
			return line[:i]
		}
	}
	return line
}
