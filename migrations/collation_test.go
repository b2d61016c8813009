package migrations

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"
)

var mysqlIdentifierColumn = regexp.MustCompile(`^\s*(id|loan_application_id|credit_manager_id|performed_by_id)\s+VARCHAR`)

// Identifiers are compared byte for byte on every driver, so MySQL must not
// fall back to the case-insensitive utf8mb4 default.
func TestMySQLIdentifierColumnsUseBinaryCollation(t *testing.T) {
	paths, err := fs.Glob(files, "mysql/*.up.sql")
	if err != nil {
		t.Fatalf("glob mysql migrations: %v", err)
	}
	if len(paths) == 0 {
		t.Fatalf("no mysql migrations embedded")
	}

	checked := 0
	for _, path := range paths {
		body, err := fs.ReadFile(files, path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		for n, line := range strings.Split(string(body), "\n") {
			if !mysqlIdentifierColumn.MatchString(line) {
				continue
			}
			checked++
			if !strings.Contains(line, "COLLATE utf8mb4_bin") {
				t.Fatalf("%s:%d: identifier column without utf8mb4_bin: %s", path, n+1, strings.TrimSpace(line))
			}
		}
	}
	if checked < 8 {
		t.Fatalf("expected at least 8 identifier columns, checked %d", checked)
	}
}
