package migrations

import (
	"strings"
	"testing"
)

func TestStatements(t *testing.T) {
	input := `-- comment line
CREATE TABLE a (x UInt8) ENGINE = Memory;

CREATE TABLE b (
    y String DEFAULT 'a;b', -- trailing; comment
    z String DEFAULT 'it''s'
) ENGINE = Memory;
`
	stmts := statements(input)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (x UInt8) ENGINE = Memory" {
		t.Errorf("unexpected first statement: %q", stmts[0])
	}
	for _, want := range []string{"'a;b'", "'it''s'"} {
		if !strings.Contains(stmts[1], want) {
			t.Errorf("second statement lost literal %s: %q", want, stmts[1])
		}
	}
	if strings.Contains(stmts[1], "trailing") {
		t.Errorf("comment must be dropped: %q", stmts[1])
	}
}

func TestStatements_NoTrailingSemicolon(t *testing.T) {
	stmts := statements("SELECT 1;\nSELECT 2")
	if len(stmts) != 2 || stmts[1] != "SELECT 2" {
		t.Errorf("unexpected statements %q", stmts)
	}
}

func TestLoadScripts(t *testing.T) {
	for _, tc := range []struct {
		name string
		load func() ([]script, error)
		want []string
	}{
		{"postgres", func() ([]script, error) { return loadScripts(PostgresFS, "postgres") }, []string{"001_alerts.sql", "002_trade_results.sql"}},
		{"clickhouse", func() ([]script, error) { return loadScripts(ClickhouseFS, "clickhouse") }, []string{"001_candles.sql"}},
	} {
		scripts, err := tc.load()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(scripts) != len(tc.want) {
			t.Fatalf("%s: expected %d scripts, got %d", tc.name, len(tc.want), len(scripts))
		}
		for i, s := range scripts {
			if s.Name != tc.want[i] {
				t.Errorf("%s[%d] = %s, want %s", tc.name, i, s.Name, tc.want[i])
			}
			if s.SQL == "" {
				t.Errorf("%s: empty script %s", tc.name, s.Name)
			}
		}
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://localhost:9000/market")
	if err != nil || db != "market" {
		t.Errorf("expected market, got %q (%v)", db, err)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for missing database")
	}
}
