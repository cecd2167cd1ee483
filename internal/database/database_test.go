package database

import "testing"

func TestOpenMemoryRunsMigrations(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "chores", "rewards", "transactions", "notifications", "push_subscriptions"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := OpenDriver("oracle", "x"); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestPointsCannotGoNegative(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`INSERT INTO users (username, points) VALUES ('kid', 0)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.Exec(`UPDATE users SET points = -1 WHERE username = 'kid'`); err == nil {
		t.Error("expected CHECK constraint to reject negative points")
	}
}
