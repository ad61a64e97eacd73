package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lmckone/dwsaver/internal/shared"
	_ "github.com/mattn/go-sqlite3"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Insert And Get", func(t *testing.T) {
		s := NewSQLiteStore(setupDB(t))

		err := s.Insert(ctx, Account{UserID: "user1", RefreshToken: "cipher1", Nonce: "nonce1"})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		account, err := s.Get(ctx, "user1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if account.RefreshToken != "cipher1" || account.Nonce != "nonce1" {
			t.Errorf("unexpected account: %+v", account)
		}
		if account.CreatedAt.IsZero() || account.UpdatedAt.IsZero() {
			t.Error("expected timestamps to be set")
		}
	})

	t.Run("Get Missing Account", func(t *testing.T) {
		s := NewSQLiteStore(setupDB(t))

		_, err := s.Get(ctx, "nobody")
		if !errors.Is(err, shared.ErrAccountNotFound) {
			t.Errorf("expected ErrAccountNotFound, got %v", err)
		}
	})

	t.Run("Duplicate Insert", func(t *testing.T) {
		s := NewSQLiteStore(setupDB(t))

		if err := s.Insert(ctx, Account{UserID: "user1", RefreshToken: "a", Nonce: "n"}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if err := s.Insert(ctx, Account{UserID: "user1", RefreshToken: "b", Nonce: "n"}); err == nil {
			t.Error("expected primary key violation")
		}
	})

	t.Run("List", func(t *testing.T) {
		s := NewSQLiteStore(setupDB(t))

		accounts, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(accounts) != 0 {
			t.Errorf("expected empty list, got %d", len(accounts))
		}

		for _, id := range []string{"user1", "user2", "user3"} {
			if err := s.Insert(ctx, Account{UserID: id, RefreshToken: "c", Nonce: "n"}); err != nil {
				t.Fatalf("insert failed: %v", err)
			}
		}

		accounts, err = s.List(ctx)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(accounts) != 3 {
			t.Errorf("expected 3 accounts, got %d", len(accounts))
		}
	})

	t.Run("UpdateToken", func(t *testing.T) {
		s := NewSQLiteStore(setupDB(t))

		if err := s.Insert(ctx, Account{UserID: "user1", RefreshToken: "old", Nonce: "old_nonce"}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		if err := s.UpdateToken(ctx, "user1", "new", "new_nonce"); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		account, err := s.Get(ctx, "user1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if account.RefreshToken != "new" || account.Nonce != "new_nonce" {
			t.Errorf("expected rotated credential, got %+v", account)
		}

		t.Run("Missing Account", func(t *testing.T) {
			err := s.UpdateToken(ctx, "nobody", "x", "y")
			if !errors.Is(err, shared.ErrAccountNotFound) {
				t.Errorf("expected ErrAccountNotFound, got %v", err)
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		s := NewSQLiteStore(setupDB(t))

		if err := s.Insert(ctx, Account{UserID: "user1", RefreshToken: "c", Nonce: "n"}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		if err := s.Delete(ctx, "user1"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := s.Get(ctx, "user1"); !errors.Is(err, shared.ErrAccountNotFound) {
			t.Errorf("expected account to be gone, got %v", err)
		}

		t.Run("Missing Account", func(t *testing.T) {
			err := s.Delete(ctx, "user1")
			if !errors.Is(err, shared.ErrAccountNotFound) {
				t.Errorf("expected ErrAccountNotFound, got %v", err)
			}
		})
	})

	t.Run("Count", func(t *testing.T) {
		s := NewSQLiteStore(setupDB(t))

		count, err := s.Count(ctx)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0, got %d", count)
		}

		if err := s.Insert(ctx, Account{UserID: "user1", RefreshToken: "c", Nonce: "n"}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if err := s.Insert(ctx, Account{UserID: "user2", RefreshToken: "c", Nonce: "n"}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		count, err = s.Count(ctx)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2, got %d", count)
		}

		// Count reflects deletions, there is no cached total.
		if err := s.Delete(ctx, "user1"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		count, _ = s.Count(ctx)
		if count != 1 {
			t.Errorf("expected 1 after delete, got %d", count)
		}
	})
}
