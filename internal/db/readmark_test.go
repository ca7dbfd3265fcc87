package db

import (
	"testing"

	"companion-chat/internal/models"
)

func TestSetLastRead_ForwardOnly(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	room := createTestRoom(t, db)

	if err := db.SetLastRead("local", room.ID, 100.5); err != nil {
		t.Fatalf("failed to set read mark: %v", err)
	}

	// An older write never moves the mark backwards
	if err := db.SetLastRead("local", room.ID, 50.0); err != nil {
		t.Fatalf("stale write should not error: %v", err)
	}

	lastRead, err := db.GetLastRead("local", room.ID)
	if err != nil {
		t.Fatalf("failed to get read mark: %v", err)
	}
	if lastRead != 100.5 {
		t.Errorf("expected read mark 100.5, got %v", lastRead)
	}

	// A newer write advances it
	if err := db.SetLastRead("local", room.ID, 200.25); err != nil {
		t.Fatalf("failed to advance read mark: %v", err)
	}
	lastRead, err = db.GetLastRead("local", room.ID)
	if err != nil {
		t.Fatalf("failed to get read mark: %v", err)
	}
	if lastRead != 200.25 {
		t.Errorf("expected read mark 200.25, got %v", lastRead)
	}
}

func TestSetLastRead_Idempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	room := createTestRoom(t, db)

	if err := db.SetLastRead("local", room.ID, 42.0); err != nil {
		t.Fatalf("failed to set read mark: %v", err)
	}
	if err := db.SetLastRead("local", room.ID, 42.0); err != nil {
		t.Fatalf("repeated write should not error: %v", err)
	}

	lastRead, err := db.GetLastRead("local", room.ID)
	if err != nil {
		t.Fatalf("failed to get read mark: %v", err)
	}
	if lastRead != 42.0 {
		t.Errorf("expected read mark 42.0, got %v", lastRead)
	}
}

func TestGetLastRead_NeverViewed(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	room := createTestRoom(t, db)

	lastRead, err := db.GetLastRead("local", room.ID)
	if err != nil {
		t.Fatalf("failed to get read mark: %v", err)
	}
	if lastRead != 0 {
		t.Errorf("expected 0 for never-viewed room, got %v", lastRead)
	}
}

func TestCountUnread_DerivedFromMessages(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	room := createTestRoom(t, db)
	persona, err := db.CreatePersona("Mika", "", "voice")
	if err != nil {
		t.Fatalf("failed to create persona: %v", err)
	}

	// User's own messages never count as unread
	if _, err := db.CreateMessage(room.ID, models.SenderTypeUser, nil, "", "", "my message"); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}

	first, err := db.CreateMessage(room.ID, models.SenderTypePersona, &persona.ID, persona.Name, "", "reply 1")
	if err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	if _, err := db.CreateMessage(room.ID, models.SenderTypePersona, &persona.ID, persona.Name, "", "reply 2"); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}

	count, err := db.CountUnread("local", room.ID)
	if err != nil {
		t.Fatalf("failed to count unread: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 unread, got %d", count)
	}

	// Marking read through the first reply leaves only the second
	if err := db.SetLastRead("local", room.ID, first.Timestamp); err != nil {
		t.Fatalf("failed to set read mark: %v", err)
	}
	count, err = db.CountUnread("local", room.ID)
	if err != nil {
		t.Fatalf("failed to count unread: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 unread, got %d", count)
	}
}

func TestCountUnread_PerUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	room := createTestRoom(t, db)
	persona, err := db.CreatePersona("Mika", "", "voice")
	if err != nil {
		t.Fatalf("failed to create persona: %v", err)
	}

	msg, err := db.CreateMessage(room.ID, models.SenderTypePersona, &persona.ID, persona.Name, "", "hello")
	if err != nil {
		t.Fatalf("failed to create message: %v", err)
	}

	if err := db.SetLastRead("alice", room.ID, msg.Timestamp); err != nil {
		t.Fatalf("failed to set read mark: %v", err)
	}

	aliceCount, err := db.CountUnread("alice", room.ID)
	if err != nil {
		t.Fatalf("failed to count unread: %v", err)
	}
	if aliceCount != 0 {
		t.Errorf("expected 0 unread for alice, got %d", aliceCount)
	}

	bobCount, err := db.CountUnread("bob", room.ID)
	if err != nil {
		t.Fatalf("failed to count unread: %v", err)
	}
	if bobCount != 1 {
		t.Errorf("expected 1 unread for bob, got %d", bobCount)
	}
}
