package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"gnarhub-backend/internal/models"
	"gnarhub-backend/internal/repository"
)

func newSession(id, date, start string) *models.Session {
	now := time.Now()
	return &models.Session{
		ID: id, FilmerID: "f1", Status: models.SessionOpen, MountainID: "loon",
		Date: date, StartTime: start, EndTime: "16:00",
		TerrainTags: []models.TerrainTag{models.TerrainPark}, Rate: 60,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.Sessions().Create(ctx, newSession("s1", "2030-01-01", "10:00")); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		sess, err := tx.Sessions().GetForUpdate(ctx, "s1")
		if err != nil {
			return err
		}
		sess.Status = models.SessionBooked
		sess.RiderID = models.StringPtr("r1")
		if err := tx.Sessions().Update(ctx, sess); err != nil {
			return err
		}
		if err := tx.Sessions().Create(ctx, newSession("s2", "2030-01-02", "09:00")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	sess, err := s.Sessions().GetByID(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != models.SessionOpen || sess.RiderID != nil {
		t.Fatalf("expected rollback to open session, got %s rider=%v", sess.Status, sess.RiderID)
	}
	if _, err := s.Sessions().GetByID(ctx, "s2"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected s2 to be discarded, got %v", err)
	}
}

func TestRunInTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	err := s.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		// nested calls reuse the outer transaction
		return tx.RunInTx(ctx, func(ctx context.Context, inner repository.Store) error {
			return inner.Sessions().Create(ctx, newSession("s1", "2030-01-01", "10:00"))
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Sessions().GetByID(ctx, "s1"); err != nil {
		t.Fatalf("expected committed session, got %v", err)
	}
}

func TestReadsAreIsolatedCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Sessions().Create(ctx, newSession("s1", "2030-01-01", "10:00"))

	got, _ := s.Sessions().GetByID(ctx, "s1")
	got.TerrainTags[0] = models.TerrainGroomers
	got.Rate = 1

	again, _ := s.Sessions().GetByID(ctx, "s1")
	if again.Rate != 60 || again.TerrainTags[0] != models.TerrainPark {
		t.Fatalf("stored session was mutated through a read copy: %+v", again)
	}
}

func TestSessionListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Sessions().Create(ctx, newSession("late", "2030-01-02", "09:00"))
	_ = s.Sessions().Create(ctx, newSession("early-pm", "2030-01-01", "13:00"))
	_ = s.Sessions().Create(ctx, newSession("early-am", "2030-01-01", "08:00"))
	groomers := newSession("groomers", "2030-01-03", "08:00")
	groomers.TerrainTags = []models.TerrainTag{models.TerrainGroomers}
	_ = s.Sessions().Create(ctx, groomers)

	list, err := s.Sessions().List(ctx, repository.SessionFilter{
		Status:      models.SessionOpen,
		TerrainTags: []models.TerrainTag{models.TerrainPark, models.TerrainAllMountain},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"early-am", "early-pm", "late"}
	if len(list) != len(want) {
		t.Fatalf("expected %d sessions, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, list[i].ID)
		}
	}
}

func TestConversationCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()
	first, err := s.Conversations().CreateIfAbsent(ctx, &models.Conversation{
		ID: "c1", SessionID: "s1", Participants: []string{"a", "b"}, Key: "s1:a:b", CreatedAt: now, LastMessageAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Conversations().CreateIfAbsent(ctx, &models.Conversation{
		ID: "c2", SessionID: "s1", Participants: []string{"a", "b"}, Key: "s1:a:b", CreatedAt: now, LastMessageAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != "c1" || second.ID != "c1" {
		t.Fatalf("expected both calls to resolve to c1, got %s and %s", first.ID, second.ID)
	}
}

func TestReviewUniquePerSessionRider(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	r := &models.Review{ID: "rv1", SessionID: "s1", FilmerID: "f1", RiderID: "r1", Rating: 5, CreatedAt: time.Now()}
	if err := s.Reviews().Create(ctx, r); err != nil {
		t.Fatal(err)
	}
	dup := *r
	dup.ID = "rv2"
	if err := s.Reviews().Create(ctx, &dup); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
