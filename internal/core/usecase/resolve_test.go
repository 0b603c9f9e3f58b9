package usecase

import (
	"context"
	"testing"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

func newResolveFixture(t *testing.T) (*ResolveUseCase, *memorySessionRepo, *memoryStorage, *domain.BatchSession, *GroupingEngine) {
	t.Helper()
	repo := newMemorySessionRepo()
	storage := newMemoryStorage()
	engine := NewGroupingEngine(domain.DefaultGroupingRules())
	uc := NewResolveUseCase(repo, storage, engine, testLogger())

	session := newGroupingSession()
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatal(err)
	}
	return uc, repo, storage, session, engine
}

func TestResolveConfirmSamePersists(t *testing.T) {
	uc, repo, _, session, engine := newResolveFixture(t)
	first := addDoc(session, "f1", 1, "laudo-tc", domain.ExtractedMetadata{PatientName: "Maria José Silva"})
	key, _ := engine.Assign(session, first)
	second := addDoc(session, "f2", 2, "laudo-tc", domain.ExtractedMetadata{PatientName: "João Carlos Souza"})
	engine.Assign(session, second)

	got, err := uc.Resolve(context.Background(), session.ID, key, domain.ResolveConfirmSame)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !got.Group(key).Contains("f2") {
		t.Fatal("pending document not merged")
	}

	persisted, _ := repo.Get(context.Background(), session.ID)
	if persisted.Group(key).Status != domain.GroupConsistent {
		t.Fatalf("persisted status %s, want consistent", persisted.Group(key).Status)
	}
}

func TestPinClassificationReassigns(t *testing.T) {
	uc, repo, _, session, engine := newResolveFixture(t)
	doc := addDoc(session, "f1", 1, "laudo-tc", domain.ExtractedMetadata{})
	engine.Assign(session, doc)

	if err := uc.PinClassification(context.Background(), session.ID, "f1", domain.ClassBlankPage); err != nil {
		t.Fatalf("pin classification: %v", err)
	}
	persisted, _ := repo.Get(context.Background(), session.ID)
	got := persisted.Document("f1")
	if got.Class != domain.ClassBlankPage || got.ClassSource != domain.FieldManual {
		t.Fatalf("classification not pinned: %+v", got)
	}
	// Pinning blank-page removes the document from grouping.
	for _, g := range persisted.Groups {
		if g.Contains("f1") {
			t.Fatalf("blank-pinned document still grouped: %+v", g)
		}
	}
}

func TestPinGroupHintMovesDocument(t *testing.T) {
	uc, repo, _, session, engine := newResolveFixture(t)
	meta := domain.ExtractedMetadata{PatientName: "Maria José Silva"}
	first := addDoc(session, "f1", 1, "laudo-a", meta)
	keyA, _ := engine.Assign(session, first)
	second := addDoc(session, "f2", 2, "laudo-b", meta)
	engine.Assign(session, second)

	if err := uc.PinGroupHint(context.Background(), session.ID, "f2", "laudo-a"); err != nil {
		t.Fatalf("pin hint: %v", err)
	}
	persisted, _ := repo.Get(context.Background(), session.ID)
	if !persisted.Group(keyA).Contains("f2") {
		t.Fatalf("document did not move to %s: %+v", keyA, persisted.Groups)
	}
	if persisted.Document("f2").HintSource != domain.FieldManual {
		t.Fatal("hint source not marked manual")
	}
}

func TestPinRequiresAnalyzedDocument(t *testing.T) {
	uc, _, _, session, _ := newResolveFixture(t)
	session.Files = append(session.Files, domain.BatchFile{ID: "raw", OrderIndex: 1})

	err := uc.PinClassification(context.Background(), session.ID, "raw", domain.ClassOther)
	if !domain.IsKind(err, domain.ErrFileNotFound) {
		t.Fatalf("got %v, want file not found", err)
	}
}

func TestUserMutationsRejectedWhileProcessing(t *testing.T) {
	uc, repo, _, session, engine := newResolveFixture(t)
	first := addDoc(session, "f1", 1, "laudo-tc", domain.ExtractedMetadata{PatientName: "Maria José Silva"})
	key, _ := engine.Assign(session, first)
	second := addDoc(session, "f2", 2, "laudo-tc", domain.ExtractedMetadata{PatientName: "João Carlos Souza"})
	engine.Assign(session, second)

	// While the worker drives the batch it periodically rewrites the whole
	// session row; user mutations accepted now would be overwritten by the
	// next save, so they are refused until the batch ends.
	session.Status = domain.SessionProcessing
	if err := repo.Save(context.Background(), session); err != nil {
		t.Fatal(err)
	}

	if _, err := uc.Resolve(context.Background(), session.ID, key, domain.ResolveConfirmSame); !domain.IsKind(err, domain.ErrAlreadyRunning) {
		t.Fatalf("resolve during processing: got %v, want already running", err)
	}
	if err := uc.PinClassification(context.Background(), session.ID, "f1", domain.ClassOther); !domain.IsKind(err, domain.ErrAlreadyRunning) {
		t.Fatalf("pin classification during processing: got %v, want already running", err)
	}
	if err := uc.PinGroupHint(context.Background(), session.ID, "f1", "laudo-b"); !domain.IsKind(err, domain.ErrAlreadyRunning) {
		t.Fatalf("pin hint during processing: got %v, want already running", err)
	}
	if err := uc.DeleteSession(context.Background(), session.ID); !domain.IsKind(err, domain.ErrAlreadyRunning) {
		t.Fatalf("delete during processing: got %v, want already running", err)
	}

	persisted, _ := repo.Get(context.Background(), session.ID)
	if persisted.Group(key).Status != domain.GroupBlocked {
		t.Fatalf("blocked group mutated during processing: %+v", persisted.Group(key))
	}
	if persisted.Document("f1").ClassSource == domain.FieldManual {
		t.Fatal("classification pinned despite running batch")
	}
}

func TestDeleteSessionRemovesPayloads(t *testing.T) {
	uc, repo, storage, session, _ := newResolveFixture(t)
	session.Files = append(session.Files,
		domain.BatchFile{ID: "f1", StorageKey: "sess-1/f1"},
		domain.BatchFile{ID: "f2", StorageKey: "sess-1/f2"},
	)
	if err := repo.Save(context.Background(), session); err != nil {
		t.Fatal(err)
	}

	if err := uc.DeleteSession(context.Background(), session.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := repo.Get(context.Background(), session.ID); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("session still present: %v", err)
	}
	if len(storage.deleted) != 2 {
		t.Fatalf("deleted payloads %d, want 2", len(storage.deleted))
	}
}
