package vaultservice

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/index"
)

func testService(t *testing.T) *Service {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(logger, "Vault", []string{"@wait", "@wt"})
}

func activate(t *testing.T, s *Service) string {
	t.Helper()
	dir := t.TempDir()
	if err := s.SetActiveVault(dir, filepath.Join(t.TempDir(), "idx.db")); err != nil {
		t.Fatalf("SetActiveVault: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return dir
}

func TestNoActiveVault(t *testing.T) {
	s := testService(t)

	if got, err := s.SearchPages("x", 10); err != nil || got != nil {
		t.Errorf("SearchPages = %v, %v", got, err)
	}
	if got, err := s.Tasks(index.TasksQuery{}); err != nil || got != nil {
		t.Errorf("Tasks = %v, %v", got, err)
	}
	if err := s.WritePage("/A/A.md", []byte("x")); err != nil {
		t.Errorf("WritePage should no-op: %v", err)
	}
	if data, err := s.ReadPage("/A/A.md"); err != nil || data != nil {
		t.Errorf("ReadPage = %v, %v", data, err)
	}
	if _, err := s.JournalToday(time.Now()); err == nil {
		t.Error("JournalToday should fail with no vault")
	}
}

func TestSetActiveVault_SwapsVaults(t *testing.T) {
	s := testService(t)
	activate(t, s)

	if err := s.WritePage("/One/One.md", []byte("# One\n")); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	got, err := s.SearchPages("One", 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("SearchPages = %v, %v", got, err)
	}

	// Switching vaults leaves the first vault's data behind.
	second := t.TempDir()
	if err := s.SetActiveVault(second, filepath.Join(t.TempDir(), "idx2.db")); err != nil {
		t.Fatalf("SetActiveVault: %v", err)
	}
	got, err = s.SearchPages("One", 10)
	if err != nil || len(got) != 0 {
		t.Errorf("second vault should be empty: %v, %v", got, err)
	}
}

func TestSetActiveVault_SyncsExistingPages(t *testing.T) {
	s := testService(t)
	dir := t.TempDir()
	pageDir := filepath.Join(dir, "Pre")
	if err := os.MkdirAll(pageDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pageDir, "Pre.md"), []byte("# Pre-existing\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.SetActiveVault(dir, filepath.Join(t.TempDir(), "idx.db")); err != nil {
		t.Fatalf("SetActiveVault: %v", err)
	}
	defer s.Close()

	got, err := s.SearchPages("Pre-existing", 10)
	if err != nil || len(got) != 1 {
		t.Errorf("existing page not synced: %v, %v", got, err)
	}
}

func TestResolveID_RootPage(t *testing.T) {
	s := testService(t)
	activate(t, s)

	if err := s.WritePage("/Vault.md", []byte("# Vault\n")); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if got := s.ResolveID(":Vault"); got != "/Vault.md" {
		t.Fatalf("ResolveID = %q", got)
	}
	if _, err := s.ReadPage(s.ResolveID(":Vault")); err != nil {
		t.Errorf("root page unreadable through its identifier: %v", err)
	}
}

func TestWritePage_ParentBacklink(t *testing.T) {
	s := testService(t)
	activate(t, s)

	if err := s.WritePage("/Projects/Roadmap/Roadmap.md", []byte("# Roadmap\n")); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	parent, err := s.ReadPage("/Projects/Projects.md")
	if err != nil {
		t.Fatalf("parent page not created: %v", err)
	}
	if !strings.Contains(string(parent), "+Roadmap") {
		t.Errorf("parent missing child link: %q", parent)
	}

	rel, err := s.LinkRelations("/Projects/Roadmap/Roadmap.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(rel.Incoming) != 1 || rel.Incoming[0] != "/Projects/Projects.md" {
		t.Errorf("backlink not indexed: %+v", rel)
	}
}

func TestWritePage_ParentBacklinkIdempotent(t *testing.T) {
	s := testService(t)
	activate(t, s)

	for i := 0; i < 2; i++ {
		if err := s.WritePage("/A/B/B.md", []byte("# B\n")); err != nil {
			t.Fatalf("WritePage pass %d: %v", i, err)
		}
	}
	parent, err := s.ReadPage("/A/A.md")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(parent), "+B") != 1 {
		t.Errorf("duplicate child link: %q", parent)
	}
}

func TestWritePage_DeepChainCreated(t *testing.T) {
	s := testService(t)
	activate(t, s)

	if err := s.WritePage("/A/B/C/C.md", []byte("# C\n")); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if _, err := s.ReadPage("/A/B/B.md"); err != nil {
		t.Errorf("middle parent missing: %v", err)
	}
	if _, err := s.ReadPage("/A/A.md"); err != nil {
		t.Errorf("top parent missing: %v", err)
	}
}

func TestDeleteFolder_RemovesDiskAndIndex(t *testing.T) {
	s := testService(t)
	activate(t, s)

	_ = s.WritePage("/Gone/Gone.md", []byte("# Gone\n"))
	_ = s.WritePage("/Gone/Sub/Sub.md", []byte("# Sub\n"))
	_ = s.WritePage("/Stay/Stay.md", []byte("# Stay\n"))

	if err := s.DeleteFolder("/Gone"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	if _, err := s.ReadPage("/Gone/Sub/Sub.md"); err == nil {
		t.Error("file should be gone from disk")
	}
	got, err := s.SearchPages("Gone", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range got {
		if strings.HasPrefix(p.Path, "/Gone/") {
			t.Errorf("index still holds %q", p.Path)
		}
	}
	if _, err := s.ReadPage("/Stay/Stay.md"); err != nil {
		t.Errorf("unrelated page lost: %v", err)
	}
}

func TestMoveFolder_DiskAndIndexAgree(t *testing.T) {
	s := testService(t)
	activate(t, s)

	_ = s.WritePage("/A/B/B.md", []byte("# B\n- [ ] task\n"))

	if err := s.MoveFolder("/A/B", "/A/C"); err != nil {
		t.Fatalf("MoveFolder: %v", err)
	}
	if _, err := s.ReadPage("/A/C/C.md"); err != nil {
		t.Fatalf("moved root page unreadable: %v", err)
	}
	tasks, err := s.Tasks(index.TasksQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Path != "/A/C/C.md" {
		t.Errorf("tasks = %v", tasks)
	}
}

func TestTasks_DefaultNonActionableTags(t *testing.T) {
	s := testService(t)
	activate(t, s)

	_ = s.WritePage("/P/P.md", []byte("- [ ] parked @wait\n- [ ] ready\n"))

	tasks, err := s.Tasks(index.TasksQuery{ActionableOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Text != "ready" {
		t.Errorf("tasks = %v", tasks)
	}
}

func TestJournalToday_CreatesAndIndexes(t *testing.T) {
	s := testService(t)
	activate(t, s)

	day := time.Date(2025, 11, 12, 9, 0, 0, 0, time.UTC)
	path, err := s.JournalToday(day)
	if err != nil {
		t.Fatalf("JournalToday: %v", err)
	}
	if path != "/Journal/2025/11/12/12.md" {
		t.Errorf("path = %q", path)
	}
	if _, err := s.ReadPage(path); err != nil {
		t.Errorf("journal page unreadable: %v", err)
	}
}
