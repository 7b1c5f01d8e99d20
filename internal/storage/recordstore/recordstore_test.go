package recordstore

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kardo-digital/kardo-backend/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "db.json"), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// TestNew_Initializes проверяет создание db.json с пустыми списками.
func TestNew_Initializes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db.json")
	s, err := New(path, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("чтение db.json: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("db.json не JSON: %v", err)
	}
	if string(raw["projects"]) != "[]" {
		t.Errorf("projects = %s, ожидалось []", raw["projects"])
	}
	if string(raw["reports"]) != "[]" {
		t.Errorf("reports = %s, ожидалось []", raw["reports"])
	}
}

// TestNew_ExistingDocument проверяет открытие существующего файла
// и инициализацию счётчика ID.
func TestNew_ExistingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	existing := `{"projects":[{"id":1700000000123,"files":[],"date":"2023-11-14T00:00:00Z"}],"reports":[]}`
	if err := os.WriteFile(path, []byte(existing), 0o640); err != nil {
		t.Fatal(err)
	}

	s, err := New(path, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	doc, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Projects) != 1 || doc.Projects[0].ID != 1700000000123 {
		t.Errorf("существующая запись потеряна: %+v", doc.Projects)
	}
}

// TestNew_MalformedJSON проверяет, что битый db.json — ошибка,
// а не молчаливая переинициализация.
func TestNew_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o640); err != nil {
		t.Fatal(err)
	}

	if _, err := New(path, testLogger()); err == nil {
		t.Fatal("ожидалась ошибка для битого JSON")
	}

	// Файл не перезаписан
	data, _ := os.ReadFile(path)
	if string(data) != "{broken" {
		t.Error("битый файл перезаписан")
	}
}

// TestAppend_BothTypes проверяет добавление в оба списка.
func TestAppend_BothTypes(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Append(model.TypeProjects, model.Record{TitleKu: "پڕۆژە", Date: time.Now().UTC()})
	if err != nil {
		t.Fatalf("Append projects: %v", err)
	}
	r, err := s.Append(model.TypeReports, model.Record{TitleEn: "Report", Date: time.Now().UTC()})
	if err != nil {
		t.Fatalf("Append reports: %v", err)
	}

	if p.ID == 0 || r.ID == 0 {
		t.Error("ID не выданы")
	}

	doc, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Projects) != 1 || len(doc.Reports) != 1 {
		t.Errorf("projects=%d reports=%d, ожидалось 1/1", len(doc.Projects), len(doc.Reports))
	}
	if doc.Projects[0].TitleKu != "پڕۆژە" {
		t.Errorf("TitleKu = %q", doc.Projects[0].TitleKu)
	}
	if doc.Projects[0].Files == nil {
		t.Error("Files должен быть пустым списком, не null")
	}
}

// TestAppend_UniqueIDs проверяет уникальность ID при добавлениях
// в одну миллисекунду.
func TestAppend_UniqueIDs(t *testing.T) {
	s := newTestStore(t)

	seen := make(map[int64]bool)
	for i := 0; i < 50; i++ {
		r, err := s.Append(model.TypeProjects, model.Record{Date: time.Now().UTC()})
		if err != nil {
			t.Fatal(err)
		}
		if seen[r.ID] {
			t.Fatalf("повторный ID %d", r.ID)
		}
		seen[r.ID] = true
	}
}

// TestAppend_Concurrent проверяет отсутствие потерянных записей
// при параллельных добавлениях.
func TestAppend_Concurrent(t *testing.T) {
	s := newTestStore(t)

	const goroutines = 20
	var wg sync.WaitGroup
	errCh := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			typ := model.TypeProjects
			if n%2 == 1 {
				typ = model.TypeReports
			}
			if _, err := s.Append(typ, model.Record{Date: time.Now().UTC()}); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("Append: %v", err)
	}

	doc, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	total := len(doc.Projects) + len(doc.Reports)
	if total != goroutines {
		t.Errorf("потеряны записи: %d из %d", total, goroutines)
	}

	// Все ID уникальны
	seen := make(map[int64]bool)
	for _, list := range [][]model.Record{doc.Projects, doc.Reports} {
		for _, r := range list {
			if seen[r.ID] {
				t.Errorf("повторный ID %d", r.ID)
			}
			seen[r.ID] = true
		}
	}
}

// TestAppend_IDMonotonicAfterRestart проверяет, что после рестарта
// счётчик продолжается с максимального ID документа.
func TestAppend_IDMonotonicAfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	future := time.Now().Add(time.Hour).UnixMilli()

	s1, err := New(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s1.Append(model.TypeProjects, model.Record{}); err != nil {
		t.Fatal(err)
	}

	// Подкладываем запись с ID из будущего и переоткрываем
	doc, _ := s1.Load()
	doc.Projects[0].ID = future
	data, _ := json.Marshal(doc)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		t.Fatal(err)
	}

	s2, err := New(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	r, err := s2.Append(model.TypeProjects, model.Record{})
	if err != nil {
		t.Fatal(err)
	}
	if r.ID <= future {
		t.Errorf("ID %d не превышает максимальный существующий %d", r.ID, future)
	}
}

// TestReferencedFiles проверяет сбор ссылок на файлы из всех записей.
func TestReferencedFiles(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Append(model.TypeProjects, model.Record{
		Image: "1-img.jpg",
		Video: "2-vid.mp4",
		Files: []string{"3-a.pdf", "4-b.pdf"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(model.TypeReports, model.Record{
		Files: []string{"5-c.pdf"},
	}); err != nil {
		t.Fatal(err)
	}

	refs, err := s.ReferencedFiles()
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"1-img.jpg", "2-vid.mp4", "3-a.pdf", "4-b.pdf", "5-c.pdf"} {
		if _, ok := refs[name]; !ok {
			t.Errorf("ссылка %q не найдена", name)
		}
	}
	if len(refs) != 5 {
		t.Errorf("ожидалось 5 ссылок, получено %d", len(refs))
	}
}

// TestAppend_NoTempLeftover проверяет, что после записи не остаётся
// временных файлов.
func TestAppend_NoTempLeftover(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Append(model.TypeProjects, model.Record{}); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(s.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл не удалён после rename")
	}
}
