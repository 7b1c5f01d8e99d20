// Пакет recordstore — персистентное хранилище записей (db.json).
//
// Хранилище — единый JSON-документ с top-level ключами projects и
// reports. Каждое добавление выполняет полный цикл
// чтение → модификация → запись под мьютексом (single writer),
// поэтому параллельные добавления не теряют записей. Запись на диск
// атомарная: temp файл → fsync → rename.
package recordstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kardo-digital/kardo-backend/internal/domain/model"
)

// Store — хранилище записей поверх одного JSON-файла.
type Store struct {
	// path — путь к db.json (KB_STORE_PATH)
	path string
	// mu — сериализует цикл чтение-модификация-запись
	mu sync.Mutex
	// lastID — последний выданный идентификатор записи.
	// Гарантирует уникальность ID при добавлениях в одну миллисекунду.
	lastID int64
	logger *slog.Logger
}

// New открывает хранилище по указанному пути. Если файл отсутствует,
// создаётся инициализированный документ с пустыми списками.
// Существующий файл читается для проверки корректности JSON и
// инициализации счётчика идентификаторов.
func New(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger.With(slog.String("component", "recordstore")),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранилища %s: %w", filepath.Dir(path), err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		doc := &model.Document{}
		doc.Normalize()
		if err := writeDocument(path, doc); err != nil {
			return nil, fmt.Errorf("инициализация хранилища: %w", err)
		}
		s.logger.Info("Хранилище инициализировано", slog.String("path", path))
		return s, nil
	}

	doc, err := readDocument(path)
	if err != nil {
		return nil, fmt.Errorf("открытие хранилища: %w", err)
	}
	s.lastID = doc.MaxID()

	s.logger.Info("Хранилище открыто",
		slog.String("path", path),
		slog.Int("projects", len(doc.Projects)),
		slog.Int("reports", len(doc.Reports)),
	)
	return s, nil
}

// Append добавляет запись в список указанного типа и персистирует
// документ. Идентификатор выдаётся внутри: unix-миллисекунды момента
// добавления, при коллизии с ранее выданным — предыдущий плюс один.
// Возвращает запись с заполненным ID.
//
// Документ каждый раз перечитывается с диска, мьютекс сериализует
// весь цикл: одновременные Append не теряют записей.
func (s *Store) Append(t model.RecordType, r model.Record) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := readDocument(s.path)
	if err != nil {
		return model.Record{}, err
	}

	id := time.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	r.ID = id

	if r.Files == nil {
		r.Files = []string{}
	}

	doc.Append(t, r)

	if err := writeDocument(s.path, doc); err != nil {
		return model.Record{}, err
	}

	s.logger.Debug("Запись добавлена",
		slog.Int64("id", r.ID),
		slog.String("type", string(t)),
	)
	return r, nil
}

// Load читает и возвращает текущий документ целиком.
func (s *Store) Load() (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readDocument(s.path)
}

// ReferencedFiles возвращает множество имён файлов, на которые
// ссылаются записи документа. Используется GC.
func (s *Store) ReferencedFiles() (map[string]struct{}, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	return doc.ReferencedFiles(), nil
}

// Path возвращает путь к файлу хранилища.
func (s *Store) Path() string {
	return s.path
}

// readDocument читает и десериализует db.json.
// Некорректный JSON или недоступный файл — ошибка (записи не теряются
// молчаливой переинициализацией).
func readDocument(path string) (*model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения хранилища %s: %w", path, err)
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ошибка десериализации хранилища %s: %w", path, err)
	}

	doc.Normalize()
	return &doc, nil
}

// writeDocument атомарно записывает документ на диск.
// Паттерн: JSON → temp файл → fsync → atomic rename.
func writeDocument(path string, doc *model.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации хранилища: %w", err)
	}

	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}
