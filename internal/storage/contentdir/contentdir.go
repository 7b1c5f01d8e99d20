// Пакет contentdir — операции с загруженными файлами на диске.
// Контент-директория монопольно владеет файлами; записи в db.json
// ссылаются на них только по имени. Имя сохранённого файла:
// {unix-миллисекунды}-{оригинальное имя}. Запись выполняется через
// O_EXCL, поэтому две одновременные загрузки с одинаковым именем
// в одну миллисекунду не затирают друг друга.
package contentdir

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ErrFileTooLarge возвращается Save, когда размер данных превышает лимит.
var ErrFileTooLarge = errors.New("размер файла превышает лимит")

// maxNameLen — ограничение длины базового имени файла (без префикса),
// чтобы не упираться в лимиты файловой системы.
const maxNameLen = 100

// ContentDir — управление физическими файлами контент-директории.
type ContentDir struct {
	// dir — корневая директория хранения (KB_DATA_DIR)
	dir string
}

// SaveResult — результат сохранения файла.
type SaveResult struct {
	// StoredName — имя файла в контент-директории
	StoredName string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт ContentDir. Создаёт директорию, если она не существует.
func New(dir string) (*ContentDir, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать контент-директорию %s: %w", dir, err)
	}
	return &ContentDir{dir: dir}, nil
}

// Save записывает данные из reader в контент-директорию.
// Имя файла: {unix-миллисекунды}-{очищенное оригинальное имя}.
// maxSize — максимальный допустимый размер в байтах; при превышении
// возвращается ErrFileTooLarge, частично записанный файл удаляется.
//
// Файл создаётся с O_EXCL: занятое имя означает коллизию, и имя
// дополняется коротким uuid между префиксом и оригинальным именем.
func (cd *ContentDir) Save(reader io.Reader, originalFilename string, maxSize int64) (*SaveResult, error) {
	name := sanitizeFilename(originalFilename)
	ts := time.Now().UnixMilli()

	storedName := fmt.Sprintf("%d-%s", ts, name)
	f, err := cd.createExclusive(storedName)
	if errors.Is(err, fs.ErrExist) {
		storedName = fmt.Sprintf("%d-%s-%s", ts, uuid.New().String()[:8], name)
		f, err = cd.createExclusive(storedName)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла %s: %w", storedName, err)
	}

	fullPath := filepath.Join(cd.dir, storedName)

	// Лимит читается с запасом в один байт: ровно maxSize байт — ок,
	// maxSize+1 байт — превышение.
	size, err := io.Copy(f, io.LimitReader(reader, maxSize+1))
	if err != nil {
		f.Close()
		os.Remove(fullPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}
	if size > maxSize {
		f.Close()
		os.Remove(fullPath)
		return nil, ErrFileTooLarge
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(fullPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	return &SaveResult{
		StoredName: storedName,
		Size:       size,
	}, nil
}

// createExclusive создаёт файл с O_EXCL внутри контент-директории.
func (cd *ContentDir) createExclusive(storedName string) (*os.File, error) {
	return os.OpenFile(filepath.Join(cd.dir, storedName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
}

// Remove удаляет файл из контент-директории.
// Возвращает nil, если файл уже не существует.
func (cd *ContentDir) Remove(storedName string) error {
	err := os.Remove(filepath.Join(cd.dir, storedName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storedName, err)
	}
	return nil
}

// Exists проверяет существование файла в контент-директории.
func (cd *ContentDir) Exists(storedName string) bool {
	_, err := os.Stat(filepath.Join(cd.dir, storedName))
	return err == nil
}

// Entry — имя и время модификации файла контент-директории.
type Entry struct {
	Name    string
	ModTime time.Time
}

// List возвращает все обычные файлы контент-директории
// с временем модификации. Не рекурсивный.
func (cd *ContentDir) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(cd.dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения контент-директории %s: %w", cd.dir, err)
	}

	var result []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		result = append(result, Entry{Name: de.Name(), ModTime: info.ModTime()})
	}
	return result, nil
}

// FullPath возвращает абсолютный путь к файлу на диске.
func (cd *ContentDir) FullPath(storedName string) string {
	return filepath.Join(cd.dir, storedName)
}

// Dir возвращает путь к контент-директории.
func (cd *ContentDir) Dir() string {
	return cd.dir
}

// sanitizeFilename очищает оригинальное имя файла для использования
// на диске: отбрасывает путь, оставляет буквы (включая курдскую
// арабскую графику), цифры, точку, дефис и подчёркивание.
func sanitizeFilename(original string) string {
	base := filepath.Base(original)

	var b strings.Builder
	for _, r := range base {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}

	name := b.String()
	name = strings.Trim(name, ".")
	if name == "" {
		return "file"
	}
	if len(name) > maxNameLen {
		// Обрезаем с сохранением расширения
		ext := filepath.Ext(name)
		if len(ext) > 20 {
			ext = ""
		}
		keep := maxNameLen - len(ext)
		name = name[:keep] + ext
	}
	return name
}
