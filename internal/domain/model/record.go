// Пакет model — доменные модели kardo-backend.
// Record — единая структура записи проекта/отчёта, используется
// как in-memory представление и как формат элементов db.json.
package model

import (
	"fmt"
	"time"
)

// RecordType — тип записи (соответствует top-level ключу в db.json).
type RecordType string

const (
	// TypeProjects — записи проектов
	TypeProjects RecordType = "projects"
	// TypeReports — записи отчётов
	TypeReports RecordType = "reports"
)

// ParseRecordType преобразует строку route-параметра в RecordType.
// Возвращает ошибку для любого значения кроме projects и reports.
func ParseRecordType(s string) (RecordType, error) {
	switch RecordType(s) {
	case TypeProjects:
		return TypeProjects, nil
	case TypeReports:
		return TypeReports, nil
	default:
		return "", fmt.Errorf("недопустимый тип записи %q, допустимые: projects, reports", s)
	}
}

// Record — запись проекта или отчёта. Соответствует элементу
// массива projects/reports в db.json и полю data в API-ответе.
// Текстовые поля двуязычные (ku/en) и опциональные: отсутствующее
// в форме поле не попадает в JSON.
type Record struct {
	// ID — уникальный идентификатор, производный от времени создания
	// (unix-миллисекунды, при коллизии в пределах миллисекунды
	// монотонно увеличивается)
	ID int64 `json:"id"`

	// TitleKu — заголовок на курдском
	TitleKu string `json:"title_ku,omitempty"`
	// ShortDescriptionKu — краткое описание на курдском
	ShortDescriptionKu string `json:"shortDescription_ku,omitempty"`
	// DescriptionKu — полное описание на курдском
	DescriptionKu string `json:"description_ku,omitempty"`

	// TitleEn — заголовок на английском
	TitleEn string `json:"title_en,omitempty"`
	// ShortDescriptionEn — краткое описание на английском
	ShortDescriptionEn string `json:"shortDescription_en,omitempty"`
	// DescriptionEn — полное описание на английском
	DescriptionEn string `json:"description_en,omitempty"`

	// Image — имя сохранённого файла изображения в контент-директории
	Image string `json:"image,omitempty"`
	// Video — имя сохранённого видеофайла в контент-директории
	Video string `json:"video,omitempty"`
	// Files — имена прочих сохранённых файлов (всегда список,
	// возможно пустой)
	Files []string `json:"files"`

	// Date — дата и время создания записи (UTC, RFC3339)
	Date time.Time `json:"date"`
}

// Document — полное содержимое db.json: оба ключа всегда
// присутствуют как списки (никогда null).
type Document struct {
	Projects []Record `json:"projects"`
	Reports  []Record `json:"reports"`
}

// Normalize приводит документ к инварианту: nil-списки заменяются
// пустыми, у записей nil-поле Files заменяется пустым списком.
// Вызывается после каждой десериализации db.json.
func (d *Document) Normalize() {
	if d.Projects == nil {
		d.Projects = []Record{}
	}
	if d.Reports == nil {
		d.Reports = []Record{}
	}
	for _, list := range [][]Record{d.Projects, d.Reports} {
		for i := range list {
			if list[i].Files == nil {
				list[i].Files = []string{}
			}
		}
	}
}

// List возвращает список записей указанного типа.
func (d *Document) List(t RecordType) []Record {
	if t == TypeReports {
		return d.Reports
	}
	return d.Projects
}

// Append добавляет запись в список указанного типа.
func (d *Document) Append(t RecordType, r Record) {
	if t == TypeReports {
		d.Reports = append(d.Reports, r)
		return
	}
	d.Projects = append(d.Projects, r)
}

// MaxID возвращает максимальный ID среди всех записей документа.
// Используется при старте для инициализации счётчика идентификаторов.
func (d *Document) MaxID() int64 {
	var maxID int64
	for _, list := range [][]Record{d.Projects, d.Reports} {
		for i := range list {
			if list[i].ID > maxID {
				maxID = list[i].ID
			}
		}
	}
	return maxID
}

// ReferencedFiles возвращает множество имён файлов контент-директории,
// на которые ссылается хотя бы одна запись (image, video, files).
// Используется GC для поиска файлов-сирот.
func (d *Document) ReferencedFiles() map[string]struct{} {
	refs := make(map[string]struct{})
	for _, list := range [][]Record{d.Projects, d.Reports} {
		for i := range list {
			if list[i].Image != "" {
				refs[list[i].Image] = struct{}{}
			}
			if list[i].Video != "" {
				refs[list[i].Video] = struct{}{}
			}
			for _, f := range list[i].Files {
				refs[f] = struct{}{}
			}
		}
	}
	return refs
}
