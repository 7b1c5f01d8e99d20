// Пакет service — бизнес-логика kardo-backend.
// records.go — сервис создания записей проектов и отчётов.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/kardo-digital/kardo-backend/internal/api/errors"
	"github.com/kardo-digital/kardo-backend/internal/api/middleware"
	"github.com/kardo-digital/kardo-backend/internal/domain/model"
	"github.com/kardo-digital/kardo-backend/internal/storage/contentdir"
	"github.com/kardo-digital/kardo-backend/internal/storage/recordstore"
)

// Part — один файл из multipart-формы.
type Part struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalFilename — оригинальное имя файла
	OriginalFilename string
}

// CreateParams — параметры создания записи.
type CreateParams struct {
	// Type — тип записи (projects или reports)
	Type model.RecordType
	// TextFields — текстовые поля формы (title_ku, description_en и т.д.)
	TextFields map[string]string
	// Image — файл изображения (опционально)
	Image *Part
	// Video — видеофайл (опционально)
	Video *Part
	// Files — прочие файлы (опционально)
	Files []*Part
	// CreatedBy — sub из JWT (опционально, только для лога)
	CreatedBy string
}

// CreateError — ошибка создания записи с HTTP-кодом.
type CreateError struct {
	StatusCode int
	Code       string
	// MessageKey — ключ локализованного сообщения (пакет i18n)
	MessageKey string
	Err        error
}

func (e *CreateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *CreateError) Unwrap() error {
	return e.Err
}

// RecordService — сервис создания записей.
type RecordService struct {
	content     *contentdir.ContentDir
	store       *recordstore.Store
	maxFileSize int64
	logger      *slog.Logger
}

// NewRecordService создаёт сервис записей.
func NewRecordService(
	content *contentdir.ContentDir,
	store *recordstore.Store,
	maxFileSize int64,
	logger *slog.Logger,
) *RecordService {
	return &RecordService{
		content:     content,
		store:       store,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "record_service")),
	}
}

// Create сохраняет файлы записи в контент-директорию и добавляет
// запись в хранилище.
//
// Поток:
//  1. Сохранение image, video и прочих файлов (streaming, O_EXCL)
//  2. Сборка Record из текстовых полей и имён сохранённых файлов
//  3. store.Append — выдача ID и атомарная запись db.json
//
// При ошибке на любом шаге все уже сохранённые файлы удаляются:
// неудачная загрузка не оставляет ни файлов-сирот, ни записи.
func (s *RecordService) Create(params CreateParams) (model.Record, *CreateError) {
	var savedNames []string

	// rollback удаляет всё, что успели записать на диск.
	rollback := func() {
		for _, name := range savedNames {
			if err := s.content.Remove(name); err != nil {
				s.logger.Error("Ошибка отката сохранённого файла",
					slog.String("file", name),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	savePart := func(p *Part) (string, *CreateError) {
		res, err := s.content.Save(p.Reader, p.OriginalFilename, s.maxFileSize)
		if err != nil {
			if errors.Is(err, contentdir.ErrFileTooLarge) {
				return "", &CreateError{
					StatusCode: http.StatusRequestEntityTooLarge,
					Code:       apierrors.CodeFileTooLarge,
					MessageKey: "error.file_too_large",
					Err:        err,
				}
			}
			return "", &CreateError{
				StatusCode: http.StatusInternalServerError,
				Code:       apierrors.CodeInternalError,
				MessageKey: "error.internal",
				Err:        err,
			}
		}
		savedNames = append(savedNames, res.StoredName)
		middleware.UploadedBytes.Add(float64(res.Size))
		return res.StoredName, nil
	}

	record := model.Record{
		TitleKu:            params.TextFields["title_ku"],
		ShortDescriptionKu: params.TextFields["shortDescription_ku"],
		DescriptionKu:      params.TextFields["description_ku"],
		TitleEn:            params.TextFields["title_en"],
		ShortDescriptionEn: params.TextFields["shortDescription_en"],
		DescriptionEn:      params.TextFields["description_en"],
		Files:              []string{},
		Date:               time.Now().UTC(),
	}

	if params.Image != nil {
		name, cerr := savePart(params.Image)
		if cerr != nil {
			rollback()
			middleware.UploadsTotal.WithLabelValues(string(params.Type), "error").Inc()
			return model.Record{}, cerr
		}
		record.Image = name
	}

	if params.Video != nil {
		name, cerr := savePart(params.Video)
		if cerr != nil {
			rollback()
			middleware.UploadsTotal.WithLabelValues(string(params.Type), "error").Inc()
			return model.Record{}, cerr
		}
		record.Video = name
	}

	for _, p := range params.Files {
		name, cerr := savePart(p)
		if cerr != nil {
			rollback()
			middleware.UploadsTotal.WithLabelValues(string(params.Type), "error").Inc()
			return model.Record{}, cerr
		}
		record.Files = append(record.Files, name)
	}

	saved, err := s.store.Append(params.Type, record)
	if err != nil {
		// Запись в db.json не удалась — файлы откатываются,
		// хранилище остаётся в прежнем состоянии.
		rollback()
		middleware.UploadsTotal.WithLabelValues(string(params.Type), "error").Inc()
		s.logger.Error("Ошибка добавления записи в хранилище",
			slog.String("type", string(params.Type)),
			slog.String("error", err.Error()),
		)
		return model.Record{}, &CreateError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			MessageKey: "error.internal",
			Err:        err,
		}
	}

	middleware.UploadsTotal.WithLabelValues(string(params.Type), "success").Inc()
	middleware.RecordsTotal.WithLabelValues(string(params.Type)).Inc()

	s.logger.Info("Запись создана",
		slog.Int64("id", saved.ID),
		slog.String("type", string(params.Type)),
		slog.Int("files", len(saved.Files)),
		slog.String("created_by", params.CreatedBy),
	)

	return saved, nil
}

// InitRecordMetrics выставляет gauge kb_records_total по текущему
// содержимому хранилища. Вызывается при старте.
func (s *RecordService) InitRecordMetrics() error {
	doc, err := s.store.Load()
	if err != nil {
		return err
	}
	middleware.RecordsTotal.WithLabelValues(string(model.TypeProjects)).Set(float64(len(doc.Projects)))
	middleware.RecordsTotal.WithLabelValues(string(model.TypeReports)).Set(float64(len(doc.Reports)))
	return nil
}
