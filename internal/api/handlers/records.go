// records.go — HTTP handler создания записей проектов и отчётов.
package handlers

import (
	"encoding/json"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/kardo-digital/kardo-backend/internal/api/errors"
	"github.com/kardo-digital/kardo-backend/internal/api/middleware"
	"github.com/kardo-digital/kardo-backend/internal/domain/model"
	"github.com/kardo-digital/kardo-backend/internal/i18n"
	"github.com/kardo-digital/kardo-backend/internal/service"
)

// RecordsRoutePattern — chi-шаблон маршрута создания записей.
// Regexp ограничивает тип двумя значениями; всё остальное — 404 chi.
// Группа обязательна: chi анкерует выражение целиком.
const RecordsRoutePattern = "/{type:(?:projects|reports)}"

// Лимиты количества файлов на запись.
const (
	maxImages = 1
	maxVideos = 1
	maxFiles  = 5
)

// multipartMemory — буфер парсинга multipart формы в памяти,
// остальное уходит во временные файлы.
const multipartMemory = 32 << 20 // 32 MB

// textFieldNames — текстовые поля формы, попадающие в запись.
var textFieldNames = []string{
	"title_ku", "shortDescription_ku", "description_ku",
	"title_en", "shortDescription_en", "description_en",
}

// successResponse — конверт успешного ответа API.
type successResponse struct {
	Success bool         `json:"success"`
	Data    model.Record `json:"data"`
}

// RecordsHandler — обработчик endpoints записей.
type RecordsHandler struct {
	svc *service.RecordService
}

// NewRecordsHandler создаёт обработчик записей.
func NewRecordsHandler(svc *service.RecordService) *RecordsHandler {
	return &RecordsHandler{svc: svc}
}

// Create обрабатывает POST /projects и POST /reports.
// Multipart form: текстовые поля (все опциональны), image (макс. 1),
// video (макс. 1), files (макс. 5). Аутентификация выполняется
// middleware до разбора формы.
func (h *RecordsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordType, err := model.ParseRecordType(chi.URLParam(r, "type"))
	if err != nil {
		apierrors.NotFound(w, i18n.T(ctx, "error.not_found"))
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		apierrors.ValidationError(w, i18n.T(ctx, "error.validation.multipart"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	// Проверка лимитов количества файлов по полям
	images := r.MultipartForm.File["image"]
	videos := r.MultipartForm.File["video"]
	files := r.MultipartForm.File["files"]

	if len(images) > maxImages {
		apierrors.ValidationError(w, i18n.T(ctx, "error.validation.too_many_images"))
		return
	}
	if len(videos) > maxVideos {
		apierrors.ValidationError(w, i18n.T(ctx, "error.validation.too_many_videos"))
		return
	}
	if len(files) > maxFiles {
		apierrors.ValidationError(w, i18n.T(ctx, "error.validation.too_many_files"))
		return
	}

	// Текстовые поля формы
	textFields := make(map[string]string, len(textFieldNames))
	for _, name := range textFieldNames {
		if v := r.FormValue(name); v != "" {
			textFields[name] = v
		}
	}

	params := service.CreateParams{
		Type:       recordType,
		TextFields: textFields,
		CreatedBy:  middleware.SubjectFromContext(ctx),
	}

	// Открываем файловые части; закрытие — после Create
	var openedFiles []multipart.File
	defer func() {
		for _, f := range openedFiles {
			_ = f.Close()
		}
	}()

	openPart := func(fh *multipart.FileHeader) (*service.Part, bool) {
		f, err := fh.Open()
		if err != nil {
			apierrors.InternalError(w, i18n.T(ctx, "error.internal"))
			return nil, false
		}
		openedFiles = append(openedFiles, f)
		return &service.Part{Reader: f, OriginalFilename: fh.Filename}, true
	}

	if len(images) == 1 {
		p, ok := openPart(images[0])
		if !ok {
			return
		}
		params.Image = p
	}
	if len(videos) == 1 {
		p, ok := openPart(videos[0])
		if !ok {
			return
		}
		params.Video = p
	}
	for _, fh := range files {
		p, ok := openPart(fh)
		if !ok {
			return
		}
		params.Files = append(params.Files, p)
	}

	record, cerr := h.svc.Create(params)
	if cerr != nil {
		apierrors.WriteError(w, cerr.StatusCode, cerr.Code, i18n.T(ctx, cerr.MessageKey))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(successResponse{
		Success: true,
		Data:    record,
	})
}
