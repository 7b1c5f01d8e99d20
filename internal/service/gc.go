// gc.go — сервис фоновой очистки осиротевших файлов контент-директории.
//
// Сирота — файл, на который не ссылается ни одна запись db.json.
// Сироты появляются, если процесс упал между сохранением файла и
// записью db.json. GC удаляет только файлы старше минимального
// возраста: свежие файлы могут принадлежать загрузке, которая ещё
// не дошла до записи в хранилище.
//
// Запускается как горутина с периодическим тикером (KB_GC_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kardo-digital/kardo-backend/internal/storage/contentdir"
	"github.com/kardo-digital/kardo-backend/internal/storage/recordstore"
)

// Prometheus метрики GC
var (
	// gcRunsTotal — количество запусков GC.
	gcRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kb_gc_runs_total",
		Help: "Общее количество запусков GC",
	})

	// gcFilesDeletedTotal — количество удалённых файлов-сирот.
	gcFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kb_gc_files_deleted_total",
		Help: "Общее количество файлов-сирот, удалённых GC",
	})

	// gcDurationSeconds — длительность выполнения GC.
	gcDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kb_gc_duration_seconds",
		Help:    "Длительность выполнения GC в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// GCResult — результат одного запуска GC.
type GCResult struct {
	// DeletedCount — количество удалённых файлов-сирот
	DeletedCount int
	// SkippedCount — количество сирот, пропущенных по возрасту
	SkippedCount int
	// Errors — количество ошибок при обработке файлов
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// GCService — сервис фоновой очистки файлов-сирот.
type GCService struct {
	content  *contentdir.ContentDir
	store    *recordstore.Store
	interval time.Duration
	minAge   time.Duration
	logger   *slog.Logger

	mu      sync.Mutex // защита от параллельного запуска RunOnce
	running bool       // флаг работы фонового процесса
	cancel  context.CancelFunc
}

// NewGCService создаёт сервис GC.
func NewGCService(
	content *contentdir.ContentDir,
	store *recordstore.Store,
	interval time.Duration,
	minAge time.Duration,
	logger *slog.Logger,
) *GCService {
	return &GCService{
		content:  content,
		store:    store,
		interval: interval,
		minAge:   minAge,
		logger:   logger.With(slog.String("component", "gc")),
	}
}

// Start запускает фоновую горутину GC с периодическим тикером.
// Вызывается один раз при старте приложения.
func (gc *GCService) Start(ctx context.Context) {
	gcCtx, cancel := context.WithCancel(ctx)
	gc.cancel = cancel
	gc.running = true

	go gc.run(gcCtx)

	gc.logger.Info("GC запущен",
		slog.String("interval", gc.interval.String()),
		slog.String("min_age", gc.minAge.String()),
	)
}

// Stop останавливает фоновый процесс GC.
func (gc *GCService) Stop() {
	if gc.cancel != nil {
		gc.cancel()
	}
	gc.running = false
	gc.logger.Info("GC остановлен")
}

// run — основной цикл фоновой горутины.
func (gc *GCService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	gc.RunOnce()

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gc.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл GC.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
//
// Если db.json не читается, очистка не выполняется: без списка
// ссылок любой файл выглядит сиротой.
func (gc *GCService) RunOnce() *GCResult {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	start := time.Now()
	result := &GCResult{}

	gc.logger.Debug("GC запуск начат")

	refs, err := gc.store.ReferencedFiles()
	if err != nil {
		gc.logger.Error("GC: хранилище не читается, очистка пропущена",
			slog.String("error", err.Error()),
		)
		result.Errors++
		result.Duration = time.Since(start)
		gcRunsTotal.Inc()
		return result
	}

	entries, err := gc.content.List()
	if err != nil {
		gc.logger.Error("GC: ошибка чтения контент-директории",
			slog.String("error", err.Error()),
		)
		result.Errors++
		result.Duration = time.Since(start)
		gcRunsTotal.Inc()
		return result
	}

	cutoff := time.Now().Add(-gc.minAge)

	for _, entry := range entries {
		if _, referenced := refs[entry.Name]; referenced {
			continue
		}
		if entry.ModTime.After(cutoff) {
			// Сирота слишком свежий — возможно, загрузка ещё идёт
			result.SkippedCount++
			continue
		}

		if err := gc.content.Remove(entry.Name); err != nil {
			gc.logger.Error("GC: ошибка удаления файла-сироты",
				slog.String("file", entry.Name),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		gc.logger.Debug("GC: файл-сирота удалён", slog.String("file", entry.Name))
		result.DeletedCount++
	}

	result.Duration = time.Since(start)

	gcRunsTotal.Inc()
	gcFilesDeletedTotal.Add(float64(result.DeletedCount))
	gcDurationSeconds.Observe(result.Duration.Seconds())

	gc.logger.Info("GC завершён",
		slog.Int("deleted", result.DeletedCount),
		slog.Int("skipped", result.SkippedCount),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}
