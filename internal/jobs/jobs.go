// Пакет jobs — журнал заданий конвертации. Каждая попытка конвертации
// (успешная или нет) записывается в журнал; журнал используется API
// просмотра заданий и очищается по сроку хранения.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/bigkaa/docgate/internal/domain/model"
)

// ErrNotFound — задание не найдено.
var ErrNotFound = errors.New("задание не найдено")

// Repository — хранилище журнала заданий. Реализации потокобезопасны.
type Repository interface {
	// Record сохраняет задание. Повторная запись с тем же ID перезаписывает его.
	Record(ctx context.Context, job *model.Job) error
	// Get возвращает задание по ID или ErrNotFound.
	Get(ctx context.Context, id string) (*model.Job, error)
	// List возвращает страницу заданий (новые первые) и общее количество.
	List(ctx context.Context, limit, offset int) ([]*model.Job, int, error)
	// PruneBefore удаляет задания, созданные раньше before, и возвращает их количество.
	PruneBefore(ctx context.Context, before time.Time) (int, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	// Close освобождает ресурсы.
	Close() error
}
