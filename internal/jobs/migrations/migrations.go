// Пакет migrations — встроенные SQL-миграции журнала заданий (goose).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
