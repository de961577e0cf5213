//go:build windows

package handlers

import "errors"

// getDiskUsage на Windows не реализован: /api/v1/info возвращает области без ёмкости.
func getDiskUsage(string) (total, used, available int64, err error) {
	return 0, 0, 0, errors.New("statfs недоступен на windows")
}
