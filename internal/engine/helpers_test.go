package engine

import (
	"archive/zip"
	"fmt"
	"io"
	"strconv"
	"testing"
)

func leftPad(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func readZipEntry(t *testing.T, path, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("не zip-архив: %v", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}
	t.Fatalf("в архиве нет %s", name)
	return ""
}
