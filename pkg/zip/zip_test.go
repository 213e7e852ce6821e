package zip

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func TestArchive(t *testing.T) {
	data, err := Archive([]Entry{
		{Filename: "sprite-01.png", Data: []byte("a")},
		{Filename: "../sprite-01.png", Data: []byte("b")},
		{Filename: "sprite-sheet.png", Data: []byte("sheet")},
	}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Archive error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	want := []string{"sprite-01.png", "sprite-01-2.png", "sprite-sheet.png"}
	if len(zr.File) != len(want) {
		t.Fatalf("expected %d files, got %d", len(want), len(zr.File))
	}
	for i, f := range zr.File {
		if f.Name != want[i] {
			t.Fatalf("file %d name = %s, want %s", i, f.Name, want[i])
		}
	}
	rc, err := zr.File[2].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "sheet" {
		t.Fatalf("unexpected entry body %q", body)
	}
}

func TestArchiveEmpty(t *testing.T) {
	if _, err := Archive(nil, time.Now()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}
