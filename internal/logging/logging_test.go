package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestInitializeRejectsUnknownLevel(t *testing.T) {
	if err := Initialize(Config{Level: "loudest"}); err == nil {
		t.Error("unknown level must be rejected")
	}
}

func TestGetBeforeInitializeIsNop(t *testing.T) {
	mu.Lock()
	base = nil
	loggers = make(map[Category]*zap.Logger)
	mu.Unlock()

	if Get(CategoryScan) == nil {
		t.Error("Get must hand back a usable no-op logger before Initialize")
	}
}

func TestGetReturnsSameLoggerPerCategory(t *testing.T) {
	if err := Initialize(Config{Level: "debug"}); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	a := Get(CategoryScan)
	b := Get(CategoryScan)
	if a != b {
		t.Error("Get must cache per-category loggers")
	}
	if a == Get(CategorySources) {
		t.Error("categories must get distinct loggers")
	}
}

func TestPerCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(Config{Level: "debug", Dir: dir}); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	Get(CategoryScan).Info("scan message for file")
	Sync()

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(dir, date+"_scan.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("category log file missing: %v", err)
	}
	if !strings.Contains(string(data), "scan message for file") {
		t.Errorf("log file missing message: %s", data)
	}
}
