package app

import (
	"os"
	"testing"
)

// chdir は testing.T.Chdir (Go 1.24+) 相当: 作業ディレクトリを移し、テスト終了時に戻す。
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("Chdir restore: %v", err)
		}
	})
}
