package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNewStore_MissingFile(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "storeTradFile.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, ok := s.Get(KeyTranslateTo); ok {
		t.Error("empty store should not contain TRANSLATE_TO")
	}
}

func TestStore_SetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "storeTradFile.json")
	s, _ := NewStore(path)

	if err := s.SetMany(map[string]interface{}{
		KeyTranslateTo:  "French",
		KeyOpenAIAPIKey: "sk-test",
	}); err != nil {
		t.Fatalf("SetMany failed: %v", err)
	}
	if err := s.Set("MAX_PAGES", 12); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if v, _ := reopened.Get(KeyTranslateTo); v != "French" {
		t.Errorf("TRANSLATE_TO = %v, want French", v)
	}
	// JSON numbers decode as float64, not string.
	if v, _ := reopened.Get("MAX_PAGES"); v != float64(12) {
		t.Errorf("MAX_PAGES = %#v, want float64(12)", v)
	}

	want := []string{"MAX_PAGES", KeyOpenAIAPIKey, KeyTranslateTo}
	if got := reopened.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestStore_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, _ := NewStore(path)
	_ = s.Set(KeyOpenAIAPIKey, "sk")

	if err := s.Delete(KeyOpenAIAPIKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	reopened, _ := NewStore(path)
	if _, ok := reopened.Get(KeyOpenAIAPIKey); ok {
		t.Error("deleted key should not survive reload")
	}
}

func TestNewStore_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("[1,2"), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := NewStore(path)
	if err == nil {
		t.Error("expected decode error")
	}
	if s == nil || len(s.Keys()) != 0 {
		t.Error("malformed store should still be usable and empty")
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(map[string]interface{}{KeyTranslateTo: 42})
	if v, ok := s.Get(KeyTranslateTo); !ok || v != 42 {
		t.Errorf("Get = %v, %v", v, ok)
	}
	if err := s.Set("x", "y"); err != nil {
		t.Errorf("Set on memory store: %v", err)
	}
	if s.GetFilePath() != "" {
		t.Error("memory store has no file")
	}
}
