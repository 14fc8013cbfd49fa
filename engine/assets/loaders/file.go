package loaders

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/spaghettifunk/preloader/engine/core"
	"github.com/spaghettifunk/preloader/engine/systems"
)

// FileCache keeps raw files in memory, as bytes for binary kinds and as
// strings for text kinds.
type FileCache struct {
	binaries *cache[[]byte]
	texts    *cache[string]
}

var _ systems.GenericFileLoader = (*FileCache)(nil)

func NewFileCache(base string, jobs *systems.JobSystem) *FileCache {
	return &FileCache{
		binaries: newCache[[]byte]("binary", base, jobs),
		texts:    newCache[string]("text", base, jobs),
	}
}

func (fc *FileCache) PreloadBinary(path string, settle systems.SettleFunc) {
	fc.binaries.load(path, os.ReadFile, settle)
}

func (fc *FileCache) UnloadBinary(path string) {
	if fc.binaries.evict(path) {
		core.LogDebug("binary: unloaded %s", path)
	}
}

func (fc *FileCache) PreloadText(path string, settle systems.SettleFunc) {
	fc.texts.load(path, readText, settle)
}

func (fc *FileCache) UnloadText(path string) {
	if fc.texts.evict(path) {
		core.LogDebug("text: unloaded %s", path)
	}
}

func (fc *FileCache) Binary(path string) ([]byte, bool) {
	return fc.binaries.lookup(path)
}

func (fc *FileCache) Text(path string) (string, bool) {
	return fc.texts.lookup(path)
}

func (fc *FileCache) Invalidate(rel string) bool {
	b := fc.binaries.Invalidate(rel)
	t := fc.texts.Invalidate(rel)
	return b || t
}

func (fc *FileCache) Len() int {
	return fc.binaries.Len() + fc.texts.Len()
}

func readText(full string) (string, error) {
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s is not valid UTF-8 text", full)
	}
	return string(data), nil
}
