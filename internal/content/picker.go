package content

import (
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

type Category string

const (
	CategoryRandom  Category = "random"
	CategoryMorning Category = "morning"
	CategoryEvening Category = "evening"
	CategoryPrayers Category = "prayers"
	CategoryVoices  Category = "voices"
	CategoryAudios  Category = "audios"
)

var Categories = []Category{CategoryRandom, CategoryMorning, CategoryEvening, CategoryPrayers, CategoryVoices, CategoryAudios}

var (
	ImageExts = []string{".png", ".jpg", ".jpeg"}
	VoiceExts = []string{".ogg", ".mp3"}
	AudioExts = []string{".mp3", ".mp4", ".wav"}
)

const sidecarExt = ".info"

// Item is one picked resource.
type Item struct {
	Path    string
	Caption string
}

// DirPicker picks files from <Root>/<category>.
type DirPicker struct {
	Root string
	intn func(n int) int
}

func NewDirPicker(root string) *DirPicker {
	return &DirPicker{Root: root, intn: rand.IntN}
}

// Pick returns a random file of the category whose extension is in exts
// (case-insensitive). ok is false when the folder is missing or holds no match.
// Caption comes from an optional "<file>.info" JSON sidecar.
func (p *DirPicker) Pick(category Category, exts []string) (Item, bool) {
	dir := filepath.Join(p.Root, string(category))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Item{}, false
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext == sidecarExt || !slices.Contains(exts, ext) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return Item{}, false
	}

	path := filepath.Join(dir, names[p.intn(len(names))])
	return Item{Path: path, Caption: readCaption(path)}, true
}

func readCaption(path string) string {
	b, err := os.ReadFile(path + sidecarExt)
	if err != nil {
		return ""
	}
	var info struct {
		Caption string `json:"caption"`
	}
	if json.Unmarshal(b, &info) != nil {
		return ""
	}
	return strings.TrimSpace(info.Caption)
}
