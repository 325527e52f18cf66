package content

import (
	"math/rand/v2"
	"os"
	"strings"
)

const textSeparator = "---"

// Texts reads reminder entries from a file on every call, so edits apply
// without a restart. Entries are separated by lines of "---".
type Texts struct {
	Path string
	intn func(n int) int
}

func NewTexts(path string) *Texts { return &Texts{Path: path, intn: rand.IntN} }

// All returns the file entries, or DefaultTexts when the file is missing or empty.
func (t *Texts) All() []string {
	b, err := os.ReadFile(t.Path)
	if err != nil {
		return DefaultTexts
	}
	if entries := splitEntries(string(b)); len(entries) > 0 {
		return entries
	}
	return DefaultTexts
}

func (t *Texts) Count() int { return len(t.All()) }

func (t *Texts) Random() string {
	all := t.All()
	return all[t.intn(len(all))]
}

func splitEntries(s string) []string {
	var out []string
	for _, part := range strings.Split(s, textSeparator) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
