package content

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// EnsureLayout creates the category folders under root and seeds the texts
// file with DefaultTexts when it does not exist.
func EnsureLayout(root, textsPath string) error {
	var errs []error
	for _, c := range Categories {
		if err := os.MkdirAll(filepath.Join(root, string(c)), 0o755); err != nil {
			errs = append(errs, err)
		}
	}
	if textsPath != "" {
		if _, err := os.Stat(textsPath); errors.Is(err, fs.ErrNotExist) {
			body := strings.Join(DefaultTexts, "\n"+textSeparator+"\n")
			if err := os.WriteFile(textsPath, []byte(body), 0o644); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
