package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const maxOutputNameLen = 120

// SanitizeName makes s safe to use as a file name. Control characters are
// dropped and anything outside letters, digits and " -_.,()" becomes '_'.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsControl(r):
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune(" -_.,()", r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

// ValidateOutputDir requires dir to be a clean, existing directory with no
// ".." segments.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("output directory is required")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("output directory cannot contain path traversal")
		}
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("output directory must be a clean path")
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory %s does not exist", dir)
		}
		return fmt.Errorf("invalid output directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// OutputPath validates dir and joins it with a sanitized name. ext is appended
// when name has no extension.
func OutputPath(dir, name, ext string) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}
	clean := SanitizeName(name, maxOutputNameLen)
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return "", fmt.Errorf("output name %q is empty after sanitizing", name)
	}
	if filepath.Ext(clean) == "" {
		clean += ext
	}
	return filepath.Join(dir, clean), nil
}
