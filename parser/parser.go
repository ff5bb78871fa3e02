package parser

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	unsafeNameRe  = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]`)
	underscoresRe = regexp.MustCompile(`_+`)
)

// ExpandPath expands ~ to the user's home directory, or returns the path as-is
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/")), nil
	}
	return path, nil
}

// SanitizeTitle turns a title into a file name stem: whitespace runs become
// underscores and path separators or other reserved characters are dropped.
//
//	"Tower of God" -> "Tower_of_God"
func SanitizeTitle(title string) string {
	name := strings.TrimSpace(title)
	name = whitespaceRe.ReplaceAllString(name, "_")
	name = unsafeNameRe.ReplaceAllString(name, "")
	name = underscoresRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "episode"
	}
	return name
}
