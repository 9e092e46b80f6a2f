package knowledge

import (
	"path/filepath"
	"strings"
)

// titleFrom extracts the first markdown heading from a content sample,
// falling back to the filename without extension.
func titleFrom(sample []byte, path string) string {
	for _, line := range bodyLines(sample) {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// summaryFrom extracts the first non-heading paragraph from a content
// sample. The sample may end mid-paragraph; that is acceptable for a
// summary.
func summaryFrom(sample []byte) string {
	var para []string
	for _, line := range bodyLines(sample) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		para = append(para, trimmed)
	}
	return strings.Join(para, " ")
}

// bodyLines splits a sample into lines with any leading YAML
// frontmatter block removed.
func bodyLines(sample []byte) []string {
	lines := strings.Split(string(sample), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				return lines[i+1:]
			}
		}
	}
	return lines
}
