package store

import (
	"fmt"
	"strconv"
	"strings"

	"basegraph.app/faultline/internal/model"
)

// formatVector renders a fingerprint in pgvector's text form: [0.1,0.2,...].
func formatVector(fp model.Fingerprint) string {
	var b strings.Builder
	b.Grow(len(fp) * 12)
	b.WriteByte('[')
	for i, v := range fp {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// parseVector reads pgvector's text form back into a fingerprint.
func parseVector(s string) (model.Fingerprint, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("malformed vector literal %q", truncate(s, 32))
	}
	body := s[1 : len(s)-1]
	if strings.TrimSpace(body) == "" {
		return model.Fingerprint{}, nil
	}

	parts := strings.Split(body, ",")
	fp := make(model.Fingerprint, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing vector component %d: %w", i, err)
		}
		fp[i] = v
	}
	return fp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
