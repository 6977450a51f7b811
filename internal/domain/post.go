package domain

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	privatePostLink = regexp.MustCompile(`t\.me/c/(\d+)/(\d+)`)
	publicPostLink  = regexp.MustCompile(`t\.me/([a-zA-Z_][a-zA-Z0-9_]*)/(\d+)`)
)

// ParsePostLink extracts the message id of the discussion post that
// broadcasts reply to. It accepts t.me/c/<chat>/<id>, t.me/<name>/<id>
// or a bare id.
func ParsePostLink(s string) (int, bool) {
	s = strings.TrimSpace(s)
	var raw string
	if m := privatePostLink.FindStringSubmatch(s); m != nil {
		raw = m[2]
	} else if m := publicPostLink.FindStringSubmatch(s); m != nil {
		raw = m[2]
	} else {
		raw = s
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
