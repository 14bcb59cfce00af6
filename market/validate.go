package market

import (
	"strings"
)

// Field limits, in bytes.
const (
	MaxTitleLen        = 32
	MaxDescriptionLen  = 500
	MaxSkills          = 10
	MaxSkillLen        = 32
	MaxWorkURLLen      = 280
	MaxNameLen         = 32
	MaxUserEmailLen    = 100
	MaxCompanyEmailLen = 100
	MaxCompanyLinkLen  = 100
	MaxAvatarLen       = 32
	MaxBioLen          = 280
	DefaultUserBio     = "Hi I'm a new user"
)

func requireText(s string, max int, sentinel *Error, field string) error {
	if strings.TrimSpace(s) == "" {
		return wrap(sentinel, "%s is required", field)
	}
	if len(s) > max {
		return wrap(sentinel, "%s is %d bytes, limit %d", field, len(s), max)
	}
	return nil
}

func limitText(s string, max int, sentinel *Error, field string) error {
	if len(s) > max {
		return wrap(sentinel, "%s is %d bytes, limit %d", field, len(s), max)
	}
	return nil
}

func validateSkills(skills []string) error {
	if len(skills) > MaxSkills {
		return wrap(ErrInvalidSkills, "%d skills, limit %d", len(skills), MaxSkills)
	}
	for _, s := range skills {
		if err := requireText(s, MaxSkillLen, ErrInvalidSkills, "skill"); err != nil {
			return err
		}
	}
	return nil
}

// avatarFor builds initials from a display name: the first letter of each word,
// or the first two characters of a single word.
func avatarFor(name string) string {
	trimmed := strings.TrimSpace(name)
	var out []rune
	if strings.Contains(trimmed, " ") {
		for _, w := range strings.Fields(trimmed) {
			out = append(out, []rune(w)[0])
		}
	} else {
		r := []rune(trimmed)
		if len(r) > 2 {
			r = r[:2]
		}
		out = r
	}
	return string(out)
}
