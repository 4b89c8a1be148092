package pubsub

import "strings"

// GlobalStatsChannel carries platform-wide counters (downloads, skills, users).
const GlobalStatsChannel = "global_stats"

// SanitizeChannel replaces every byte outside [A-Za-z0-9_] with '_'.
// Multi-byte runes become one '_' per byte, so the result is always ASCII and
// sanitizing twice is a no-op.
func SanitizeChannel(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// NotificationsChannel is the per-user notification channel.
func NotificationsChannel(userID string) string {
	return "notifications:" + userID
}

// SkillFollowersChannel is the per-skill channel watched by the skill's followers.
func SkillFollowersChannel(skillID string) string {
	return "skill_followers:" + skillID
}
