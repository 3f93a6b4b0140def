package images

import "regexp"

var (
	disallowedChars = regexp.MustCompile("[<>:\"/\\\\|?*'&,!@#$%^()+={}\\[\\]~`]+")
	whitespaceRuns  = regexp.MustCompile(`[\s\p{Z}]+`)
)

// SanitizeFilename turns a display name into a filesystem-safe stem.
// Disallowed characters are dropped and whitespace runs become a single underscore.
// Case is kept and the result may be empty.
func SanitizeFilename(name string) string {
	stem := disallowedChars.ReplaceAllString(name, "")
	return whitespaceRuns.ReplaceAllString(stem, "_")
}
