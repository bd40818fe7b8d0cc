package utils

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

var emailPattern = regexp.MustCompile(`^(?i)[a-z0-9._%+\-]+@(?:[a-z0-9\-]+\.)+[a-z]{2,}$`)

// ValidateEmail takes an email string as input and returns a boolean indicating whether the input is a valid email address.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// PrintBanner writes message framed by '+' characters.
func PrintBanner(w io.Writer, message string) {
	printFramed(w, "+", message)
}

// PrintError writes message framed by '=' characters and prefixed with "ERROR: ".
func PrintError(w io.Writer, message string) {
	printFramed(w, "=", "ERROR: "+message)
}

func printFramed(w io.Writer, bannerChar, message string) {
	bannerLine := strings.Repeat(bannerChar, len([]rune(message))+4)

	fmt.Fprintln(w, bannerLine)
	fmt.Fprintf(w, "%s %s %s\n", bannerChar, message, bannerChar)
	fmt.Fprintln(w, bannerLine)
	fmt.Fprintln(w)
}

// FormatRelative renders t relative to now the way activity history lists show it:
// "just now", "N min ago", "N h ago", "N days ago", and a short date beyond a week.
// The year is included only when it differs from now's.
func FormatRelative(t, now time.Time) string {
	diff := now.Sub(t)
	minutes := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))

	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return fmt.Sprintf("%d min ago", minutes)
	case hours < 24:
		return fmt.Sprintf("%d h ago", hours)
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	}

	if t.Year() != now.Year() {
		return t.Format("2 Jan 2006")
	}
	return t.Format("2 Jan")
}
