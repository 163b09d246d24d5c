package alert

import (
	"fmt"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04"

// FormatAlert renders an alert as a plain-text notification for the user.
func FormatAlert(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Wellness alert %s\n", a.Severity, shortID(a.ID))
	b.WriteString(a.Message)
	b.WriteString("\n")

	if len(a.Resources) > 0 {
		b.WriteString("\nSupport you can reach right now:\n")
		for _, r := range a.Resources {
			fmt.Fprintf(&b, "  - %s: %s", r.Name, r.Contact)
			if r.Note != "" {
				fmt.Fprintf(&b, " (%s)", r.Note)
			}
			b.WriteString("\n")
		}
	}
	if a.Flags.NotifyGuardians && !a.GuardianConsent {
		b.WriteString("\nWould you like us to let your guardian know? Reply /consent " + a.ID + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatGuardianNotification renders the message sent to guardians once the
// user has consented.
func FormatGuardianNotification(a Alert, userName string) string {
	if userName == "" {
		userName = "The person you support"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s may need support. Alert level: %s.\n", userName, a.Severity)
	fmt.Fprintf(&b, "Raised at %s after a sustained run of distress", a.CreatedAt.Format(timeLayout))
	if a.PatternSnapshot.ConsecutiveDistress > 0 {
		fmt.Fprintf(&b, " (%d messages in a row)", a.PatternSnapshot.ConsecutiveDistress)
	}
	b.WriteString(".\nPlease check in with them gently. Helplines: ")
	names := make([]string, 0, len(GeneralResources))
	for _, r := range GeneralResources {
		names = append(names, r.Contact)
	}
	b.WriteString(strings.Join(names, ", "))
	return b.String()
}

// FormatLogEntry renders one log line.
func FormatLogEntry(e LogEntry) string {
	line := fmt.Sprintf("%s  %-16s %-8s %-12s alert=%s user=%s",
		e.At.Format(timeLayout), e.Event, e.Severity, e.State, shortID(e.AlertID), e.UserID)
	var flags []string
	if e.Flags.SpecializedSupport {
		flags = append(flags, "specialized")
	}
	if e.Flags.TrustedSupport {
		flags = append(flags, "trusted")
	}
	if e.Flags.NotifyGuardians {
		flags = append(flags, "guardians")
	}
	if e.GuardianConsent {
		flags = append(flags, "consent")
	}
	if len(flags) > 0 {
		line += " flags=" + strings.Join(flags, ",")
	}
	return line
}

// Age returns how long ago the alert was raised relative to now.
func Age(a Alert, now time.Time) time.Duration {
	return now.Sub(a.CreatedAt).Truncate(time.Second)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
