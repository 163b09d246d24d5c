package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/normanking/buddy/internal/alert"
	"github.com/normanking/buddy/internal/orchestrator"
	"github.com/normanking/buddy/internal/speech"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CHAT COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func chatCmd() *cobra.Command {
	var userID, audioDir string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive check-in",
		Long: `Start an interactive check-in. Type how you feel in English, Tamil or
Tanglish. Commands inside the chat:

  /alerts        list this session's alerts and alert log
  /ack <id>      acknowledge an alert so it stops escalating
  /consent <id>  allow buddy to notify your guardians
  /summary       show the current pattern summary
  /quit          end the check-in and save it to your history`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := initializeApp()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, a, userID, audioDir)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	cmd.Flags().StringVar(&audioDir, "audio-dir", "", "write spoken replies as mp3 files to this directory")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runChat(ctx context.Context, a *app, userID, audioDir string) error {
	sess, err := a.companion.Open(ctx, userID)
	if err != nil {
		return err
	}
	p := sess.Profile()

	name := p.Name
	if name == "" {
		name = p.UserID
	}
	fmt.Println(buddyStyle.Render("buddy") + " Hi " + name + ", how are you feeling today? " + dimStyle.Render("(/quit to finish)"))
	if o := sess.Outlook(); o != nil {
		fmt.Println(dimStyle.Render("Based on your recent check-ins: " + o.Message))
	}
	if n := sess.Notice(); n != "" {
		fmt.Println(noticeStyle.Render(n))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	turn := 0
loop:
	for {
		fmt.Print(userStyle.Render("you") + " ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			break loop
		case l, ok := <-lines:
			if !ok {
				fmt.Println()
				break loop
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := chatCommand(sess, p.Name, line); quit {
				break loop
			}
			continue
		}

		reply, err := sess.HandleMessage(ctx, line)
		if err != nil {
			return err
		}
		turn++
		printReply(reply)
		if audioDir != "" {
			speak(ctx, a.tts, audioDir, turn, reply.Text)
		}
	}

	return finishChat(sess)
}

// chatCommand runs one slash command and reports whether the chat should end.
func chatCommand(sess *orchestrator.Session, userName, line string) bool {
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "/quit", "/exit", "/bye":
		return true
	case "/alerts":
		alerts := sess.Alerts()
		if len(alerts) == 0 {
			fmt.Println(dimStyle.Render("No alerts in this session."))
			return false
		}
		for _, al := range alerts {
			fmt.Println(severityStyle(al.Severity).Render(al.Severity.String()) + " " + al.ID + " " + al.State.String())
		}
		fmt.Println(titleStyle.Render("Alert log"))
		for _, e := range sess.AlertLog() {
			fmt.Println(dimStyle.Render(alert.FormatLogEntry(e)))
		}
	case "/ack":
		al, err := sess.Acknowledge(resolveAlertID(sess, arg))
		if err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			return false
		}
		fmt.Println(okStyle.Render("Alert acknowledged. Thank you for letting me know you've seen it."))
		log.Info().Str("alert_id", al.ID).Msg("alert acknowledged from chat")
	case "/consent":
		al, err := sess.GrantConsent(resolveAlertID(sess, arg))
		if err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			return false
		}
		if len(al.Contacts) == 0 {
			fmt.Println(noticeStyle.Render("Consent recorded, but you have no guardians saved yet. Add one with `buddy profile create --guardian`."))
			return false
		}
		fmt.Println(okStyle.Render("Thank you. This is what your guardians will receive:"))
		fmt.Println(alertBox.Render(alert.FormatGuardianNotification(al, userName)))
	case "/summary":
		s := sess.Summary()
		fmt.Printf("messages %d  average %+.2f  trend %s  risk %s (%.2f)  distress run %d\n",
			s.MessagesCount, s.AverageSentiment, s.Trend, s.SeverityLevel, s.RiskScore, s.ConsecutiveDistress)
	default:
		fmt.Println(dimStyle.Render("Unknown command. Try /alerts, /ack <id>, /consent <id>, /summary or /quit."))
	}
	return false
}

// resolveAlertID accepts a full id, an id prefix, or nothing for the newest
// pending alert.
func resolveAlertID(sess *orchestrator.Session, arg string) string {
	alerts := sess.Alerts()
	if arg == "" {
		if pending := sess.PendingAlerts(); len(pending) > 0 {
			return pending[len(pending)-1].ID
		}
		return ""
	}
	for _, al := range alerts {
		if strings.HasPrefix(al.ID, arg) {
			return al.ID
		}
	}
	return arg
}

func printReply(r orchestrator.Reply) {
	fmt.Println(buddyStyle.Render("buddy") + " " + r.Text)
	for _, e := range r.Escalated {
		fmt.Println(severityStyle(e.Severity).Render(fmt.Sprintf("Alert %s escalated to %s.", shortID(e.ID), e.Severity)) +
			dimStyle.Render(" /ack to acknowledge"))
	}
	if r.Alert != nil {
		fmt.Println(renderAlert(*r.Alert))
	}
	if r.RiskForecast != nil && r.RiskForecast.WillEscalate {
		fmt.Println(noticeStyle.Render(r.RiskForecast.Recommendation))
	}
}

func finishChat(sess *orchestrator.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	res, err := sess.Close(ctx)
	switch {
	case errors.Is(err, orchestrator.ErrPersistence):
		fmt.Println(noticeStyle.Render(res.Notice))
		return nil
	case err != nil:
		return err
	}

	if !res.Persisted {
		fmt.Println(dimStyle.Render("Nothing to save today. Take care!"))
		return nil
	}
	fmt.Println(okStyle.Render(fmt.Sprintf("Check-in saved. Positive streak: %d.", res.MoodStreak)))
	for _, b := range res.NewBadges {
		fmt.Println(okStyle.Render("New badge: " + b.Title + ". " + b.Description))
	}
	return nil
}

func speak(ctx context.Context, tts speech.TTS, dir string, turn int, text string) {
	audio := tts.Synthesize(ctx, text, speech.LangForText(text))
	if len(audio) == 0 {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Err(err).Msg("failed to create audio directory")
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("reply-%03d.mp3", turn))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to write reply audio")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
