package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/buddy/internal/orchestrator"
	"github.com/normanking/buddy/internal/profile"
	"github.com/normanking/buddy/internal/speech"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PROFILE COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage user profiles",
	}
	cmd.AddCommand(profileCreateCmd())

	cmd.AddCommand(&cobra.Command{
		Use:   "show <user>",
		Short: "Show a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := initializeApp()
			if err != nil {
				return err
			}
			defer cleanup()

			p, err := a.store.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load profile %s: %w", args[0], err)
			}
			printProfile(p)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := initializeApp()
			if err != nil {
				return err
			}
			defer cleanup()

			ids, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println(dimStyle.Render("No profiles yet. Create one with `buddy profile create <user>`."))
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	})

	var yes bool
	deleteCmd := &cobra.Command{
		Use:   "delete <user>",
		Short: "Delete a profile and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete without --yes")
			}
			a, cleanup, err := initializeApp()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("Deleted " + args[0] + "."))
			return nil
		},
	}
	deleteCmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	cmd.AddCommand(deleteCmd)

	return cmd
}

func profileCreateCmd() *cobra.Command {
	var (
		name, gender, language, style string
		age                           int
		guardians, trusted, unsafe    []string
		force                         bool
	)

	cmd := &cobra.Command{
		Use:   "create <user>",
		Short: "Create or update a profile",
		Long: `Create a profile. Contacts are given as "Name:Phone" or "Name:Phone:Relationship".

Examples:
  buddy profile create priya --name "Priya Raman" --gender female --language bilingual
  buddy profile create priya --guardian "Amma:+91 98400 11111:mother" --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := initializeApp()
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := cmd.Context()

			p, err := a.store.Load(ctx, args[0])
			switch {
			case errors.Is(err, profile.ErrNotFound):
				p = profile.New(args[0], time.Now())
				p.LanguagePreference = cfg.DefaultLanguage()
			case err != nil:
				return err
			case !force:
				return fmt.Errorf("profile %s already exists (use --force to update it)", args[0])
			}

			if cmd.Flags().Changed("name") {
				p.Name = name
			}
			if cmd.Flags().Changed("age") {
				p.Age = age
			}
			if cmd.Flags().Changed("gender") {
				p.Gender = gender
			}
			if cmd.Flags().Changed("language") {
				l, ok := profile.ParseLanguage(language)
				if !ok || !supported(l) {
					return fmt.Errorf("unsupported language %q", language)
				}
				p.LanguagePreference = l
			}
			if cmd.Flags().Changed("style") {
				st, ok := profile.ParseResponseStyle(style)
				if !ok {
					return fmt.Errorf("unknown response style %q (short, balanced, detailed)", style)
				}
				p.ResponseStyle = st
			}
			for flag, dst := range map[string]*[]profile.Contact{
				"guardian": &p.Guardians,
				"trusted":  &p.TrustedContacts,
				"unsafe":   &p.UnsafeContacts,
			} {
				if !cmd.Flags().Changed(flag) {
					continue
				}
				values, _ := cmd.Flags().GetStringArray(flag)
				contacts, err := parseContacts(values)
				if err != nil {
					return err
				}
				*dst = contacts
			}
			p.UpdatedAt = time.Now()

			if err := a.store.Save(ctx, p); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("Saved profile " + p.UserID + "."))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().IntVar(&age, "age", 0, "age")
	cmd.Flags().StringVar(&gender, "gender", "", "gender")
	cmd.Flags().StringVar(&language, "language", "", "reply language: english, tamil or bilingual")
	cmd.Flags().StringVar(&style, "style", "", "reply style: short, balanced or detailed")
	cmd.Flags().StringArrayVar(&guardians, "guardian", nil, "guardian contact (repeatable)")
	cmd.Flags().StringArrayVar(&trusted, "trusted", nil, "trusted contact (repeatable)")
	cmd.Flags().StringArrayVar(&unsafe, "unsafe", nil, "unsafe contact (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "update an existing profile")
	return cmd
}

func supported(l profile.Language) bool {
	for _, s := range cfg.Languages() {
		if s == l {
			return true
		}
	}
	return false
}

func parseContacts(values []string) ([]profile.Contact, error) {
	out := make([]profile.Contact, 0, len(values))
	for _, v := range values {
		parts := strings.SplitN(v, ":", 3)
		if strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("contact %q needs a name", v)
		}
		c := profile.Contact{Name: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			c.Phone = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			c.Relationship = strings.TrimSpace(parts[2])
		}
		out = append(out, c)
	}
	return out, nil
}

func printProfile(p *profile.Profile) {
	fmt.Println(titleStyle.Render("Profile " + p.UserID))
	if p.Name != "" {
		fmt.Printf("Name:       %s\n", p.Name)
	}
	if p.Age > 0 {
		fmt.Printf("Age:        %d\n", p.Age)
	}
	if p.Gender != "" {
		fmt.Printf("Gender:     %s\n", p.Gender)
	}
	fmt.Printf("Language:   %s\n", p.LanguagePreference)
	fmt.Printf("Style:      %s\n", p.ResponseStyle)
	fmt.Printf("Streak:     %d\n", p.MoodStreak)
	if p.LastCheckIn != nil {
		fmt.Printf("Last check: %s\n", p.LastCheckIn.Local().Format("2006-01-02 15:04"))
	}
	fmt.Printf("History:    %d check-ins\n", len(p.EmotionalHistory))
	if len(p.Badges) > 0 {
		fmt.Printf("Badges:     %s\n", strings.Join(p.Badges, ", "))
	}
	groups := []struct {
		label    string
		contacts []profile.Contact
	}{
		{"Guardian", p.Guardians},
		{"Trusted", p.TrustedContacts},
		{"Unsafe", p.UnsafeContacts},
	}
	for _, g := range groups {
		for _, c := range g.contacts {
			fmt.Printf("%-11s %s %s\n", g.label+":", c.Name, dimStyle.Render(c.Phone))
		}
	}
	for _, d := range p.Diagnostics {
		fmt.Println(noticeStyle.Render(d))
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// SUMMARY COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func summaryCmd() *cobra.Command {
	var userID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the weekly wellness summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := initializeApp()
			if err != nil {
				return err
			}
			defer cleanup()

			w, err := a.companion.WeeklySummary(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(w)
			}
			fmt.Println(orchestrator.FormatWeekly(w))
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// SAY COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func sayCmd() *cobra.Command {
	var out, lang string

	cmd := &cobra.Command{
		Use:   "say <text>",
		Short: "Synthesize speech for a reply with the configured provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if lang == "" {
				lang = speech.LangForText(text)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.SpeechTimeout())
			defer cancel()
			tts := speech.Select(true, cfg.Speech.Provider, pollyConfig())
			audio := tts.Synthesize(ctx, text, lang)
			if len(audio) == 0 {
				return fmt.Errorf("no audio produced (provider %q, language %s)", cfg.Speech.Provider, lang)
			}
			if err := os.WriteFile(out, audio, 0o644); err != nil {
				return err
			}
			fmt.Println(okStyle.Render(fmt.Sprintf("Wrote %d bytes to %s.", len(audio), out)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "reply.mp3", "output file")
	cmd.Flags().StringVar(&lang, "lang", "", "language code: en or ta (default: detected)")
	return cmd
}
