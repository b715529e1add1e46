package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"RiseAndShine/internal/api/generation"
	"RiseAndShine/internal/api/playback"
	"RiseAndShine/internal/config"
	jwtPkg "RiseAndShine/pkg/jwt"
	websocketPkg "RiseAndShine/pkg/websocket"
	"github.com/spf13/cobra"
)

// --- content ---

var generateCmd = &cobra.Command{
	Use:   "generate <alarm-id>",
	Short: "Generate the wake-up script and audio for an alarm",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Generating content for %s", args[0])
		res, err := requestContent(cmd.Context(), client, args[0], false)
		if err != nil {
			return err
		}
		printContent(res)
		return nil
	},
}

var retryAudioCmd = &cobra.Command{
	Use:   "retry-audio <alarm-id>",
	Short: "Retry audio synthesis for an alarm's existing script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Retrying audio for %s", args[0])
		res, err := requestContent(cmd.Context(), client, args[0], true)
		if err != nil {
			return err
		}
		printContent(res)
		return nil
	},
}

func requestContent(ctx context.Context, c *apiClient, alarmID string, retry bool) (generation.GenerateContentResponse, error) {
	path := "/alarms/" + url.PathEscape(alarmID) + "/content"
	if retry {
		path += "/retry"
	}

	var res generation.GenerateContentResponse
	resp, err := c.post(ctx, path, nil)
	if err != nil {
		return res, err
	}
	return res, decodeJSON(resp, &res)
}

func printContent(res generation.GenerateContentResponse) {
	switch {
	case res.AudioOK:
		printSuccess("Script and audio ready after %d attempt(s)", res.Attempts)
	case res.ScriptOK:
		printWarning("Script ready, audio failed after %d attempt(s) (%s): %s", res.Attempts, res.ErrorCategory, res.Error)
	}
	if res.Content == nil {
		return
	}
	printStatus("Script", "%s", res.Content.Text)
	if res.Content.AudioAssetRef != "" {
		printStatus("Audio", "%s", res.Content.AudioAssetRef)
	}
	if res.Content.VoiceID != "" {
		printStatus("Voice", "%s", res.Content.VoiceID)
	}
}

// --- sessions ---

var fireCmd = &cobra.Command{
	Use:   "fire <alarm-id>",
	Short: "Fire an alarm now and start a playback session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		s, err := sessionCall(cmd.Context(), client, "/alarms/"+url.PathEscape(args[0])+"/fire")
		if err != nil {
			return err
		}
		printSuccess("Session %s started", s.ID)
		printSession(s)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <session-id>",
	Short: "Dismiss a ringing session manually",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		s, err := sessionCall(cmd.Context(), client, "/sessions/"+url.PathEscape(args[0])+"/stop")
		if err != nil {
			return err
		}
		printSuccess("Session %s dismissed", s.ID)
		printSession(s)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/sessions/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var s playback.SessionResponse
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}
		printSession(s)
		return nil
	},
}

func sessionCall(ctx context.Context, c *apiClient, path string) (playback.SessionResponse, error) {
	var s playback.SessionResponse
	resp, err := c.post(ctx, path, nil)
	if err != nil {
		return s, err
	}
	return s, decodeJSON(resp, &s)
}

func printSession(s playback.SessionResponse) {
	printStatus("Session", "%s (alarm %s)", s.ID, s.AlarmID)
	printStatus("Phase", "%s", s.Phase)
	if s.Resolution != nil {
		if s.Resolution.Found {
			printStatus("Audio", "%s via %s", s.Resolution.Path, s.Resolution.Strategy)
		} else {
			printStatus("Audio", "not found")
		}
	}
	printStatus("Playback", "%d attempt(s), played=%t", s.PlaybackAttempts, s.AudioPlayed)
	if s.Method != "" {
		printStatus("Dismissed", "%s", s.Method)
	}
	if s.Explanation != "" {
		printStatus("Note", "%s", s.Explanation)
	}
	if s.SnoozedUntil != "" {
		printStatus("Snoozed until", "%s", s.SnoozedUntil)
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Stream a session's events until it is dismissed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return watch(ctx, client, args[0], printEvent)
	},
}

func watch(ctx context.Context, c *apiClient, sessionID string, onEvent func(playback.EventMessage)) error {
	streamURL, err := websocketPkg.EventsURL(c.baseURL, sessionID)
	if err != nil {
		return err
	}
	stream, err := websocketPkg.Dial(ctx, streamURL, c.token)
	if err != nil {
		return err
	}
	defer stream.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		stream.Close()
	}()

	for {
		ev, err := stream.Next()
		if err != nil {
			if errors.Is(err, websocketPkg.ErrStreamClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		onEvent(ev)
	}
}

func printEvent(ev playback.EventMessage) {
	stamp := time.Now().Format("15:04:05")
	line := fmt.Sprintf("%s %-9s %s", stamp, ev.Type, ev.Session.Phase)
	if ev.Message != "" {
		line += "  " + ev.Message
	}
	if ev.Session.Method != "" {
		line += "  (" + ev.Session.Method + ")"
	}
	fmt.Fprintln(stdout, colorize(colorCyan, line))
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect daemon configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig(config.FromEnv())
	},
}

func showConfig(cfg config.AppConfig) error {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, s := range cfg.Settings() {
		fmt.Fprintf(w, "%s\t%s\n", s.Key, s.Value)
	}
	return w.Flush()
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token with JWT_ACCESS_TOKEN_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		name, _ := cmd.Flags().GetString("name")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		subject = strings.TrimSpace(subject)
		if subject == "" {
			return fmt.Errorf("--subject is required")
		}

		token, exp, err := jwtPkg.Sign(os.Getenv("JWT_ACCESS_TOKEN_SECRET"), map[string]interface{}{
			"sub":  subject,
			"name": name,
		}, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, token)
		printSuccess("Token for %s expires %s", subject, time.Unix(exp, 0).Format(time.RFC3339))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(statusCmd)

	tokenCmd.Flags().String("subject", "", "client id placed in the sub claim")
	tokenCmd.Flags().String("name", "", "client display name")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
}
