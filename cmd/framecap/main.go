package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"framecap/internal/app"
	"framecap/internal/capture"
	"framecap/internal/config"
	"framecap/internal/encryption"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// errReported means the failure was already printed for the user.
var errReported = errors.New("reported")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// newApp loads the config and creates a CaptureApp. The caller must defer app.Close().
func newApp() (*app.CaptureApp, error) {
	cfg, _, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewCaptureApp(cfg, capture.UUIDGenerator{})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// interruptContext is cancelled on SIGINT or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:           "framecap",
	Short:         "Capture every completed write of a file into a tar.gz archive",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// capture command
var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture frames from a file into an archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		requested, err := durationFlag(cmd)
		if err != nil {
			return err
		}
		duration := a.EffectiveDuration(requested)

		if _, err := a.Resolve(input); err != nil {
			if errors.Is(err, capture.ErrSourceNotFound) {
				fmt.Printf("ERROR: File not found: %s\n", input)
				return errReported
			}
			return err
		}

		fmt.Printf("Monitoring: %s\n", input)
		fmt.Printf("Output archive: %s\n", output)
		fmt.Printf("Duration: %ss\n", formatSeconds(duration))
		fmt.Printf("Capturing on: %s\n", captureTrigger(a.EventSourceType()))
		fmt.Printf("Waiting for frames...\n\n")

		ctx, stop := interruptContext()
		defer stop()

		res, err := a.Capture(ctx, app.CaptureRequest{
			Input:    input,
			Output:   output,
			Duration: &duration,
			Reporter: newConsoleReporter(os.Stdout),
		})
		if res == nil || res.Summary == nil {
			return err
		}

		if res.Summary.Reason == capture.StopInterrupted {
			fmt.Println("\nStopped by user")
		}
		printSummary(res)
		return err
	},
}

// durationFlag returns the --duration value, or nil when it was not given.
func durationFlag(cmd *cobra.Command) (*time.Duration, error) {
	if !cmd.Flags().Changed("duration") {
		return nil, nil
	}
	secs, err := cmd.Flags().GetFloat64("duration")
	if err != nil {
		return nil, err
	}
	if secs < 0 {
		return nil, fmt.Errorf("duration must not be negative")
	}
	d := time.Duration(secs * float64(time.Second))
	return &d, nil
}

func captureTrigger(sourceType string) string {
	if sourceType == "fsnotify" {
		return "settled writes (complete frames)"
	}
	return "CLOSE_WRITE (complete frames)"
}

func printSummary(res *app.CaptureResult) {
	s := res.Summary
	if !s.Captured {
		fmt.Println("\nNo frames captured")
		return
	}

	const mb = 1024 * 1024
	rule := strings.Repeat("=", 50)
	fmt.Printf("\n%s\n", rule)
	fmt.Printf("Captured: %d frames\n", s.Frames)
	fmt.Printf("Duration: %.3fs\n", s.Elapsed.Seconds())
	fmt.Printf("Actual rate: %.1f Hz\n", s.Rate)
	fmt.Printf("Archive size: %.2f MB\n", float64(s.ArchiveSize)/mb)
	fmt.Printf("Uncompressed: %.2f MB\n", float64(s.PayloadBytes)/mb)
	fmt.Printf("Compression: %.1fx\n", s.CompressionRatio())
	fmt.Printf("Estimated: %.2f MB (%.1fx)\n", float64(s.EstimatedBytes)/mb, s.EstimatedCompressionRatio())
	if s.ReadFailures+s.AppendFailures > 0 {
		fmt.Printf("Failed frames: %d read, %d append\n", s.ReadFailures, s.AppendFailures)
	}
	fmt.Printf("Stopped: %s\n", s.Reason)
	fmt.Printf("Saved to: %s\n", res.ArchivePath)
	if res.VaultKey != "" {
		fmt.Printf("Published: %s\n", res.VaultKey)
	}
	fmt.Printf("Session: %s\n", res.SessionID)
	fmt.Println(rule)
}

// formatSeconds prints d like "30.0" or "2.25".
func formatSeconds(d time.Duration) string {
	s := fmt.Sprintf("%g", d.Seconds())
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor FILE",
	Short: "Print every notification on a file with its interval and rate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Resolve(args[0]); err != nil {
			if errors.Is(err, capture.ErrSourceNotFound) {
				fmt.Printf("ERROR: File not found: %s\n", args[0])
				return errReported
			}
			return err
		}

		fmt.Printf("Monitoring all events on: %s\n", args[0])
		fmt.Printf("Press Ctrl+C to stop\n\n")

		ctx, stop := interruptContext()
		defer stop()

		count, err := a.Monitor(ctx, args[0], func(t capture.EventTiming) {
			ts := t.At.Local().Format("15:04:05.000")
			if t.First {
				fmt.Printf("%s  %-15s  (first event)\n", ts, t.Kind)
				return
			}
			ms := float64(t.Interval) / float64(time.Millisecond)
			fmt.Printf("%s  %-15s  Interval: %6.2f ms  Rate: %6.1f Hz\n", ts, t.Kind, ms, t.Rate())
		})
		fmt.Printf("\n\nStopped. Total events: %d\n", count)
		return err
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View capture session history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No capture sessions recorded.")
			return nil
		}

		for _, s := range sessions {
			elapsed := ""
			if s.FirstFrameAt.Valid && s.FinishedAt.Valid {
				elapsed = s.FinishedAt.Time.Sub(s.FirstFrameAt.Time).Truncate(time.Millisecond).String()
			}
			published := ""
			if s.VaultKey != "" {
				published = "  -> " + s.VaultKey
			}
			fmt.Printf("%s  %s  %-7s  %5d frames  %-13s  %-10s  %s%s\n",
				s.ID,
				s.StartedAt.Local().Format("2006-01-02 15:04:05"),
				s.Status,
				s.Frames,
				s.StopReason,
				elapsed,
				s.SourcePath,
				published,
			)
		}
		return nil
	},
}

// inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect ARCHIVE",
	Short: "List the frames in an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Inspect(args[0])
		if err != nil {
			return err
		}

		var total int64
		for _, e := range entries {
			fmt.Printf("%s  %10d  %s\n", e.Name, e.Size, e.ModTime.UTC().Format("2006-01-02 15:04:05.000000"))
			total += e.Size
		}
		fmt.Printf("%d frames, %d bytes\n", len(entries), total)
		return nil
	},
}

// fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch SESSION_ID",
	Short: "Download a published archive from the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = args[0] + ".tar.gz"
		}
		dest, err := filepath.Abs(output)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		prompt := func() (string, error) { return readPassphrase("Passphrase: ") }
		if err := a.Fetch(args[0], dest, prompt); err != nil {
			return err
		}
		fmt.Printf("Fetched to %s\n", dest)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		if _, err := os.Stat(defaults["config_path"]); err == nil {
			return fmt.Errorf("config file already exists at %s", defaults["config_path"])
		}

		hostID := capture.UUIDGenerator{}.New()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if encrypt {
			if err := setupEncryption(cfg); err != nil {
				return err
			}
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		if encrypt {
			fmt.Printf("Public key: %s\n", cfg.Encryption.PublicKeyPath)
		}
		return nil
	},
}

func setupEncryption(cfg *config.Config) error {
	pass, err := readPassphrase("New passphrase: ")
	if err != nil {
		return fmt.Errorf("reading passphrase: %w", err)
	}
	confirm, err := readPassphrase("Repeat passphrase: ")
	if err != nil {
		return fmt.Errorf("reading passphrase: %w", err)
	}
	if pass != confirm {
		return fmt.Errorf("passphrases do not match")
	}

	cfg.Encryption.Enabled = true
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return err
	}
	if err := enc.Setup(pass); err != nil {
		return fmt.Errorf("generating keys: %w", err)
	}
	return nil
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := app.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		c := cfg.Capture.WithDefaults()

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Host ID:  %s\n", cfg.HostID)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Database: %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Events:   %s (poll %dms, settle %dms)\n", c.Source, c.PollIntervalMillis, c.SettleMillis)
		fmt.Printf("Duration: %gs default, progress every %d frames\n", c.DefaultDurationSeconds, c.ProgressEvery)
		fmt.Printf("Encrypt:  %v\n", cfg.Encryption.Enabled)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:    %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("encrypt", false, "Generate an age key pair and encrypt published archives")
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringP("input", "i", "", "File to monitor")
	captureCmd.Flags().StringP("output", "o", "", "Output tar.gz archive")
	captureCmd.Flags().Float64P("duration", "d", config.DefaultDurationSeconds, "Seconds to capture after the first frame")
	captureCmd.MarkFlagRequired("input")
	captureCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of sessions to show")
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringP("output", "o", "", "Destination file (default SESSION_ID.tar.gz)")
}
