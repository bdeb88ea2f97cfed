package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"realtime-calculator/internal/client"
	"realtime-calculator/internal/collab"
	"realtime-calculator/internal/config"
	"realtime-calculator/internal/feed"
	"realtime-calculator/internal/model"
	"realtime-calculator/internal/presence"
	"realtime-calculator/internal/view"
)

var (
	serverURL string
	sessionID string
	token     string
	logFile   string

	rootCmd = &cobra.Command{
		Use:   "calc",
		Short: "Shared real-time calculator in the terminal",
		Long: `calc connects to a calculator backend and shows one shared calculator.
Every keystroke is applied locally, saved to the backend, and mirrored to
every other client on the same session.`,
		SilenceUsage: true,
		RunE:         runCalc,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", envOr("CALC_SERVER", "http://localhost:8080"), "Backend base URL")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "Session id (default: CALCULATOR_SESSION_ID or shared-calculator)")
	rootCmd.Flags().StringVar(&token, "token", os.Getenv("CALC_TOKEN"), "Bearer token when the backend requires auth")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file (logs are discarded otherwise)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runCalc(cmd *cobra.Command, _ []string) error {
	// TUI 화면을 깨지 않도록 로그는 파일로
	if logFile != "" {
		f, err := tea.LogToFile(logFile, "calc")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	cfg := config.Load()
	if sessionID == "" {
		sessionID = cfg.Calculator.DefaultSessionID
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var program *tea.Program

	machine := collab.NewMachine(sessionID, client.NewHTTPStore(serverURL, token),
		collab.WithPersistTimeout(cfg.Calculator.PersistTimeout),
		collab.WithPersistErrorHandler(func(err error) {
			// Update 안에서 호출될 수 있어 비동기로 보낸다
			go program.Send(view.PersistErrorMsg{Err: err})
		}),
	)
	defer machine.Close()

	loadCtx, loadCancel := context.WithTimeout(ctx, cfg.Calculator.PersistTimeout)
	machine.Load(loadCtx)
	loadCancel()

	tracker := presence.NewTracker()
	program = tea.NewProgram(view.New(machine), tea.WithAltScreen(), tea.WithContext(ctx))

	// 상태 변경은 신호만 남기고 최신 상태를 전달 (Update 안에서 Send 하면 막힌다)
	changed := make(chan struct{}, 1)
	machine.OnChange(func(_ model.CalculatorState) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	fc, err := client.NewFeedClient(client.FeedConfig{
		ServerURL:      serverURL,
		SessionID:      sessionID,
		Token:          token,
		PingInterval:   cfg.WebSocket.HeartbeatInterval,
		ReconnectDelay: 2 * time.Second,
	})
	if err != nil {
		return err
	}
	fc.Announce(tracker.Announce)
	fc.OnStatus(func(connected bool) {
		tracker.SetConnected(connected)
		program.Send(view.PresenceMsg{Count: tracker.Count(), Connected: connected})
	})
	fc.OnEvent(func(ev feed.Event) {
		machine.HandleEvent(ev)
		if n, ok := tracker.Handle(ev); ok {
			program.Send(view.PresenceMsg{Count: n, Connected: tracker.Connected()})
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return fc.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-changed:
				program.Send(view.StateMsg{State: machine.State()})
			}
		}
	})
	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	return g.Wait()
}
