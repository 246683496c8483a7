// Command piano is the terminal client of the shared keyboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	service "github.com/okian/ensemble/internal/app"
	"github.com/okian/ensemble/internal/adapters/discovery"
	"github.com/okian/ensemble/internal/adapters/input"
	"github.com/okian/ensemble/internal/adapters/session"
	"github.com/okian/ensemble/internal/adapters/sound"
	"github.com/okian/ensemble/internal/adapters/tui"
	"github.com/okian/ensemble/internal/config"
	"github.com/okian/ensemble/internal/domain/keyboard"
	"github.com/okian/ensemble/internal/domain/layout"
	"github.com/okian/ensemble/pkg/logger"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

const (
	defaultLogFile    = "ensemble.log"
	logFilePermission = 0600
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("piano: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The terminal belongs to the UI, so logs always go to a file.
	logFile := cfg.LogFile
	if logFile == "" {
		logFile = defaultLogFile
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()
	if err := logger.Init(logger.WithBackend(cfg.LogBackend), logger.WithWriter(f)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel))
		_ = logger.SetLevelString("info")
	}

	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("%w: %w", sound.ErrDevice, err)
	}
	defer drv.Close()
	out, err := sound.OpenMIDI(drv, cfg.MIDIPort, uint8(cfg.MIDIChannel))
	if err != nil {
		return err
	}
	defer out.Close()
	log.Info(ctx, "midi output open", logger.String("port", out.Port()))

	if cfg.Intro {
		if err := sound.PlayIntro(ctx, out, uint8(cfg.Volume)); err != nil {
			log.Warn(ctx, "intro interrupted", logger.Error(err))
		}
	}

	l, err := layout.New(layout.DefaultConfig().WithWindowWidth(cfg.WindowWidth))
	if err != nil {
		return err
	}
	selfColor, err := cfg.SelfColor()
	if err != nil {
		return err
	}

	relayURL := cfg.RelayURL
	if relayURL == "" && cfg.Discovery {
		if relayURL, err = discovery.Browse(ctx, cfg.DiscoveryTimeout()); err != nil {
			log.Info(ctx, "no relay discovered; playing locally", logger.Error(err))
		}
	}

	// Paints and status updates queue in the renderer until its pump is
	// started against the program below.
	renderer := tui.NewRenderer()
	client := service.NewClient(keyboard.New(l, renderer), out,
		service.WithRelayURL(relayURL),
		service.WithSessionOptions(
			session.WithHandshakeTimeout(cfg.HandshakeTimeout()),
			session.WithQueueSize(cfg.OutboundQueueSize),
		),
		service.WithSynchronizerOptions(
			service.WithRemoteAudible(cfg.RemoteAudible),
			service.WithVolume(uint8(cfg.Volume)),
			service.WithSelfColor(selfColor),
			service.WithInboxSize(cfg.InboxSize),
			service.WithStatusHook(func(st service.Status) {
				renderer.Status(tui.StatusMsg{
					Online: st.Online,
					SelfID: string(st.SelfID),
					Color:  st.Color,
					Peers:  st.Peers,
				})
			}),
		),
	)

	reconnect := func() error {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout())
		defer cancel()
		return client.Connect(connectCtx)
	}

	program := tea.NewProgram(
		tui.New(l, input.New(l, client.Synchronizer()), reconnect),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	go renderer.Run(pumpCtx, program.Send)

	if err := client.Start(ctx); err != nil {
		return err
	}
	defer client.Stop()
	client.Synchronizer().Redraw()

	if relayURL != "" {
		go func() {
			// a failed connect leaves the client playing locally
			if err := reconnect(); err != nil {
				log.Warn(ctx, "relay unreachable; playing locally", logger.String("relay", relayURL), logger.Error(err))
			}
		}()
	}

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
