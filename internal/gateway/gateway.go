// Package gateway wires the pieces together: storage, the completion
// client, the conversation, channels, the HTTP API, and the nightly
// enhancement job.
package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkrlabs/inkr/internal/api"
	"github.com/inkrlabs/inkr/internal/bus"
	"github.com/inkrlabs/inkr/internal/channel"
	"github.com/inkrlabs/inkr/internal/config"
	"github.com/inkrlabs/inkr/internal/conversation"
	"github.com/inkrlabs/inkr/internal/enhance"
	"github.com/inkrlabs/inkr/internal/llm"
	"github.com/inkrlabs/inkr/internal/models"
	"github.com/inkrlabs/inkr/internal/store"
)

// Options for creating a Gateway.
type Options struct {
	Completer  llm.Completer  // overrides the HTTP client (for testing)
	SignalChan chan os.Signal // overrides signal handling (for testing)
}

type Gateway struct {
	cfg        *config.Config
	store      *store.Store
	completer  llm.Completer
	conv       *conversation.Manager
	bus        *bus.MessageBus
	channels   *channel.ChannelManager
	api        *api.Server
	enhance    *enhance.Service
	signalChan chan os.Signal
}

func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	completer := opts.Completer
	if completer == nil {
		completer = llm.NewClient(cfg.Provider)
	}

	b := bus.NewMessageBus(config.DefaultBufSize)
	channels, err := channel.NewChannelManagerWithGateway(cfg.Channels, cfg.Gateway, b)
	if err != nil {
		st.Close()
		return nil, err
	}

	g := &Gateway{
		cfg:        cfg,
		store:      st,
		completer:  completer,
		conv:       conversation.NewManager(st, completer, cfg.Chat.ContextLimit),
		bus:        b,
		channels:   channels,
		signalChan: opts.SignalChan,
	}

	apiAddr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.APIPort)
	g.api = api.New(st, completer, g.conv, apiAddr)

	if cfg.Enhance.Enabled {
		g.enhance = enhance.NewService(st, completer, cfg.Enhance)
	}

	return g, nil
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	g.api.Start()

	if g.enhance != nil {
		if err := g.enhance.Start(ctx); err != nil {
			log.Printf("[gateway] enhance start warning: %v", err)
		}
	}

	go g.processLoop(ctx)

	log.Printf("[gateway] running on %s:%d", g.cfg.Gateway.Host, g.cfg.Gateway.Port)

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

// processLoop answers inbound channel messages with the shared
// conversation. All channels talk to the same single-user conversation, so
// turns are serialized here.
func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))

			if err := g.conv.Send(msg.Content); err != nil {
				log.Printf("[gateway] completion error for %s: %v", msg.SessionKey(), err)
			}

			reply := g.lastReply()
			if reply == "" {
				continue
			}
			g.bus.Outbound <- bus.OutboundMessage{
				Channel:   msg.Channel,
				ChatID:    msg.ChatID,
				Content:   reply,
				FollowUps: g.conv.FollowUps(),
			}
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) lastReply() string {
	msgs := g.conv.Messages()
	if n := len(msgs); n > 0 && msgs[n-1].Role == models.RoleAssistant {
		return msgs[n-1].Content
	}
	return ""
}

func (g *Gateway) Shutdown() error {
	if err := g.channels.StopAll(); err != nil {
		log.Printf("[gateway] stop channels: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.api.Stop(ctx); err != nil {
		log.Printf("[gateway] stop api: %v", err)
	}

	if g.enhance != nil {
		g.enhance.Stop()
	}

	if err := g.store.Close(); err != nil {
		log.Printf("[gateway] close store: %v", err)
	}

	log.Printf("[gateway] shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
