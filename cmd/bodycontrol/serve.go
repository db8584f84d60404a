package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/BTreeMap/BodyControl/internal/api"
	"github.com/BTreeMap/BodyControl/internal/genai"
	"github.com/BTreeMap/BodyControl/internal/lockfile"
	"github.com/BTreeMap/BodyControl/internal/scheduler"
	"github.com/BTreeMap/BodyControl/internal/store"
)

type serveOptions struct {
	addr        string
	webDir      string
	qr          bool
	frameRate   int
	openAIKey   string
	openAIModel string
	jobPoll     time.Duration
	noLock      bool
	noPersist   bool
}

func serveCmd(root *rootOptions, env Config) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live session server for the browser client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd.OutOrStdout(), root, opts)
		},
	}
	addr := env.APIAddr
	if addr == "" {
		addr = api.DefaultAddr
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", addr, "listen address (overrides $API_ADDR)")
	f.StringVar(&opts.webDir, "web-dir", env.WebDir, "static client directory served at / (overrides $BODYCONTROL_WEB_DIR)")
	f.BoolVar(&opts.qr, "qr", env.QR, "print the play URL as a QR code")
	f.IntVar(&opts.frameRate, "frame-rate", scheduler.DefaultFrameRate, "simulation frames per second")
	f.StringVar(&opts.openAIKey, "openai-api-key", env.OpenAIKey, "OpenAI API key for debriefs (overrides $OPENAI_API_KEY)")
	f.StringVar(&opts.openAIModel, "openai-model", genai.DefaultModel, "OpenAI model for debriefs")
	f.DurationVar(&opts.jobPoll, "job-poll", store.DefaultPollInterval, "debrief job poll interval")
	f.BoolVar(&opts.noLock, "no-lock", false, "skip the state directory lock")
	f.BoolVar(&opts.noPersist, "no-persist", false, "keep no session history")
	return cmd
}

// debriefer picks the OpenAI client when a key is set and the offline
// writer otherwise.
func debriefer(key, model string) genai.Debriefer {
	if key == "" {
		slog.Info("debriefer: no OpenAI API key, using offline debriefs")
		return genai.Offline{}
	}
	client, err := genai.NewClient(genai.WithAPIKey(key), genai.WithModel(model))
	if err != nil {
		slog.Warn("debriefer: OpenAI client unavailable, using offline debriefs", "error", err)
		return genai.Offline{}
	}
	return client
}

// playURL turns a listen address into a URL a phone on the LAN can open.
func playURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = outboundIP()
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func outboundIP() string {
	conn, err := net.Dial("udp", "192.0.2.1:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()
	if a, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return a.IP.String()
	}
	return "localhost"
}

func printQR(w io.Writer, url string) {
	fmt.Fprintf(w, "Play at %s\n", url)
	qrterminal.GenerateHalfBlock(url, qrterminal.L, w)
}

func runServe(ctx context.Context, out io.Writer, root *rootOptions, opts *serveOptions) error {
	cfg, err := root.tuning()
	if err != nil {
		return err
	}

	if !opts.noLock {
		lock, err := lockfile.Acquire(root.stateDir, opts.addr)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	hostOpts := []scheduler.Option{scheduler.WithFrameRate(opts.frameRate)}
	if root.seed != 0 {
		hostOpts = append(hostOpts, scheduler.WithSeed(root.seed))
	}

	var st store.Store
	if !opts.noPersist {
		st, err = root.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		hostOpts = append(hostOpts, scheduler.WithStore(st))
	}

	host := scheduler.New(cfg, hostOpts...)
	server := api.NewServer(host, st, api.WithWebDir(opts.webDir))

	var wg sync.WaitGroup
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := host.Run(runCtx); err != nil && runCtx.Err() == nil {
			slog.Error("runServe: host stopped", "error", err)
		}
	}()

	if st != nil {
		runner := store.NewJobRunner(st, opts.jobPoll)
		runner.RegisterHandler(store.JobKindDebrief, genai.NewDebriefHandler(st, debriefer(opts.openAIKey, opts.openAIModel)))
		if err := runner.RecoverStaleJobs(); err != nil {
			slog.Warn("runServe: stale job recovery failed", "error", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.Run(runCtx)
		}()
	}

	if opts.qr {
		printQR(out, playURL(opts.addr))
	}

	err = server.ListenAndServe(runCtx, opts.addr)
	cancel()
	host.Stop()
	wg.Wait()
	return err
}
