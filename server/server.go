// Package server provides the HTTP server used to serve visibility-check
// requests. The server provided here is opinionated and comes with good
// defaults for a long-running, frequently-reloaded service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mwangi/occlusion/automax"
	occlog "github.com/mwangi/occlusion/log"

	"golang.org/x/sys/unix" // syscall package is deprecated
)

// Opts are the options used to configure [Run].
type Opts struct {
	// ListenAddr is the host:port the server listens on, e.g. ":8080".
	ListenAddr string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// DrainTimeout is how long Run waits after receiving a shutdown signal
	// before it starts draining in-flight connections. It exists to survive
	// the race between a load balancer removing this instance from rotation
	// and the kernel refusing new connections.
	DrainTimeout time.Duration

	// MaxBodyBytes limits request body size. 0 means no rewrite of the default.
	MaxBodyBytes int64

	Logger *slog.Logger
}

func (o Opts) withDefaults() Opts {
	if o.ReadHeaderTimeout <= 0 {
		o.ReadHeaderTimeout = 5 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 120 * time.Second
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = 3 * time.Second
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20 // 1MiB; check-batch requests are the largest payload we expect.
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return o
}

// Run creates a http server, starts it on o.ListenAddr and serves h until a
// termination signal is received, then shuts down cleanly.
func Run(h http.Handler, o Opts) error {
	_ = automax.SetCpu()
	_ = automax.SetMem()

	o = o.withDefaults()

	if err := setRlimit(); err != nil {
		o.Logger.Warn("server: could not raise RLIMIT_NOFILE, continuing with the current limit", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &http.Server{
		Addr: o.ListenAddr,
		// see:
		// 1. https://blog.simon-frey.eu/go-as-in-golang-standard-net-http-config-will-break-your-production
		// 2. https://blog.cloudflare.com/exposing-go-on-the-internet/
		// 3. https://blog.cloudflare.com/the-complete-guide-to-golang-net-http-timeouts/
		Handler:           http.MaxBytesHandler(h, o.MaxBodyBytes),
		ReadHeaderTimeout: o.ReadHeaderTimeout,
		ReadTimeout:       o.ReadTimeout,
		WriteTimeout:      o.WriteTimeout,
		IdleTimeout:       o.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(o.Logger.Handler(), slog.LevelError),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	sigHandler(srv, ctx, cancel, o.Logger, o.DrainTimeout)

	err := serve(ctx, srv, o)
	if !errors.Is(err, http.ErrServerClosed) {
		// The docs for http.Server.Shutdown() say:
		//   When Shutdown is called, Serve/ListenAndServe/ListenAndServeTLS immediately return ErrServerClosed.
		//   Make sure the program doesn't exit and waits instead for Shutdown to return.
		return err
	}

	return nil
}

func sigHandler(
	srv *http.Server,
	ctx context.Context,
	cancel context.CancelFunc,
	logger *slog.Logger,
	drainDur time.Duration,
) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT, unix.SIGQUIT, unix.SIGHUP)
	go func() {
		defer cancel()

		sigCaught := <-sigs

		sl := slog.NewLogLogger(logger.Handler(), occlog.LevelImmediate)
		sl.Println("server got shutdown signal.",
			"signal =", fmt.Sprintf("%v.", sigCaught),
			"drainDuration =", drainDur.String(),
		)

		{
			// If your app is running in kubernetes(k8s), if a pod is deleted;
			// (a) it gets deleted from service endpoints.
			// (b) it receives a SIGTERM from kubelet.
			// (a) & (b) are done concurrently. Thus (b) can occur before (a);
			// if that is the case, your app will shut down while k8s is still sending traffic to it.
			// This sleep minimizes the duration of that race condition.
			time.Sleep(drainDur)
		}

		err := srv.Shutdown(ctx)
		if err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()
}

func serve(ctx context.Context, srv *http.Server, o Opts) error {
	cfg := listenerConfig()
	l, err := cfg.Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("occlusion/server: unable to create listener: %w", err)
	}

	slog.NewLogLogger(o.Logger.Handler(), occlog.LevelImmediate).Printf("server listening at %s", srv.Addr)
	return srv.Serve(l)
}

// listenerConfig creates a net listener config that reuses address and port.
// This is essential in order to be able to carry out zero-downtime deploys.
func listenerConfig() *net.ListenConfig {
	return &net.ListenConfig{
		Control: func(network, address string, conn syscall.RawConn) error {
			return conn.Control(func(descriptor uintptr) {
				_ = unix.SetsockoptInt(
					int(descriptor),
					unix.SOL_SOCKET,
					// go vet will complain if we used syscall.SO_REUSEPORT, even though it would work.
					// this is because Go considers the syscall pkg to be frozen, so we use x/sys/unix.
					// see: https://github.com/golang/go/issues/26771
					unix.SO_REUSEPORT,
					1,
				)
				_ = unix.SetsockoptInt(
					int(descriptor),
					unix.SOL_SOCKET,
					unix.SO_REUSEADDR,
					1,
				)
			})
		},
	}
}
