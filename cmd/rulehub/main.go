package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rulehub/rulehub-client/authsession"
	"github.com/rulehub/rulehub-client/authsession/sessionstore"
	"github.com/rulehub/rulehub-client/internal/config"
	"github.com/rulehub/rulehub-client/login"
	"github.com/rulehub/rulehub-client/provider"
	"github.com/rulehub/rulehub-client/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("rulehub exited with error")
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	c := config.New()
	configureLogging(c)

	command := "run"
	if len(args) > 0 {
		command = args[0]
	}

	ctx := context.Background()

	store, err := newStore(c)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	providerClient, err := provider.NewOIDCClient(ctx, c)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}

	manager, err := authsession.New(
		authsession.Deps{Store: store, Provider: providerClient},
		authsession.WithRefreshPolicy(c.GetRefreshInterval(), c.GetStalenessThreshold(), c.GetTokenHardLifetime()),
	)
	if err != nil {
		return fmt.Errorf("auth manager: %w", err)
	}
	defer manager.Close()

	switch command {
	case "login":
		return runLogin(ctx, c, manager, store)
	case "logout":
		if err := manager.RestoreSession(ctx); err != nil {
			log.Debug().Err(err).Msg("No valid session to restore")
		}
		return manager.SignOut(ctx)
	case "whoami":
		return runWhoami(ctx, manager)
	case "token":
		return runToken(ctx, manager)
	case "run":
		return runServe(ctx, c, manager, store)
	default:
		return fmt.Errorf("unknown command %q (expected login, logout, whoami, token or run)", command)
	}
}

func runLogin(ctx context.Context, c config.Config, manager *authsession.Manager, store sessionstore.Store) error {
	displayAppname(c.GetAppName())

	if err := manager.RestoreSession(ctx); err != nil {
		log.Debug().Err(err).Msg("Persisted session not restorable, starting a fresh login")
	}
	if manager.IsAuthenticated() {
		fmt.Printf("Already signed in as %s\n", manager.CurrentUser().Email)
		return nil
	}

	srv, err := server.New(c, manager, store)
	if err != nil {
		return err
	}
	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)

	authenticated := make(chan struct{})
	unsubscribe := manager.Subscribe(func(snap authsession.Snapshot) {
		if snap.IsAuthenticated {
			close(authenticated)
		}
	})
	defer unsubscribe()

	initiator, err := login.NewInitiator(manager, store, login.CryptoNonceGenerator{}, login.ExecURLOpener{}, c.GetLoginEndpoint(), c.GetCallbackURL())
	if err != nil {
		return err
	}
	if err := initiator.BeginLogin(ctx); err != nil {
		shutdown(httpServer)
		return err
	}

	fmt.Println("Waiting for the browser login to complete (Ctrl-C to abort)...")
	select {
	case <-authenticated:
		fmt.Printf("Signed in as %s\n", manager.CurrentUser().Email)
	case <-stopSignal():
		fmt.Println("Login aborted")
	}

	return shutdown(httpServer)
}

func runWhoami(ctx context.Context, manager *authsession.Manager) error {
	if err := manager.RestoreSession(ctx); err != nil {
		return fmt.Errorf("session no longer valid, run `rulehub login`: %w", err)
	}
	user := manager.CurrentUser()
	if user == nil {
		return errors.New("not signed in, run `rulehub login`")
	}
	fmt.Printf("%s (%s)\n", user.Email, user.UserID)
	return nil
}

func runToken(ctx context.Context, manager *authsession.Manager) error {
	if err := manager.RestoreSession(ctx); err != nil {
		return fmt.Errorf("session no longer valid, run `rulehub login`: %w", err)
	}
	token := manager.AccessToken()
	if token == "" {
		return errors.New("not signed in, run `rulehub login`")
	}
	fmt.Println(token)
	return nil
}

func runServe(ctx context.Context, c config.Config, manager *authsession.Manager, store sessionstore.Store) error {
	displayAppname(c.GetAppName())

	if err := manager.RestoreSession(ctx); err != nil {
		log.Warn().Err(err).Msg("Persisted session rejected, starting signed out")
	}

	unsubscribe := manager.Subscribe(func(snap authsession.Snapshot) {
		if snap.IsAuthenticated {
			log.Info().Str("user_id", snap.CurrentUser.UserID).Msg("Authenticated")
		} else {
			log.Info().Msg("Signed out")
		}
	})
	defer unsubscribe()

	srv, err := server.New(c, manager, store)
	if err != nil {
		return err
	}
	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)

	<-stopSignal()
	return shutdown(httpServer)
}

func newStore(c config.Config) (sessionstore.Store, error) {
	switch c.GetSessionBackend() {
	case "file":
		return sessionstore.NewFileStore(c.GetDataFolder())
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		return sessionstore.NewRedisStore(client, c.GetRedisKeyPrefix()), nil
	case "memory":
		return sessionstore.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", c.GetSessionBackend())
	}
}

func configureLogging(c config.Config) {
	if c.GetEnv() == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Callback server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Err(err).Msg("Callback server stopped")
	}
}

func stopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
