package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dukerupert/choreboard/internal/auth"
	"github.com/dukerupert/choreboard/internal/config"
	"github.com/dukerupert/choreboard/internal/database"
	"github.com/dukerupert/choreboard/internal/logging"
	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/objectstore"
	"github.com/dukerupert/choreboard/internal/push"
	"github.com/dukerupert/choreboard/internal/server"
	"github.com/dukerupert/choreboard/internal/store"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "choreboard",
		Short:        "Household chore and rewards server",
		Version:      version,
		SilenceUsage: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "choreboard.yaml", "Path to YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newUserCmd(&configPath),
		newVAPIDKeysCmd(),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	logger := logging.New(logOut, cfg.Log.Level, cfg.Log.Format)

	db, err := database.OpenDriver(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	opts := server.Options{
		Store:         store.NewSQLStore(db, cfg.Database.Driver),
		PushStore:     store.NewPushStore(db, cfg.Database.Driver),
		Tokens:        auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		DefaultUserID: cfg.Household.DefaultUserID,
		Logger:        logger,
	}

	if cfg.Push.Enabled() {
		opts.Push = push.NewService(push.Config{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subscriber:      cfg.Push.Subscriber,
		})
	} else {
		logger.Info("push notifications disabled: no VAPID keys configured")
	}

	if s3 := cfg.Storage.S3; s3.Enabled() {
		objects, err := objectstore.New(ctx, objectstore.Config{
			Endpoint:     s3.Endpoint,
			Bucket:       s3.Bucket,
			Region:       s3.Region,
			AccessKey:    s3.AccessKey,
			SecretKey:    s3.SecretKey,
			UploadExpiry: s3.UploadExpiry,
		})
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		opts.Objects = objects
	} else {
		logger.Info("avatar uploads disabled: no bucket configured")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(opts)
	srv.Start(ctx)
	defer srv.Stop()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("choreboard listening", "addr", httpServer.Addr, "base_url", cfg.Server.BaseURL, "driver", cfg.Database.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type userAddFlags struct {
	username string
	name     string
	password string
	admin    bool
}

func newUserCmd(configPath *string) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage household members",
	}

	var flags userAddFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a member account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(*configPath)
			if err != nil {
				return err
			}
			db, err := database.OpenDriver(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			return addUser(cmd.Context(), db, cfg.Database.Driver, flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	f := addCmd.Flags()
	f.StringVarP(&flags.username, "username", "u", "", "Username (required)")
	f.StringVar(&flags.name, "name", "", "Display name (defaults to the username)")
	f.StringVar(&flags.password, "password", "", "Password (prompted if omitted)")
	f.BoolVar(&flags.admin, "admin", false, "Grant admin rights")
	addCmd.MarkFlagRequired("username")

	userCmd.AddCommand(addCmd)
	return userCmd
}

func addUser(ctx context.Context, db *sql.DB, dialect string, flags userAddFlags, stdin io.Reader, stdout io.Writer) error {
	username := strings.TrimSpace(flags.username)
	if username == "" {
		return errors.New("username cannot be empty")
	}

	password := flags.password
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be empty")
	}

	s := store.NewSQLStore(db, dialect)
	existing, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("user %s already exists", username)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	name := flags.name
	if name == "" {
		name = username
	}

	u, err := s.CreateUser(ctx, &model.User{
		Username:     username,
		Name:         name,
		PasswordHash: hash,
		IsAdmin:      flags.admin,
	})
	if err != nil {
		return err
	}

	role := "member"
	if u.IsAdmin {
		role = "admin"
	}
	fmt.Fprintf(stdout, "User %s created with ID %d (%s)\n", u.Username, u.ID, role)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Not a terminal (pipes, tests)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func newVAPIDKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for web push",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "push:")
			fmt.Fprintf(out, "  vapid_public_key: %s\n", pub)
			fmt.Fprintf(out, "  vapid_private_key: %s\n", priv)
			return nil
		},
	}
}
