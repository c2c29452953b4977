package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Trinity-Studio-01/logos-auth/internal/server"
	"github.com/Trinity-Studio-01/logos-auth/internal/service"
	"github.com/Trinity-Studio-01/logos-auth/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth API server",
		Long:  "Start the HTTP server that exposes login, token refresh, admin management, and audit-log retrieval.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8085, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Development mode (verbose logging, insecure cookies)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("auth store initialized", "path", resolvedDataDir())

	jwtSecret := viper.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		if !dev {
			return fmt.Errorf("auth.jwt_secret must be set (config file or LOGOSAUTH_AUTH_JWT_SECRET)")
		}
		jwtSecret = "logosauth-dev-secret-change-me"
		logger.Warn("using built-in development JWT secret")
	}

	tokenCfg := service.DefaultTokenConfig(jwtSecret)
	if d := viper.GetDuration("auth.access_ttl"); d > 0 {
		tokenCfg.AccessTTL = d
	}
	if d := viper.GetDuration("auth.refresh_ttl"); d > 0 {
		tokenCfg.RefreshTTL = d
	}
	tokens := service.NewTokenService(st, tokenCfg, logger)

	authCfg := service.DefaultAuthConfig()
	if n := viper.GetInt("auth.lockout_threshold"); n > 0 {
		authCfg.LockoutThreshold = n
	}
	if d := viper.GetDuration("auth.lockout_duration"); d > 0 {
		authCfg.LockoutDuration = d
	}
	if n := viper.GetInt("auth.password_min_length"); n > 0 {
		authCfg.PasswordMinLength = n
	}
	auth := service.NewAuthService(st, tokens, authCfg, logger)

	hasAdmin, err := st.HasAnyAdmin(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin accounts", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: logosauth admin create")
	}

	// Routine cleanup of expired refresh-token rows, independent of request
	// handling.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	sweepInterval := viper.GetDuration("auth.token_sweep_interval")
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	tokens.StartSweep(sweepCtx, sweepInterval)

	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	srvCfg.AccessTTL = tokenCfg.AccessTTL
	srvCfg.RefreshTTL = tokenCfg.RefreshTTL
	srvCfg.SecureCookies = !dev
	if origins := viper.GetStringSlice("server.cors_origins"); len(origins) > 0 {
		srvCfg.CORSOrigins = origins
	}
	if n := viper.GetInt("ratelimit.login_attempts"); n > 0 {
		srvCfg.LoginAttempts = n
	}
	if d := viper.GetDuration("ratelimit.login_window"); d > 0 {
		srvCfg.LoginWindow = d
	}
	if n := viper.GetInt("ratelimit.api_per_minute"); n > 0 {
		srvCfg.APIRequestsPerMin = n
	}

	srv := server.New(srvCfg, st, auth, tokens, logger)

	fmt.Printf("→ logosauth\n")
	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ Health:  http://%s:%d/healthz\n", host, port)
	fmt.Println()

	return srv.ListenAndServe()
}

// openStore opens the SQLite store at the configured data directory.
func openStore() (*store.Store, error) {
	st, err := store.New(resolvedDataDir())
	if err != nil {
		return nil, fmt.Errorf("init auth store: %w", err)
	}
	return st, nil
}

func resolvedDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if d := viper.GetString("data_dir"); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return home + "/.logosauth"
}
