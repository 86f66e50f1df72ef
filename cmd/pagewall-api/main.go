package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pagewall/pagewall/backend/internal/auth"
	"github.com/pagewall/pagewall/backend/internal/config"
	"github.com/pagewall/pagewall/backend/internal/converter"
	"github.com/pagewall/pagewall/backend/internal/database"
	"github.com/pagewall/pagewall/backend/internal/documents"
	"github.com/pagewall/pagewall/backend/internal/logging"
	"github.com/pagewall/pagewall/backend/internal/pagecache"
	"github.com/pagewall/pagewall/backend/internal/server"
	"github.com/pagewall/pagewall/backend/internal/settings"
	"github.com/pagewall/pagewall/backend/internal/trust"
	"github.com/pagewall/pagewall/backend/internal/users"
	"github.com/pagewall/pagewall/backend/internal/viewing"
	"github.com/pagewall/pagewall/backend/internal/watermark"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pagewall-api",
		Short: "Pagewall watermarked document viewer backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("cache-dir", defaults.GetString("cache.dir"), "Rendered page cache directory")
	cmd.PersistentFlags().String("upload-dir", defaults.GetString("upload.dir"), "Uploaded document directory")
	cmd.PersistentFlags().String("watermark-dir", defaults.GetString("watermark.dir"), "Static watermark image directory")
	cmd.PersistentFlags().Int("token-ttl-hours", defaults.GetInt("token.ttl_hours"), "Viewer token TTL in hours")
	cmd.PersistentFlags().Bool("require-referer-check", defaults.GetBool("trust.require_referer_check"), "Enforce the embed domain allowlist")
	cmd.PersistentFlags().String("allowed-embed-domains", defaults.GetString("trust.allowed_embed_domains"), "Comma-separated embed domain allowlist")
	cmd.PersistentFlags().Int("convert-dpi", defaults.GetInt("convert.dpi"), "Rasterization DPI for converted pages")
	cmd.PersistentFlags().String("signing-secret", "", "Admin token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "cache.dir", "cache-dir")
	bindFlag(cmd, "upload.dir", "upload-dir")
	bindFlag(cmd, "watermark.dir", "watermark-dir")
	bindFlag(cmd, "token.ttl_hours", "token-ttl-hours")
	bindFlag(cmd, "trust.require_referer_check", "require-referer-check")
	bindFlag(cmd, "trust.allowed_embed_domains", "allowed-embed-domains")
	bindFlag(cmd, "convert.dpi", "convert-dpi")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := database.EnsureDefaultAdmin(db, logger); err != nil {
		return err
	}

	documentService, err := documents.NewService(documents.ServiceConfig{Database: db})
	if err != nil {
		return err
	}
	pageStore := documents.NewPageStore(appConfig.CacheDir)

	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		return err
	}

	sessionManager, err := viewing.NewManager(viewing.ManagerConfig{
		Database: db,
		Users:    userService,
		TokenTTL: appConfig.TokenTTL,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	pageCache := pagecache.New(appConfig.CacheDir, logger)

	settingsService, err := settings.NewService(settings.ServiceConfig{
		Database: db,
		Cache:    pageCache,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	compositor, err := watermark.NewCompositor()
	if err != nil {
		return err
	}

	watermarkStore, err := watermark.NewStore(watermark.StoreConfig{Database: db})
	if err != nil {
		return err
	}

	gate := trust.NewGate(trust.GateConfig{
		Enforce:        appConfig.RequireRefererCheck,
		AllowedDomains: appConfig.AllowedEmbedDomains,
		InsecureBypass: appConfig.InsecureEmbedBypass,
	})

	adminService, err := auth.NewAdminService(auth.AdminServiceConfig{Database: db})
	if err != nil {
		return err
	}
	adminTokens := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.AdminSigningSecret),
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Documents:      documentService,
		Pages:          pageStore,
		Users:          userService,
		Sessions:       sessionManager,
		Settings:       settingsService,
		PageCache:      pageCache,
		Compositor:     compositor,
		Watermarks:     watermarkStore,
		Gate:           gate,
		AdminAuth:      adminService,
		AdminTokens:    adminTokens,
		Converter:      converter.New(appConfig.ConvertDPI, logger),
		UploadDir:      appConfig.UploadDir,
		MaxUploadBytes: appConfig.MaxUploadBytes,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
