package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"channel-manager/core/loader"
	"channel-manager/core/logger"
	"channel-manager/core/middleware/auth"
	"channel-manager/core/middleware/rayid"
	"channel-manager/feature/bootstrap"
	"channel-manager/feature/channelsync"
	"channel-manager/feature/inventory"
	"channel-manager/feature/ledger"
	"channel-manager/feature/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "channel-manager/docs/swagger"
)

// @title Channel Manager Sync API
// @version 1.0
// @description Bootstrap, reservation pull and rate push against an external channel manager.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKey
// @in header
// @name X-API-Key

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync engine server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		logg := a.log
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		if err := a.cfg.Validate(); err != nil {
			logg.Fatal("Invalid configuration", zap.Error(err))
		}

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
			ReadTimeout:           time.Duration(a.cfg.Server.ReadTimeoutSeconds) * time.Second,
		})

		mgr := loader.NewManager()
		mgr.Register(token.NewFeature(a.tokens, logg))
		mgr.Register(inventory.NewFeature(a.engine, logg))
		mgr.Register(ledger.NewFeature(a.ledger, a.states, a.client.Name(), logg))
		mgr.Register(bootstrap.NewFeature(a.boot, logg))
		mgr.Register(channelsync.NewFeature(a.sync, logg))

		app.Use(recover.New())

		// RayID must be first to trace everything
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			start := time.Now()
			err := c.Next()
			fields := []zap.Field{
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
				zap.Int("status", c.Response().StatusCode()),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				l.Error("Request error", append(fields, zap.Error(err))...)
				return err
			}
			l.Info("Request completed", fields...)
			return nil
		})

		// Swagger documentation is public
		app.Get("/swagger/*", swagger.HandlerDefault)

		app.Get("/health", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "ok"})
		})

		// Roles are resolved once; each route guards itself
		app.Use(auth.New(auth.Config{ApiKey: a.cfg.Server.ApiKey, AutomationSecret: a.cfg.Server.AutomationSecret}))

		api := app.Group("/api/v1")
		loaded, err := mgr.LoadAll(api)
		if err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}
		logg.Info("Features loaded", zap.Strings("features", loaded))

		go func() {
			logg.Info("Starting server", zap.String("port", a.cfg.Server.Port), zap.String("provider", a.client.Name()))
			if err := app.Listen(":" + a.cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
