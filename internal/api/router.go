package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	config "github.com/maheshrc27/locaposty/configs"
	"github.com/maheshrc27/locaposty/internal/api/handlers"
	"github.com/maheshrc27/locaposty/internal/api/middleware"
	"github.com/maheshrc27/locaposty/internal/service"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	User     *handlers.UserHandler
	Post     *handlers.PostHandler
	Review   *handlers.ReviewHandler
	Location *handlers.LocationHandler
	Media    *handlers.MediaHandler
	ApiKey   *handlers.ApiKeyHandler
}

// Health reports whether the process can serve traffic.
type Health func() error

func NewApp(cfg *config.Config, h Handlers, apiKeys service.ApiKeyService, health Health) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		BodyLimit:    50 * 1024 * 1024, // 50 MB, enough for short videos
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			slog.Error("unhandled error", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestContext())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + middleware.HeaderAPIKey,
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if health != nil {
			if err := health(); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/login", h.Auth.Login)
	app.Get("/login/callback", h.Auth.LoginCallbackHandler)
	app.Post("/logout", h.Auth.Logout)
	app.Get("/auth/gmb/callback", h.Location.ConnectCallback)

	authMiddleware := middleware.NewAuthMiddleware(cfg, apiKeys)
	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	api.Get("/user/info", h.User.GetUserInfo)

	api.Post("/posts/publish", h.Post.PublishPost)
	api.Post("/posts", h.Post.CreatePost)
	api.Get("/posts", h.Post.ListPosts)
	api.Get("/posts/:id", h.Post.GetPost)
	api.Put("/posts/:id", h.Post.UpdatePost)
	api.Delete("/posts/:id", h.Post.RemovePost)
	api.Get("/posts/:id/history", h.Post.PostHistory)

	api.Get("/reviews", h.Review.ListReviews)
	api.Post("/reviews/sync", h.Review.SyncReviews)
	api.Post("/reviews/autoReply/process", h.Review.ProcessAutoReplies)
	api.Post("/reviews/:id/reply/approve", h.Review.ApproveReply)

	api.Get("/locations", h.Location.ListLocations)
	api.Get("/locations/connect", h.Location.ConnectURL)
	api.Patch("/locations/:locationId/settings", h.Location.UpdateSettings)

	api.Post("/media", h.Media.Upload)

	api.Post("/api_key/new", h.ApiKey.CreateApiKey)
	api.Get("/api_key/list", h.ApiKey.ListKeys)
	api.Post("/api_key/remove", h.ApiKey.RemoveAPIKey)

	return app
}
