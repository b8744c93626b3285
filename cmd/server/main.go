package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/robfig/cron"

	config "github.com/postpilotapp/postpilot/configs"
	"github.com/postpilotapp/postpilot/internal/api/handlers"
	"github.com/postpilotapp/postpilot/internal/auth"
	job "github.com/postpilotapp/postpilot/internal/jobs"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/queue"
	"github.com/postpilotapp/postpilot/internal/ratelimit"
	"github.com/postpilotapp/postpilot/internal/scheduler"
	"github.com/postpilotapp/postpilot/internal/store"
	"github.com/postpilotapp/postpilot/pkg/cryptobox"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	box, err := cryptobox.New(cfg.DataDir)
	if err != nil {
		log.Fatalf("Encryption key configuration error: %v", err)
	}

	tokenStore := store.NewTokenStore(filepath.Join(cfg.DataDir, "tokens.json"), box)
	postStore := store.NewPostStore(filepath.Join(cfg.DataDir, "scheduled_posts.json"))

	limiter := ratelimit.NewLimiter(ratelimit.DefaultHourlyLimit, ratelimit.Window)

	authManager := auth.NewManager(tokenStore, auth.Strategies(*cfg))

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	sched := scheduler.New(postStore, queue.NewExecutor(client), cfg.SchedulerTick)
	sched.Start()
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Caller-ID",
	}))

	account := handlers.NewAccountHandler(tokenStore)
	post := handlers.NewPostHandler(postStore)

	api := app.Group("/api")

	reads := api.Group("", ratelimit.Middleware(limiter, ratelimit.OperationRead))
	reads.Get("/accounts", account.ListAccounts)
	reads.Get("/posts", post.ListPosts)

	writes := api.Group("", ratelimit.Middleware(limiter, ratelimit.OperationPost))
	writes.Post("/accounts/connect", account.ConnectAccount)
	writes.Post("/accounts/remove", account.RemoveAccount)
	writes.Post("/accounts/default", account.SetDefaultAccount)
	writes.Post("/posts/create", post.CreatePost)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(tokenStore, authManager)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 00h05m00s", limiter.Cleanup)
	c.Start()
	defer c.Stop()

	worker := queue.NewWorker(postStore, tokenStore, authManager, nil)
	for _, platform := range models.Platforms() {
		worker.Register(platform, dispatchPublisher(platform))
	}

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeExecutePost, worker.HandleExecutePostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, sched)
}

// dispatchPublisher acknowledges a post dispatch for a platform. Platform
// posting integrations replace this by registering their own Publisher on the
// worker.
func dispatchPublisher(platform models.Platform) queue.Publisher {
	return func(ctx context.Context, post *models.ScheduledPost, account *models.Account) error {
		log.Printf("Dispatching post %s to %s (account %s)", post.ID, platform, account.AccountID)
		return nil
	}
}

func gracefulShutdown(app *fiber.App, sched *scheduler.Scheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	sched.Stop()

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	log.Println("Server shutdown complete.")
}
