package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/dfelizola/internal-messenger-api/internal/config"
	"github.com/dfelizola/internal-messenger-api/internal/database"
	"github.com/dfelizola/internal-messenger-api/internal/handler"
	"github.com/dfelizola/internal-messenger-api/internal/queue"
	"github.com/dfelizola/internal-messenger-api/internal/repository"
	"github.com/dfelizola/internal-messenger-api/internal/router"
	"github.com/dfelizola/internal-messenger-api/internal/search"
	"github.com/dfelizola/internal-messenger-api/internal/token"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	tokens := token.NewService(cfg.JWTSecret, cfg.TokenTTL, users)
	searcher := search.NewService(users)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, rate limiting disabled")
	}

	// Welcome-email consumer runs for the lifetime of the process with its
	// own reconnect loop.
	go func() {
		if err := queue.StartWelcomeEmailConsumer(users); err != nil {
			log.Printf("welcome-consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg,
		handler.NewAuthHandler(cfg, users, tokens),
		handler.NewUsersHandler(cfg, users, tokens, searcher),
		tokens, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
