package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/retail-aggregator/order-service/config"
	"github.com/retail-aggregator/order-service/internal/order"
	"github.com/retail-aggregator/order-service/pkg/httpserver"
	"github.com/retail-aggregator/order-service/pkg/logger"
	"github.com/retail-aggregator/order-service/pkg/postgres"
)

func main() {
	log := logger.NewLogger("debug", &logger.MainLogHook{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configs: %v", err)
	}

	env, err := config.GetEnvironment()
	if err != nil {
		log.Fatalf(err.Error())
	}

	orderLog := logger.NewLogger(env.LogLvl, &order.OrderLogHook{})
	postgresConfig := postgres.Config{
		Host:     env.PgHost,
		Port:     env.PgPort,
		Username: env.PgUser,
		Password: env.PgPassword,
		DBName:   env.PgDbName,
		SSLMode:  env.SSLMode,
		TimeZone: env.TimeZone,
	}

	db, err := postgres.Connect(postgresConfig, log)
	if err != nil {
		log.Fatalf("failed connection to db: %v", err)
	}

	if err := order.RunMigration(db); err != nil {
		log.Fatalf("failed migration: %v", err)
	}

	orderRepository := order.NewStorage(db)
	orderService := order.NewService(orderRepository, orderLog)

	authLog := logger.NewLogger(env.LogLvl, &order.AuthAdapterLogHook{})
	authAdapter := order.NewAuthAdapter(authLog, env.AuthHost, env.AuthPort)

	err = authAdapter.Login(env.SupervisorEmail, env.SupervisorHashPassword)
	if err != nil {
		log.Fatalf("failed login in auth service: %v", err)
	}

	publisher, err := order.NewRabbitPublisher(env.RabbitURL, env.RabbitExchange)
	if err != nil {
		log.Fatalf("failed connection to rabbit: %v", err)
	}
	defer publisher.Close()

	notifierLog := logger.NewLogger(env.LogLvl, &order.NotifierLogHook{})
	dispatcher := order.NewOutboxDispatcher(orderRepository, publisher, notifierLog)

	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	go dispatcher.Run(dispatcherCtx)

	router := gin.New()

	orderHandler := order.NewHandler(orderService, orderLog, authAdapter)
	orderHandler.Register(router)

	server := new(httpserver.Server)

	go func() {
		if err := server.Run(cfg.Server.Port, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed running server %v", err)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	oscall := <-interrupt
	log.Infof("Shutdown server, %s", oscall)

	stopDispatcher()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Errorf("Error occured on server shutting down: %v", err)
	}
}
