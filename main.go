package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kntpass.backend/internal/config"
	"kntpass.backend/internal/database"
	"kntpass.backend/internal/fulfillment"
	"kntpass.backend/internal/handler"
	"kntpass.backend/internal/keys"
	"kntpass.backend/internal/middleware"
	"kntpass.backend/internal/payment"
	"kntpass.backend/internal/store"
)

func main() {
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	config.LoadConfig()
	database.ConnectKV()

	kv := store.NewRedisKV(database.KV)
	keyStore := store.NewKeyStore(kv, log.Logger)
	handler.Keys = keyStore
	handler.Lifecycle = keys.NewManager(keyStore, log.Logger)
	handler.Products = store.NewConfigStore(kv, log.Logger)
	handler.Partner = fulfillment.NewClient(config.Cfg.PartnerBaseURL, config.Cfg.PartnerSellerKey, config.Cfg.PartnerAdminKey, log.Logger)
	handler.Gateway = payment.NewClient(config.Cfg.MercadoPagoToken, "", log.Logger)

	r := mux.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			log.Info().Str("method", req.Method).Str("uri", req.RequestURI).Msg("request received")
			next.ServeHTTP(w, req)
		})
	})

	r.HandleFunc("/api/send-pass", handler.SendPassHandler).Methods("POST")
	r.HandleFunc("/api/payments", handler.CreatePaymentHandler).Methods("POST")
	r.HandleFunc("/api/payments/verify", handler.VerifyPaymentHandler).Methods("POST")
	r.HandleFunc("/api/public-config", handler.PublicConfigHandler).Methods("GET")
	r.HandleFunc("/api/admin/login", handler.AdminLoginHandler).Methods("POST")
	r.HandleFunc("/api/reseller/login", handler.ResellerLoginHandler).Methods("POST")
	r.HandleFunc("/api/sellers", handler.SellersHandler).Methods("POST")

	adminRoutes := r.PathPrefix("/api/admin").Subrouter()
	adminRoutes.Use(middleware.JWTMiddleware, middleware.AdminMiddleware)
	adminRoutes.HandleFunc("/keys", handler.GenerateKeysHandler).Methods("POST")
	adminRoutes.HandleFunc("/keys", handler.ListKeysHandler).Methods("GET")
	adminRoutes.HandleFunc("/keys/{key}", handler.DeleteKeyHandler).Methods("DELETE")
	adminRoutes.HandleFunc("/config", handler.AdminLoadConfigHandler).Methods("GET")
	adminRoutes.HandleFunc("/config", handler.AdminSaveConfigHandler).Methods("POST")

	allowedOrigins := handlers.AllowedOrigins(config.Cfg.AllowedOrigins)
	allowedMethods := handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"})
	allowedHeaders := handlers.AllowedHeaders([]string{"Authorization", "Content-Type"})
	corsRouter := handlers.CORS(allowedOrigins, allowedMethods, allowedHeaders)(r)

	server := &http.Server{Addr: config.Cfg.Port, Handler: corsRouter}

	go func() {
		log.Info().Str("addr", config.Cfg.Port).Msg("starting key-fulfillment backend")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", config.Cfg.Port).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("server is shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server exited properly")
}
