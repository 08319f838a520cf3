package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gauciv/triji-app-admin-dashboard/internal/api"
	"github.com/gauciv/triji-app-admin-dashboard/internal/auth"
	"github.com/gauciv/triji-app-admin-dashboard/internal/config"
	"github.com/gauciv/triji-app-admin-dashboard/internal/engine"
	"github.com/gauciv/triji-app-admin-dashboard/internal/server"
)

func main() {
	godotenv.Load()
	flag.Parse()

	cfg := config.Load()

	if len(flag.Args()) > 0 && flag.Arg(0) == "create-user" {
		createUser(cfg, flag.Args()[1:])
		return
	}

	fmt.Println("Starting Triji daemon...")

	persister, err := engine.NewPersistence(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize persistence: %v", err)
	}

	initialData, err := persister.LoadAll()
	if err != nil {
		log.Printf("Warning: could not load existing data: %v", err)
	}

	eng := engine.New(initialData, persister)
	fmt.Printf("Engine started. Loaded %d collections.\n", len(initialData))

	secret := cfg.JWTSecret
	if secret == "" {
		// Dev convenience only: tokens stop working across restarts.
		buf := make([]byte, 32)
		rand.Read(buf)
		secret = hex.EncodeToString(buf)
		log.Println("Warning: TRIJI_JWT_SECRET not set, using a random per-run secret")
	}

	h := &api.Handler{
		Engine:   eng,
		Secret:   secret,
		Issuer:   cfg.JWTIssuer,
		TokenTTL: cfg.AccessTokenTTL,
	}
	r := server.NewRouter(h)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutdown signal received. Finalizing disk writes...")
		eng.Close()
		eng.Wait()
		fmt.Println("Persistence complete. Exiting.")
		os.Exit(0)
	}()

	fmt.Printf("Triji daemon listening on %s\n", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}

// createUser seeds a sign-in account. Credentials never travel through the
// API, so account creation is a daemon-side operation.
func createUser(cfg config.Config, args []string) {
	if len(args) < 4 {
		log.Fatal("Usage: trijid create-user <email> <password> <firstName> <lastName> [role]")
	}
	email, password, first, last := args[0], args[1], args[2], args[3]
	role := "student"
	if len(args) > 4 {
		role = args[4]
	}

	persister, err := engine.NewPersistence(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize persistence: %v", err)
	}
	initialData, err := persister.LoadAll()
	if err != nil {
		log.Printf("Warning: could not load existing data: %v", err)
	}
	eng := engine.New(initialData, persister)

	id, err := auth.CreateAccount(eng, email, password, first, last, role)
	if err != nil {
		log.Fatalf("Failed to create account: %v", err)
	}

	eng.Close()
	eng.Wait()
	fmt.Printf("Created %s account %s (%s)\n", role, email, id)
}
