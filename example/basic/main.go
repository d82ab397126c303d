package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/PourFlow"
)

// Usage: go run . [COCKTAIL]
// Without an argument the first drink the binding can make is mixed.
func main() {
	flow, err := pourflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := flow.Bind("Gin", "Dry Vermouth", "Vodka", "", "", "", "", "").Build()
	if err != nil {
		log.Fatalf("build: %v", err)
	}
	if err := rt.Start(); err != nil {
		log.Fatalf("start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Shutdown(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	available := rt.Available()
	fmt.Printf("available: %v\n", available)
	if len(available) == 0 {
		return
	}
	drink := available[0]
	if len(os.Args) > 1 {
		drink = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := rt.Mix(drink)
	if err != nil {
		log.Printf("mix %s: %v", drink, err)
		return
	}

	res, err := h.Wait(ctx)
	if errors.Is(err, context.Canceled) {
		// Ctrl-C closes every pump before the runtime goes down.
		_ = rt.StopAll()
		res, err = h.Wait(context.Background())
	}
	if err != nil {
		log.Printf("wait: %v", err)
		return
	}
	fmt.Printf("%s finished: %s\n", h.Name, res.Outcome)
}
