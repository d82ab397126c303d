package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ghalamif/PourFlow/pkg/pourflow"
)

func main() {
	flow, err := pourflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := flow.
		Bind("Gin", "Dry Vermouth", "Vodka", "", "", "", "", "").
		AnnounceTo(func(text string) {
			fmt.Printf("%s %s\n", time.Now().Format(time.RFC3339Nano), text)
		}).
		Build()
	if err != nil {
		log.Fatalf("build: %v", err)
	}
	defer rt.Shutdown(context.Background())

	h, err := rt.Mix("VESPER")
	if err != nil {
		log.Fatalf("mix: %v", err)
	}
	res, err := h.Wait(context.Background())
	if err != nil {
		log.Fatalf("wait: %v", err)
	}
	fmt.Printf("%s finished: %s\n", h.Name, res.Outcome)
}
