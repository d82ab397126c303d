package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ghalamif/PourFlow"
)

func main() {
	flow, err := pourflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	announcer, messages, closeMessages := pourflow.NewChannelAnnouncer(32)
	defer closeMessages()

	go displayWorker("bar", messages)

	rt, err := pourflow.NewRuntime(flow.Config(), pourflow.WithAnnouncer(announcer))
	if err != nil {
		log.Fatalf("build: %v", err)
	}
	if err := rt.Start(); err != nil {
		log.Fatalf("start: %v", err)
	}
	if _, err := rt.Mix("DRY MARTINI"); err != nil {
		log.Printf("mix: %v", err)
	}

	<-ctx.Done()
	if err := rt.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if n, _ := announcer.Dropped(); n > 0 {
		log.Printf("display missed %d messages", n)
	}
}

func displayWorker(name string, messages <-chan string) {
	for text := range messages {
		fmt.Printf("[%s %s] %s\n", name, time.Now().Format(time.Kitchen), strings.ToUpper(text))
	}
}
