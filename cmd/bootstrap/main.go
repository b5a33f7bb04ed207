// Package main 存储初始化与设置工具
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"imagegen-api/internal/application/history"
	"imagegen-api/internal/application/settings"
	"imagegen-api/internal/config"
	"imagegen-api/internal/wire"
)

func main() {
	clearHistory := flag.Bool("clear-history", false, "clear generation history")
	showHistory := flag.Bool("show-history", false, "print generation history")
	removeKey := flag.Bool("remove-key", false, "remove the stored API key")
	flag.Parse()

	_ = godotenv.Load()

	fmt.Println("Starting storage bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 初始化存储层
	storage, cleanup, err := wire.InitializeStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize storage (%s): %v", cfg.Storage.Driver, err)
	}
	defer cleanup()
	fmt.Printf("Storage driver: %s\n", cfg.Storage.Driver)

	credentials := settings.NewCredentialStore(storage.Settings)
	hist := history.NewService(storage.History)
	defer hist.Close()

	// 3. 写入 API key
	switch {
	case *removeKey:
		if err := credentials.Remove(ctx); err != nil {
			log.Fatalf("failed to remove API key: %v", err)
		}
		fmt.Println("API key removed")
	case os.Getenv("FAL_API_KEY") != "":
		if err := credentials.Set(ctx, os.Getenv("FAL_API_KEY")); err != nil {
			log.Fatalf("failed to save API key: %v", err)
		}
		fmt.Println("API key saved from FAL_API_KEY")
	}

	status, err := credentials.Status(ctx)
	if err != nil {
		log.Fatalf("failed to read API key status: %v", err)
	}
	if status.Configured {
		fmt.Printf("API key: %s\n", status.Masked)
	} else {
		fmt.Println("API key: not configured")
	}

	// 4. 历史记录
	if *clearHistory {
		if err := hist.Clear(ctx); err != nil {
			log.Fatalf("failed to clear history: %v", err)
		}
		fmt.Println("History cleared")
	}

	if *showHistory {
		items, err := hist.GetAll(ctx)
		if err != nil {
			log.Fatalf("failed to read history: %v", err)
		}
		fmt.Printf("History (%d items, newest first):\n", len(items))
		for _, it := range items {
			fmt.Printf("  %s  %s\n    %s\n", it.Timestamp.Format("2006-01-02 15:04:05"), it.Prompt, it.ImageURL)
		}
	}

	fmt.Println("Bootstrap completed")
}
