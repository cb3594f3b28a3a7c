package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"osrs-market/internal/config"
	"osrs-market/internal/market"
	"osrs-market/internal/services/items"
	"osrs-market/internal/services/wiki"

	"github.com/joho/godotenv"
)

// market-cli is the terminal variant: prompt for an item name, then show
// the latest price/margin or the 24h averages.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	client := wiki.NewClient(cfg.WikiBaseURL, cfg.MappingURL, cfg.UserAgent())
	catalog := items.NewCatalog(client)

	reader := bufio.NewReader(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print("Type item name: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		itemID, err := catalog.Resolve(ctx, line)
		if err != nil {
			fmt.Println("Please make sure item is spelled and spaced correctly.")
			continue
		}
		itemName := items.NormalizeName(line)
		fmt.Printf("The current item is: %s (id %d)\n", itemName, itemID)

		fmt.Print("Select option (1 = latest data, 2 = 24 hour history, q = quit): ")
		choice, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		switch strings.TrimSpace(choice) {
		case "1":
			printLatest(ctx, client, itemID, itemName)
		case "2":
			printHistory(ctx, client, itemID)
		case "q":
			return
		default:
			fmt.Println("Unknown option.")
		}
	}
}

func printLatest(ctx context.Context, client *wiki.Client, itemID int, itemName string) {
	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	price, err := client.Latest(fetchCtx, itemID)
	if err != nil {
		fmt.Println("Unable to fetch latest market data. Please try again later.")
		return
	}

	tm, err := market.ComputeTradeMetrics(itemID, itemName, price, time.Now())
	if err != nil {
		fmt.Println("No two-sided market data for this item right now.")
		return
	}

	fmt.Printf("Insta Buy Price: %d\n", tm.High)
	fmt.Printf("Insta Sell Price: %d\n", tm.Low)
	fmt.Printf("Margin (after %d tax): %d\n", tm.Tax, tm.Margin)
	fmt.Printf("ROI: %.2f%%\n", tm.ROIPercent)
	if tm.MinutesSinceTrade != nil {
		fmt.Printf("Last sold %d minute(s) ago.\n", *tm.MinutesSinceTrade)
	}
}

func printHistory(ctx context.Context, client *wiki.Client, itemID int) {
	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	series, err := client.Timeseries(fetchCtx, itemID)
	if err != nil {
		fmt.Println("Unable to fetch historical data. Please try again later.")
		return
	}

	if high, ok := market.AverageHigh(series); ok {
		fmt.Printf("Average High: %d\n", high)
	} else {
		fmt.Println("Average High: no data")
	}
	if low, ok := market.AverageLow(series); ok {
		fmt.Printf("Average Low: %d\n", low)
	} else {
		fmt.Println("Average Low: no data")
	}
}
