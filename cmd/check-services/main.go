package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mealscan/mealscan/internal/lookup"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./mealscan.db"
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	fmt.Println("Checking scan services")
	fmt.Println("======================")

	checkEndpoint("Food vision", os.Getenv("FOOD_VISION_URL"))
	checkEndpoint("Dish classifier", os.Getenv("DISH_SERVICE_URL"))
	checkEndpoint("Regional catalog", os.Getenv("REGIONAL_FOOD_URL"))
	checkEndpoint("Barcode service", os.Getenv("BARCODE_SERVICE_URL"))
	fmt.Println()

	rulesURL := os.Getenv("RANKING_RULES_URL")
	if rulesURL == "" {
		rulesURL = os.Getenv("REGIONAL_FOOD_URL")
	}
	if rulesURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		snapshot := lookup.NewRulesClient(rulesURL).Snapshot(ctx)
		cancel()
		if snapshot.Active() {
			fmt.Printf("Adaptive rules: active (%d penalties, %d boosts, generated %s)\n",
				len(snapshot.DoNotPrefer), len(snapshot.Boosts), snapshot.GeneratedAt.Format("2006-01-02"))
		} else {
			fmt.Println("Adaptive rules: inactive")
		}
	}

	var scanCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM scans").Scan(&scanCount); err != nil {
		fmt.Println("No scans table found (engine not yet used)")
		return
	}
	fmt.Printf("\nTotal scans logged: %d\n", scanCount)

	var anchorCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM anchors").Scan(&anchorCount); err == nil {
		fmt.Printf("Visual anchors stored: %d\n", anchorCount)
	}

	rows, err := db.Query(`
		SELECT name, brand, source, decision, combined, scanned_at
		FROM scans
		ORDER BY scanned_at DESC
		LIMIT 5`)
	if err != nil {
		log.Fatal("Failed to query scans:", err)
	}
	defer rows.Close()

	fmt.Println("\nRecent scans:")
	fmt.Println("-------------")

	count := 0
	for rows.Next() {
		var (
			name, brand, source, decision string
			combined                      float64
			scannedAt                     time.Time
		)
		if err := rows.Scan(&name, &brand, &source, &decision, &combined, &scannedAt); err != nil {
			log.Printf("Error scanning row: %v", err)
			continue
		}

		count++
		fmt.Printf("\n%s", name)
		if brand != "" {
			fmt.Printf(" (%s)", brand)
		}
		fmt.Printf("\n  %s via %s, confidence %.2f, at %s\n",
			decision, source, combined, scannedAt.Format("Jan 2 15:04"))
	}

	if count == 0 {
		fmt.Println("No scans yet. Point the camera at something!")
	}
}

func checkEndpoint(name, baseURL string) {
	if baseURL == "" {
		fmt.Printf("%-18s not configured\n", name+":")
		return
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/ping")
	if err != nil {
		fmt.Printf("%-18s unreachable (%v)\n", name+":", err)
		return
	}
	resp.Body.Close()
	fmt.Printf("%-18s reachable (status %d)\n", name+":", resp.StatusCode)
}
