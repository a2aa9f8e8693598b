package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"

	"github.com/mealscan/mealscan/internal/ai"
	"github.com/mealscan/mealscan/internal/anchor"
	"github.com/mealscan/mealscan/internal/barcode"
	"github.com/mealscan/mealscan/internal/database"
	"github.com/mealscan/mealscan/internal/lookup"
	"github.com/mealscan/mealscan/internal/ocr"
	"github.com/mealscan/mealscan/internal/resolve"
)

func main() {
	var photoPath = flag.String("photo", "", "Path to the photo to resolve")
	var selected = flag.String("label", "", "Optional user-selected label")
	flag.Parse()

	if *photoPath == "" {
		log.Fatal("Please provide a photo with the -photo flag")
	}

	data, err := os.ReadFile(*photoPath)
	if err != nil {
		log.Fatal("Failed to read photo:", err)
	}

	f, err := os.Open(*photoPath)
	if err != nil {
		log.Fatal("Failed to open photo:", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		log.Fatal("Failed to decode photo:", err)
	}

	visionURL := os.Getenv("FOOD_VISION_URL")
	regionalURL := os.Getenv("REGIONAL_FOOD_URL")
	if visionURL == "" || regionalURL == "" {
		log.Fatal("FOOD_VISION_URL and REGIONAL_FOOD_URL are required")
	}

	db, err := database.NewDB(database.Config{SQLitePath: getEnv("DB_PATH", "./mealscan.db")})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	aiConfig := ai.NewConfig()
	thresholds := resolve.DefaultThresholds()

	service := resolve.NewService(
		ai.NewFoodVisionClient(visionURL, os.Getenv("FOOD_VISION_API_KEY"), aiConfig.VisionTimeout),
		ai.NewDishClient(getEnv("DISH_SERVICE_URL", visionURL), os.Getenv("DISH_SERVICE_API_KEY"), aiConfig.DishTimeout),
		ocr.NewExtractor(ocr.NewTesseractEngine(getEnv("OCR_LANGUAGE", "eng")), nil),
		barcode.NewDecoder(nil),
		lookup.NewBarcodeClient(getEnv("BARCODE_SERVICE_URL", regionalURL)),
		resolve.NewRanker(
			lookup.NewRegionalClient(regionalURL, os.Getenv("REGIONAL_FOOD_API_KEY")),
			lookup.NewOpenFoodClient(getEnv("OPEN_FOOD_URL", "https://world.openfoodfacts.org")),
			thresholds,
		),
		lookup.NewRulesClient(getEnv("RANKING_RULES_URL", regionalURL)),
		lookup.NewFeedbackClient(os.Getenv("FEEDBACK_URL")),
		anchor.NewStore(db),
		database.NewHistoryRepo(db),
		thresholds,
	)

	session, err := service.StartScan(resolve.ScanRequest{
		UserID:        getEnv("USER_ID", "cli"),
		Image:         img,
		ImageData:     data,
		SelectedLabel: *selected,
		Visibility:    1.0,
	})
	if err != nil {
		log.Fatal("Failed to start scan:", err)
	}

	fmt.Printf("Session %s\n", session.ID)
	for update := range session.Updates {
		fmt.Printf("[%s]\n", update.Type)
	}

	if session.Decision == nil {
		fmt.Println("No decision reached")
		return
	}

	decision := *session.Decision
	fmt.Printf("\nDecision: %s\n", decision.Kind)
	if decision.Reason != "" {
		fmt.Printf("Reason: %s\n", decision.Reason)
	}
	if decision.Accepted != nil {
		printCandidate("Accepted", *decision.Accepted)
	}
	for i, choice := range decision.Choices {
		printCandidate(fmt.Sprintf("Choice %d", i+1), choice)
	}
}

func printCandidate(prefix string, c resolve.RankedCandidate) {
	fmt.Printf("%s: %s", prefix, c.Item.Name)
	if c.Item.Brand != "" {
		fmt.Printf(" (%s)", c.Item.Brand)
	}
	fmt.Printf(" %.2f [%s", c.Combined, c.Item.Source)
	if c.Provenance.SeedSource != "" {
		fmt.Printf(", seed %s", c.Provenance.SeedSource)
	}
	fmt.Printf("]\n")
	fmt.Printf("  per 100g: %.0f kcal, %.1fg protein, %.1fg carbs, %.1fg fat\n",
		c.Item.Per100g.Calories, c.Item.Per100g.Protein, c.Item.Per100g.Carbs, c.Item.Per100g.Fat)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
