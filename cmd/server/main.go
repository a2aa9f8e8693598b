package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/mealscan/mealscan/internal/ai"
	"github.com/mealscan/mealscan/internal/anchor"
	"github.com/mealscan/mealscan/internal/api"
	"github.com/mealscan/mealscan/internal/barcode"
	"github.com/mealscan/mealscan/internal/database"
	"github.com/mealscan/mealscan/internal/lookup"
	"github.com/mealscan/mealscan/internal/ocr"
	"github.com/mealscan/mealscan/internal/resolve"
	"github.com/mealscan/mealscan/internal/storage"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	maxUploadSize := os.Getenv("MAX_UPLOAD_SIZE")
	if maxUploadSize == "" {
		maxUploadSize = "10485760"
	}
	maxSize, err := strconv.ParseInt(maxUploadSize, 10, 64)
	if err != nil {
		log.Fatal("Invalid MAX_UPLOAD_SIZE:", err)
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./mealscan.db"
	}

	localStorage, err := storage.NewLocalStorage(uploadDir)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}

	db, err := database.NewDB(database.Config{SQLitePath: dbPath})
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	visionURL := os.Getenv("FOOD_VISION_URL")
	if visionURL == "" {
		log.Fatal("FOOD_VISION_URL is required")
	}
	dishURL := os.Getenv("DISH_SERVICE_URL")
	if dishURL == "" {
		dishURL = visionURL
	}
	regionalURL := os.Getenv("REGIONAL_FOOD_URL")
	if regionalURL == "" {
		log.Fatal("REGIONAL_FOOD_URL is required")
	}
	openFoodURL := os.Getenv("OPEN_FOOD_URL")
	if openFoodURL == "" {
		openFoodURL = "https://world.openfoodfacts.org"
	}
	barcodeURL := os.Getenv("BARCODE_SERVICE_URL")
	if barcodeURL == "" {
		barcodeURL = regionalURL
	}
	rulesURL := os.Getenv("RANKING_RULES_URL")
	if rulesURL == "" {
		rulesURL = regionalURL
	}
	feedbackURL := os.Getenv("FEEDBACK_URL")

	aiConfig := ai.NewConfig()
	visionClient := ai.NewFoodVisionClient(visionURL, os.Getenv("FOOD_VISION_API_KEY"), aiConfig.VisionTimeout)
	dishClient := ai.NewDishClient(dishURL, os.Getenv("DISH_SERVICE_API_KEY"), aiConfig.DishTimeout)

	ocrLanguage := os.Getenv("OCR_LANGUAGE")
	if ocrLanguage == "" {
		ocrLanguage = "eng"
	}
	extractor := ocr.NewExtractor(ocr.NewTesseractEngine(ocrLanguage), nil)

	thresholds := resolve.DefaultThresholds()
	if raw := os.Getenv("AMBIGUITY_GAP"); raw != "" {
		gap, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			log.Fatal("Invalid AMBIGUITY_GAP:", err)
		}
		thresholds.AmbiguityGap = gap
	}
	if raw := os.Getenv("RESOLVE_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatal("Invalid RESOLVE_TIMEOUT_SECONDS:", err)
		}
		thresholds.ResolveEnvelope = time.Duration(seconds) * time.Second
	}

	ranker := resolve.NewRanker(
		lookup.NewRegionalClient(regionalURL, os.Getenv("REGIONAL_FOOD_API_KEY")),
		lookup.NewOpenFoodClient(openFoodURL),
		thresholds,
	)

	scanService := resolve.NewService(
		visionClient,
		dishClient,
		extractor,
		barcode.NewDecoder(nil),
		lookup.NewBarcodeClient(barcodeURL),
		ranker,
		lookup.NewRulesClient(rulesURL),
		lookup.NewFeedbackClient(feedbackURL),
		anchor.NewStore(db),
		database.NewHistoryRepo(db),
		thresholds,
	)

	app := &api.App{
		Storage:       localStorage,
		MaxUploadSize: maxSize,
	}

	router := api.NewRouter(app, api.NewScanHandlers(scanService, app))

	log.Printf("Server starting on port %s", port)
	log.Printf("Upload directory: %s", uploadDir)
	log.Printf("Database path: %s", dbPath)
	log.Printf("Vision service: %s", visionURL)
	log.Printf("Max upload size: %d bytes", maxSize)

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}
