package anchor

import (
	"context"
	"fmt"
	"image"
	"log"
	"strings"
	"time"
	"unicode"

	"github.com/mealscan/mealscan/internal/database"
	"github.com/mealscan/mealscan/internal/imgproc"
	"github.com/mealscan/mealscan/internal/lookup"
)

const (
	defaultMaxAnchors  = 40
	defaultMaxDistance = 14
)

// Store is a perceptual-hash index of recently accepted items. When
// classifiers and OCR both come up empty, a frame that looks like
// something the user already logged can still resolve.
type Store struct {
	db          *database.DB
	maxAnchors  int
	maxDistance int
}

func NewStore(db *database.DB) *Store {
	return &Store{
		db:          db,
		maxAnchors:  defaultMaxAnchors,
		maxDistance: defaultMaxDistance,
	}
}

// Remember upserts an anchor for the item, keyed by normalized name
// and brand so re-accepting an item refreshes its hash instead of
// duplicating it. The index is capped at the most recent entries.
func (s *Store) Remember(img image.Image, item lookup.Candidate) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw := imgproc.DHash(img)
	if imgproc.DegenerateHash(raw) {
		log.Printf("[ANCHOR] Skipping featureless frame for %q", item.Name)
		return nil
	}

	key := anchorKey(item.Name, item.Brand)
	hash := imgproc.HashHex(raw)

	query := `
		INSERT OR REPLACE INTO anchors (
			anchor_key, hash, name, brand, item_id, source, confidence,
			calories, protein, carbs, fat, seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.Conn().ExecContext(ctx, query,
		key, hash,
		item.Name, item.Brand, item.ItemID, item.Source, item.Confidence,
		item.Per100g.Calories, item.Per100g.Protein, item.Per100g.Carbs, item.Per100g.Fat,
		time.Now(),
	); err != nil {
		return fmt.Errorf("failed to upsert anchor: %w", err)
	}

	return s.trim(ctx)
}

func (s *Store) trim(ctx context.Context) error {
	query := `
		DELETE FROM anchors WHERE anchor_key NOT IN (
			SELECT anchor_key FROM anchors ORDER BY seen_at DESC LIMIT ?
		)`
	if _, err := s.db.Conn().ExecContext(ctx, query, s.maxAnchors); err != nil {
		return fmt.Errorf("failed to trim anchors: %w", err)
	}
	return nil
}

// Match returns the closest anchored item within the Hamming-distance
// budget, or false. Store errors degrade to a miss.
func (s *Store) Match(img image.Image) (*lookup.Candidate, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	hash := imgproc.DHash(img)
	if imgproc.DegenerateHash(hash) {
		return nil, false
	}

	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT hash, name, brand, item_id, source, confidence, calories, protein, carbs, fat
		FROM anchors`)
	if err != nil {
		log.Printf("[ANCHOR] Query failed: %v", err)
		return nil, false
	}
	defer rows.Close()

	var (
		best     *lookup.Candidate
		bestDist = s.maxDistance + 1
	)
	for rows.Next() {
		var (
			hashHex string
			cand    lookup.Candidate
		)
		if err := rows.Scan(&hashHex, &cand.Name, &cand.Brand, &cand.ItemID, &cand.Source, &cand.Confidence,
			&cand.Per100g.Calories, &cand.Per100g.Protein, &cand.Per100g.Carbs, &cand.Per100g.Fat); err != nil {
			log.Printf("[ANCHOR] Scan failed: %v", err)
			return nil, false
		}

		anchorHash, err := imgproc.ParseHashHex(hashHex)
		if err != nil {
			continue
		}
		if dist := imgproc.HammingDistance(hash, anchorHash); dist < bestDist {
			bestDist = dist
			c := cand
			best = &c
		}
	}
	if err := rows.Err(); err != nil {
		log.Printf("[ANCHOR] Rows failed: %v", err)
		return nil, false
	}

	if best == nil {
		return nil, false
	}
	log.Printf("[ANCHOR] Matched %q at distance %d", best.Name, bestDist)
	return best, true
}

// anchorKey folds case and punctuation so label variants of the same
// item share one anchor row.
func anchorKey(name, brand string) string {
	return foldKeyPart(name) + "|" + foldKeyPart(brand)
}

func foldKeyPart(s string) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}
