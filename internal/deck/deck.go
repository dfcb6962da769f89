package deck

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/samber/lo"

	"memorludo/internal/constants"
	"memorludo/internal/models"
	"memorludo/internal/util"
)

// IconEntry is one symbol of the card catalog.
type IconEntry struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// IconCatalog is the on-disk shape of data/catalog.json.
type IconCatalog struct {
	Icons []IconEntry `json:"icons"`
}

// LoadCatalog reads the icon catalog and drops malformed entries. The loaded
// catalog must be able to serve the largest supported deck.
func LoadCatalog(path string) ([]IconEntry, error) {
	util.LogInfo("Loading icon catalog from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var catalog IconCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(catalog.Icons))
	icons := lo.Filter(catalog.Icons, func(entry IconEntry, _ int) bool {
		if entry.Key == "" {
			util.LogWarn("Skipping catalog entry with empty key")
			return false
		}
		if _, dup := seen[entry.Key]; dup {
			util.LogWarn("Skipping duplicate catalog key %q", entry.Key)
			return false
		}
		seen[entry.Key] = struct{}{}
		return true
	})

	if len(icons) < constants.MaxPairCount {
		return nil, fmt.Errorf("icon catalog holds %d icons, need at least %d", len(icons), constants.MaxPairCount)
	}

	util.LogInfo("Successfully loaded %d icons", len(icons))
	return icons, nil
}

// Build produces a shuffled deck of 2*pairCount cards where every pair key
// appears exactly twice and ids are unique. pairCount exceeding the catalog
// is a programming error, not a runtime condition.
func Build(catalog []IconEntry, pairCount int) []models.Card {
	if pairCount < 1 || pairCount > len(catalog) {
		panic(fmt.Sprintf("deck: pair count %d out of range for catalog of %d icons", pairCount, len(catalog)))
	}

	picks := make([]IconEntry, len(catalog))
	copy(picks, catalog)
	shuffleIcons(picks)
	picks = picks[:pairCount]

	cards := make([]models.Card, 0, 2*pairCount)
	for _, icon := range picks {
		cards = append(cards, models.Card{PairKey: icon.Key}, models.Card{PairKey: icon.Key})
	}
	shuffleCards(cards)

	for i := range cards {
		cards[i].ID = i
	}
	return cards
}

// randIndex returns a uniform value in [0, n). On entropy failure it logs and
// falls back to 0 rather than failing the deal.
func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		util.LogWarn("Error generating random number: %v, using fallback", err)
		return 0
	}
	return int(v.Int64())
}

func shuffleIcons(icons []IconEntry) {
	for i := len(icons) - 1; i > 0; i-- {
		j := randIndex(i + 1)
		icons[i], icons[j] = icons[j], icons[i]
	}
}

func shuffleCards(cards []models.Card) {
	for i := len(cards) - 1; i > 0; i-- {
		j := randIndex(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}
