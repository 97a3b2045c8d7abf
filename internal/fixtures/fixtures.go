// Package fixtures provides deterministic demo data for local runs and tests.
package fixtures

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"trendradar/internal/categorizer"
	"trendradar/internal/domain"
	"trendradar/internal/storage"
)

// Address returns a deterministic, valid base58 token address for seed.
func Address(seed int) string {
	var raw [domain.PubkeyLength]byte
	raw[0] = 0x7a // keeps the encoding at full length
	binary.BigEndian.PutUint64(raw[24:], uint64(seed))
	return base58.Encode(raw[:])
}

// namedToken is a raw token before categorization.
type namedToken struct {
	name   string
	symbol string
	mcap   float64 // latest market cap
	growth float64 // market cap multiplier over the last hour
}

// categorizedTokens are matched by the default keyword table.
var categorizedTokens = []namedToken{
	{"Doge Supreme", "DSUP", 2_400_000, 1.8},
	{"Shiba Rocket", "SHROCK", 900_000, 1.3},
	{"Corgi Club", "CORGI", 350_000, 2.1},
	{"Husky Moon", "HUSKY", 120_000, 1.1},
	{"Kitty Kat", "KITTY", 780_000, 1.0},
	{"Nyan Feline", "NYANF", 210_000, 0.9},
	{"Pepe Frog", "PFROG", 1_500_000, 1.4},
	{"Ribbit Lord", "RIBBIT", 95_000, 1.2},
	{"Neural Agent", "NAGENT", 3_100_000, 2.4},
	{"Robot Overlord", "ROBO", 640_000, 1.6},
	{"Assistant Prime", "ASSIST", 410_000, 1.9},
	{"Pizza Party", "PIZZA", 60_000, 1.0},
	{"Taco Tuesday", "TACO", 45_000, 0.8},
}

// emergingTokens share a novel root the keyword table does not know.
var emergingTokens = []namedToken{
	{"glorp", "glorp", 150_000, 3.0},
	{"glorpy", "glorp", 80_000, 2.2},
	{"glorpo", "glorp", 64_000, 1.9},
	{"glorpi", "glorp", 52_000, 2.8},
	{"glorpa", "glorp", 41_000, 1.5},
	{"zxqvw", "zxq", 12_000, 1.0},
	{"hmmbl", "hmb", 9_000, 1.0},
	{"krrtn", "krt", 7_500, 1.0},
	{"plonq", "plq", 5_000, 1.0},
	{"wubbz", "wbz", 3_000, 1.0},
}

// Dataset is the token set produced by Load.
type Dataset struct {
	Tokens    []*domain.Token
	Snapshots []*domain.Snapshot
}

// Build creates the demo dataset relative to nowMs. Categorized tokens are
// classified with c; emerging tokens stay unclassified.
func Build(c *categorizer.Categorizer, nowMs int64) *Dataset {
	ds := &Dataset{}
	hour := time.Hour.Milliseconds()

	seed := 1
	add := func(nt namedToken, classify bool) {
		address := Address(seed)
		seed++

		t := &domain.Token{
			Address:          address,
			Name:             nt.name,
			Symbol:           nt.symbol,
			CreatedAt:        nowMs - 6*hour,
			FirstSeenAt:      nowMs - 6*hour,
			DetectedKeywords: []string{},
		}
		if classify {
			cl := c.Categorize(nt.name, nt.symbol).Classification()
			t.PrimaryCategory = cl.PrimaryCategory
			t.SubCategory = cl.SubCategory
			t.DetectedKeywords = cl.DetectedKeywords
		}
		ds.Tokens = append(ds.Tokens, t)

		// Hourly snapshots over the last six hours, growing into the latest cap.
		for h := int64(6); h >= 0; h-- {
			factor := 1.0
			if h > 0 {
				factor = 1 / nt.growth
			}
			mcap := nt.mcap * factor
			price := mcap / 1_000_000_000
			ds.Snapshots = append(ds.Snapshots, &domain.Snapshot{
				TokenAddress: address,
				SnapshotTime: nowMs - h*hour,
				MarketCapUSD: &mcap,
				PriceUSD:     &price,
			})
		}
	}

	for _, nt := range categorizedTokens {
		add(nt, true)
	}
	for _, nt := range emergingTokens {
		add(nt, false)
	}
	return ds
}

// Load builds the demo dataset and writes it to the stores.
func Load(ctx context.Context, c *categorizer.Categorizer, tokens storage.TokenStore, snapshots storage.SnapshotStore, nowMs int64) (*Dataset, error) {
	ds := Build(c, nowMs)

	for _, t := range ds.Tokens {
		if err := tokens.Insert(ctx, t); err != nil {
			return nil, fmt.Errorf("insert token %s: %w", t.Name, err)
		}
	}
	if err := snapshots.InsertBulk(ctx, ds.Snapshots); err != nil {
		return nil, fmt.Errorf("insert snapshots: %w", err)
	}
	return ds, nil
}
