// Command seed generates a realistic api_keys test document for the AegisID
// risk API and writes it to data/keys.json.
//
// Usage:
//
//	go run ./cmd/seed
//
// The generated document contains ~40 keys with a mix of profiles:
//   - well-managed keys (IP-restricted, low usage, recently rotated)
//   - keys missing IP restrictions
//   - high-traffic keys past the usage threshold
//   - stale admin keys that have not been rotated in months
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"aegis/risk-api/internal/domain"
)

func main() {
	rng := rand.New(rand.NewSource(42)) // deterministic seed for reproducibility

	var keys []domain.IdentityRecord

	keys = append(keys, generateHealthyKeys(rng)...)
	keys = append(keys, generateUnrestrictedKeys(rng)...)
	keys = append(keys, generateHighUsageKeys(rng)...)
	keys = append(keys, generateStaleAdminKeys(rng)...)

	// Shuffle so the profiles aren't trivially grouped in the file.
	rng.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})

	if err := os.MkdirAll("data", 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir error: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create("data/keys.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(domain.KeyFile{APIKeys: keys}); err != nil {
		fmt.Fprintf(os.Stderr, "encode error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d keys → data/keys.json\n", len(keys))
}

func strptr(s string) *string { return &s }

var cidrs = []string{
	"10.0.0.0/8", "192.168.1.0/24", "172.16.0.0/12",
	"203.0.113.0/24", "198.51.100.0/24",
}

// ─── Healthy keys (~20) ───────────────────────────────────────────────────────

func generateHealthyKeys(rng *rand.Rand) []domain.IdentityRecord {
	services := []string{"billing", "search", "ingest", "notify", "sync", "export", "auth", "cdn", "ci", "backup"}
	var keys []domain.IdentityRecord
	for i, svc := range services {
		for n := 0; n < 2; n++ {
			keys = append(keys, domain.IdentityRecord{
				KeyID:           fmt.Sprintf("key_%s_%02d", svc, n+1),
				IPRestriction:   strptr(cidrs[(i+n)%len(cidrs)]),
				UsageCount:      rng.Intn(5000),
				IsAdmin:         false,
				LastRotatedDays: rng.Intn(60),
			})
		}
	}
	return keys
}

// ─── Keys without IP restrictions (~8) ────────────────────────────────────────

func generateUnrestrictedKeys(rng *rand.Rand) []domain.IdentityRecord {
	var keys []domain.IdentityRecord
	for i := 0; i < 8; i++ {
		keys = append(keys, domain.IdentityRecord{
			KeyID:           fmt.Sprintf("key_open_%02d", i+1),
			IPRestriction:   nil,
			UsageCount:      rng.Intn(8000),
			IsAdmin:         false,
			LastRotatedDays: rng.Intn(90),
		})
	}
	return keys
}

// ─── High-usage keys (~6) ─────────────────────────────────────────────────────

func generateHighUsageKeys(rng *rand.Rand) []domain.IdentityRecord {
	var keys []domain.IdentityRecord
	for i := 0; i < 6; i++ {
		keys = append(keys, domain.IdentityRecord{
			KeyID:           fmt.Sprintf("key_live_prod_%02d", i+1),
			IPRestriction:   strptr(cidrs[i%len(cidrs)]),
			UsageCount:      10001 + rng.Intn(90000),
			IsAdmin:         false,
			LastRotatedDays: rng.Intn(120),
		})
	}
	return keys
}

// ─── Stale admin keys (~5) ────────────────────────────────────────────────────

func generateStaleAdminKeys(rng *rand.Rand) []domain.IdentityRecord {
	var keys []domain.IdentityRecord
	for i := 0; i < 5; i++ {
		keys = append(keys, domain.IdentityRecord{
			KeyID:           fmt.Sprintf("key_admin_%02d", i+1),
			IPRestriction:   nil,
			UsageCount:      20000 + rng.Intn(200000),
			IsAdmin:         true,
			LastRotatedDays: 91 + rng.Intn(400),
		})
	}
	return keys
}
