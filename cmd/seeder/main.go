package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"os"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"crowdmeter/internal/adapters/observability"
	"crowdmeter/internal/domain"
	"crowdmeter/internal/shared"
	mysqlrepo "crowdmeter/internal/storage/mysql"
)

type seedVenue struct {
	ID       int64                `json:"id"`
	OwnerID  int64                `json:"owner_id"`
	Name     string               `json:"name"`
	Category string               `json:"category"`
	Lat      *float64             `json:"lat"`
	Lng      *float64             `json:"lng"`
	Hours    domain.BusinessHours `json:"hours"`
	IconURL  *string              `json:"icon_url"`
	Active   bool                 `json:"active"`
}

type seedFlag struct {
	VenueID int64  `json:"venue_id"`
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
}

type seedFile struct {
	Venues   []seedVenue       `json:"venues"`
	Settings map[string]string `json:"settings"`
	Flags    []seedFlag        `json:"flags"`
}

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	file := flag.String("file", "seed/venues.json", "seed file")
	flag.Parse()

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("read seed file failed")
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		log.Fatal().Err(err).Msg("parse seed file failed")
	}

	log.Info().
		Int("venues", len(seed.Venues)).
		Int("workers", cfg.SeedWorkers).
		Msg("seeder starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	sem := semaphore.NewWeighted(int64(cfg.SeedWorkers))
	var wg sync.WaitGroup

	for _, sv := range seed.Venues {
		sv := sv

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			v := domain.Venue{
				ID:       sv.ID,
				OwnerID:  sv.OwnerID,
				Name:     sv.Name,
				Category: sv.Category,
				Hours:    sv.Hours,
				IconURL:  sv.IconURL,
				Active:   sv.Active,
			}
			if sv.Lat != nil && sv.Lng != nil {
				v.Coords = &domain.Coords{Lat: *sv.Lat, Lng: *sv.Lng}
			}
			if err := repo.UpsertVenue(ctx, v); err != nil {
				log.Warn().Int64("id", sv.ID).Err(err).Msg("seed venue failed")
				return
			}
			log.Info().Int64("id", sv.ID).Msg("seed venue ok")
		}()
	}
	wg.Wait()

	for name, value := range seed.Settings {
		if err := repo.SetSetting(ctx, name, value); err != nil {
			log.Warn().Str("name", name).Err(err).Msg("seed setting failed")
		}
	}
	for _, f := range seed.Flags {
		if err := repo.SetFeatureFlag(ctx, f.VenueID, f.Feature, f.Enabled); err != nil {
			log.Warn().Int64("venue_id", f.VenueID).Str("feature", f.Feature).Err(err).Msg("seed flag failed")
		}
	}

	log.Info().Msg("seeding completed")
}
