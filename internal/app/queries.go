package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"crowdmeter/internal/domain"
)

const (
	radiusCacheKey    = "search_radius"
	settingRadiusName = "search_radius"
)

type SearchService struct {
	repo           domain.VenueRepository
	cache          domain.Cache
	radiusTTLSec   int
	defaultRadiusM int
	lang           language.Tag
	loc            *time.Location
	now            func() time.Time
}

func NewSearchService(repo domain.VenueRepository, cache domain.Cache, radiusTTL time.Duration, defaultRadiusM int, locale string, loc *time.Location) *SearchService {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Japanese
	}
	if loc == nil {
		loc = time.UTC
	}
	if defaultRadiusM <= 0 {
		defaultRadiusM = 5000
	}
	return &SearchService{
		repo:           repo,
		cache:          cache,
		radiusTTLSec:   int(radiusTTL.Seconds()),
		defaultRadiusM: defaultRadiusM,
		lang:           tag,
		loc:            loc,
		now:            time.Now,
	}
}

// Search filters active venues by radius/category/status, derives each
// venue's display status, and orders the result: closed venues last, then by
// distance when an origin was given, else by collated name. An empty result
// is not an error.
func (s *SearchService) Search(ctx context.Context, q domain.SearchQuery) (domain.SearchPage, error) {
	radiusM, err := s.effectiveRadiusM(ctx, q.RadiusKm)
	if err != nil {
		return domain.SearchPage{}, err
	}

	rows, err := s.repo.ListVenues(ctx, domain.VenueFilter{Category: q.Category, Status: q.Status})
	if err != nil {
		return domain.SearchPage{}, err
	}

	now := s.now().In(s.loc)
	items := make([]domain.SearchItem, 0, len(rows))
	for _, row := range rows {
		it := domain.SearchItem{Venue: row.Venue, Reported: row.Reported, UpdatedAt: row.UpdatedAt}

		// venues without coordinates never hit the distance formula; they
		// stay in the result and sort on the name fallback key
		if q.Origin != nil && row.Venue.Coords != nil {
			d := domain.DistanceM(*q.Origin, *row.Venue.Coords)
			if d > float64(radiusM) {
				continue
			}
			m := int(math.Round(d))
			it.DistanceM = &m
		}

		var reported domain.Status
		if row.Reported != nil {
			reported = *row.Reported
		}
		it.Status = domain.ResolveDisplayStatus(row.Venue, reported, now)

		items = append(items, it)
	}

	cl := collate.New(s.lang)
	sort.SliceStable(items, func(i, j int) bool {
		ci := items[i].Status == domain.StatusClosed
		cj := items[j].Status == domain.StatusClosed
		if ci != cj {
			return !ci
		}
		if q.Origin != nil {
			di, dj := items[i].DistanceM, items[j].DistanceM
			switch {
			case di != nil && dj != nil:
				if *di != *dj {
					return *di < *dj
				}
			case di != nil:
				return true
			case dj != nil:
				return false
			}
		}
		return cl.CompareString(items[i].Venue.Name, items[j].Venue.Name) < 0
	})

	return domain.SearchPage{Items: items, Total: len(items)}, nil
}

// effectiveRadiusM resolves the radius actually applied: caller-supplied, or
// the cached/persisted search_radius setting, or the hardcoded default.
// Setting lookup failures resolve silently to the default and are never
// surfaced.
func (s *SearchService) effectiveRadiusM(ctx context.Context, radiusKm *float64) (int, error) {
	if radiusKm != nil {
		if *radiusKm <= 0 || math.IsNaN(*radiusKm) || math.IsInf(*radiusKm, 0) {
			return 0, fmt.Errorf("%w: malformed radius %v", domain.ErrValidation, *radiusKm)
		}
		return int(*radiusKm * 1000), nil
	}

	var cached int
	if ok, _ := s.cache.Get(ctx, radiusCacheKey, &cached); ok {
		return cached, nil
	}

	raw, err := s.repo.GetSetting(ctx, settingRadiusName)
	if err == nil {
		if n, perr := strconv.Atoi(strings.TrimSpace(raw)); perr == nil && n > 0 {
			_ = s.cache.Set(ctx, radiusCacheKey, n, s.radiusTTLSec)
			return n, nil
		}
	}
	return s.defaultRadiusM, nil
}

// FeatureEnabled reports whether a feature flag is on for a venue; an absent
// flag row means disabled.
func (s *SearchService) FeatureEnabled(ctx context.Context, venueID int64, feature string) (bool, error) {
	return s.repo.IsFeatureEnabled(ctx, venueID, feature)
}
