package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"staybook/internal/domain"
)

// AccommodationService is the manager-facing catalogue. Reads go through the cache;
// admission never does, it always reads capacity from the store under lock.
type AccommodationService struct {
	repo     domain.AccommodationRepository
	cache    domain.Cache
	cacheTTL time.Duration
	group    singleflight.Group
	notify   *dispatcher
}

func NewAccommodationService(r domain.AccommodationRepository, c domain.Cache, ttl time.Duration, n domain.Notifier) *AccommodationService {
	return &AccommodationService{repo: r, cache: c, cacheTTL: ttl, notify: newDispatcher(n, nil)}
}

func accommodationKey(id int64) string { return fmt.Sprintf("accommodation:%d", id) }

func (in AccommodationInput) toDomain(id int64) domain.Accommodation {
	return domain.Accommodation{
		ID:           id,
		Type:         in.Type,
		Location:     in.Location,
		Size:         in.Size,
		Amenities:    append([]string(nil), in.Amenities...),
		DailyRate:    in.DailyRate,
		Availability: in.Availability,
	}
}

func (s *AccommodationService) Create(ctx context.Context, actor domain.Actor, in AccommodationInput) (domain.Accommodation, error) {
	if !actor.Manager {
		return domain.Accommodation{}, &domain.ForbiddenError{Action: "only managers can create accommodations"}
	}
	if err := validateStruct(in); err != nil {
		return domain.Accommodation{}, err
	}
	a := in.toDomain(0)
	id, err := s.repo.InsertAccommodation(ctx, a)
	if err != nil {
		return domain.Accommodation{}, fmt.Errorf("insert accommodation: %w", err)
	}
	a.ID = id
	log.Info().Int64("accommodation_id", id).Str("type", string(a.Type)).Msg("accommodation created")
	s.notify.accommodationCreated(ctx, a)
	return a, nil
}

func (s *AccommodationService) Get(ctx context.Context, id int64) (domain.Accommodation, error) {
	key := accommodationKey(id)
	var a domain.Accommodation
	if ok, _ := s.cache.Get(ctx, key, &a); ok {
		return a, nil
	}
	v, err, _ := s.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		a, err := s.repo.GetAccommodation(ctx, id)
		if err != nil {
			return domain.Accommodation{}, err
		}
		if err := s.cache.Set(ctx, key, a, int(s.cacheTTL.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
		return a, nil
	})
	if err != nil {
		return domain.Accommodation{}, err
	}
	return v.(domain.Accommodation), nil
}

func (s *AccommodationService) List(ctx context.Context, pg domain.PageQuery) ([]domain.Accommodation, error) {
	if pg.Limit <= 0 {
		pg.Limit = defaultPageLimit
	}
	if pg.Limit > maxPageLimit {
		pg.Limit = maxPageLimit
	}
	if pg.Offset < 0 {
		pg.Offset = 0
	}
	return s.repo.ListAccommodations(ctx, pg)
}

// Update replaces every mutable field. Lowering Availability does not touch
// existing bookings; it only affects later admissions.
func (s *AccommodationService) Update(ctx context.Context, actor domain.Actor, id int64, in AccommodationInput) (domain.Accommodation, error) {
	if !actor.Manager {
		return domain.Accommodation{}, &domain.ForbiddenError{Action: "only managers can update accommodations"}
	}
	if err := validateStruct(in); err != nil {
		return domain.Accommodation{}, err
	}
	if _, err := s.repo.GetAccommodation(ctx, id); err != nil {
		return domain.Accommodation{}, err
	}
	a := in.toDomain(id)
	if err := s.repo.UpdateAccommodation(ctx, a); err != nil {
		return domain.Accommodation{}, fmt.Errorf("update accommodation %d: %w", id, err)
	}
	s.invalidate(ctx, id)
	log.Info().Int64("accommodation_id", id).Int("availability", a.Availability).Msg("accommodation updated")
	return a, nil
}

// Delete soft-deletes the accommodation; its bookings stay in place.
func (s *AccommodationService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if !actor.Manager {
		return &domain.ForbiddenError{Action: "only managers can delete accommodations"}
	}
	if err := s.repo.DeleteAccommodation(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	log.Info().Int64("accommodation_id", id).Msg("accommodation deleted")
	return nil
}

func (s *AccommodationService) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Del(ctx, accommodationKey(id)); err != nil {
		log.Warn().Err(err).Int64("accommodation_id", id).Msg("cache invalidation failed")
	}
}
