package services

import (
	"context"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/repositories/photos"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

// photoSync moves photo payloads between the wire and the local blob cache.
type photoSync struct {
	store  photos.Store
	logger logging.Logger
}

// incoming prepares polled entries for merge. With photo sync on, inline
// photos are cached (unless already cached) and replaced with the marker;
// with photo sync off, photos are stripped.
func (p photoSync) incoming(ctx context.Context, list []models.Entry, enabled bool) []models.Entry {
	out := make([]models.Entry, len(list))
	for i, e := range list {
		out[i] = p.prepare(ctx, e, enabled)
	}
	return out
}

func (p photoSync) prepare(ctx context.Context, e models.Entry, enabled bool) models.Entry {
	if e.Photo == "" {
		return e
	}
	if !enabled || p.store == nil {
		e.Photo = ""
		return e
	}
	if !e.HasInlinePhoto() {
		return e
	}
	cached, err := p.store.Has(ctx, e.ID)
	if err != nil {
		p.logger.Warn(ctx, "photo cache lookup failed", "entry", e.ID, "error", err)
	}
	if !cached {
		if err := p.store.Put(ctx, e.ID, []byte(e.Photo)); err != nil {
			p.logger.Warn(ctx, "failed to cache photo, dropping it", "entry", e.ID, "error", err)
			e.Photo = ""
			return e
		}
	}
	e.Photo = models.PhotoStoredMarker
	return e
}

// outgoing resolves the marker back to bytes for a push, or strips the photo
// when photo sync is off.
func (p photoSync) outgoing(ctx context.Context, e models.Entry, enabled bool) models.Entry {
	if e.Photo == "" {
		return e
	}
	if !enabled {
		e.Photo = ""
		return e
	}
	if e.Photo != models.PhotoStoredMarker {
		return e
	}
	if p.store == nil {
		e.Photo = ""
		return e
	}
	data, err := p.store.Get(ctx, e.ID)
	if err != nil || data == nil {
		if err != nil {
			p.logger.Warn(ctx, "failed to read cached photo", "entry", e.ID, "error", err)
		}
		e.Photo = ""
		return e
	}
	e.Photo = string(data)
	return e
}
