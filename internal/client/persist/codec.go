package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

// encode serializes v. Inline entry photos are moved to the blob cache first
// and replaced with models.PhotoStoredMarker.
func (s *Store) encode(ctx context.Context, v any) ([]byte, error) {
	switch val := v.(type) {
	case []models.Entry:
		out := make([]models.Entry, len(val))
		for i, e := range val {
			if err := s.savePhoto(ctx, e); err != nil {
				return nil, err
			}
			out[i] = e.WithoutPhoto()
		}
		v = out
	case []models.SyncQueueItem:
		out := make([]models.SyncQueueItem, len(val))
		for i, item := range val {
			if err := s.savePhoto(ctx, item.Entry); err != nil {
				return nil, err
			}
			item.Entry = item.Entry.WithoutPhoto()
			out[i] = item
		}
		v = out
	}
	return json.Marshal(v)
}

func (s *Store) savePhoto(ctx context.Context, e models.Entry) error {
	if s.photos == nil || !e.HasInlinePhoto() {
		return nil
	}
	ok, err := s.photos.Has(ctx, e.ID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := s.photos.Put(ctx, e.ID, []byte(e.Photo)); err != nil {
		return fmt.Errorf("failed to cache photo for entry %s: %w", e.ID, err)
	}
	return nil
}

// decodeList decodes a JSON array element by element. A malformed document
// yields ok=false; elements that fail to decode or validate are dropped.
func decodeList[T any](ctx context.Context, log logging.Logger, key Key, raw []byte, validate func(T) error) ([]T, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	out := make([]T, 0, len(items))
	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			log.Warn(ctx, "dropping undecodable item", "key", key, "index", i, "error", err)
			continue
		}
		if err := validate(v); err != nil {
			log.Warn(ctx, "dropping invalid item", "key", key, "index", i, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out, true
}

func decode(ctx context.Context, log logging.Logger, docs map[string][]byte) Snapshot {
	snap := DefaultSnapshot()
	reset := func(key Key) {
		log.Warn(ctx, "stored slice is malformed, using default", "key", key)
	}

	if raw, ok := docs[string(KeyEntries)]; ok {
		if v, ok := decodeList(ctx, log, KeyEntries, raw, models.Entry.Validate); ok {
			snap.Entries = v
		} else {
			reset(KeyEntries)
		}
	}
	if raw, ok := docs[string(KeyFaults)]; ok {
		if v, ok := decodeList(ctx, log, KeyFaults, raw, models.FaultEntry.Validate); ok {
			snap.Faults = v
		} else {
			reset(KeyFaults)
		}
	}
	if raw, ok := docs[string(KeySyncQueue)]; ok {
		validate := func(item models.SyncQueueItem) error {
			if item.RetryCount < 0 || item.LastAttempt < 0 {
				return fmt.Errorf("negative retry bookkeeping for %s", item.Entry.ID)
			}
			return item.Entry.Validate()
		}
		if v, ok := decodeList(ctx, log, KeySyncQueue, raw, validate); ok {
			snap.SyncQueue = v
		} else {
			reset(KeySyncQueue)
		}
	}
	if raw, ok := docs[string(KeySettings)]; ok {
		settings := models.DefaultSettings()
		if err := json.Unmarshal(raw, &settings); err != nil {
			reset(KeySettings)
		} else {
			snap.Settings = settings
		}
	}

	strs := []struct {
		key Key
		dst *string
	}{
		{KeyLanguage, &snap.Language},
		{KeyDeviceID, &snap.DeviceID},
		{KeyDeviceName, &snap.DeviceName},
		{KeyRaceID, &snap.RaceID},
		{KeyAuthToken, &snap.AuthToken},
	}
	for _, sv := range strs {
		raw, ok := docs[string(sv.key)]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			reset(sv.key)
			continue
		}
		*sv.dst = v
	}
	if snap.Language == "" {
		snap.Language = DefaultLanguage
	}
	return snap
}
