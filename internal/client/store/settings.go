package store

import (
	"strings"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

func (s *Store) SetSettings(v models.Settings) {
	s.set(func() bool {
		if s.settings.Peek() == v {
			return false
		}
		s.settings.Set(v)
		return true
	}, KeySettings)
}

// UpdateSettings applies fn to a copy of the current settings.
func (s *Store) UpdateSettings(fn func(*models.Settings)) {
	v := s.Settings()
	fn(&v)
	s.SetSettings(v)
}

func (s *Store) SetLanguage(lang string) {
	s.setString(s.language.Peek, s.language.Set, lang, KeyLanguage)
}

func (s *Store) SetDeviceName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	s.setString(s.deviceName.Peek, s.deviceName.Set, name, KeyDeviceName)
}

// SetRaceID switches the active race. Advisory info from the previous race
// is cleared.
func (s *Store) SetRaceID(id string) {
	id = strings.TrimSpace(id)
	s.update(func(Collaborators) ([]StateKey, func()) {
		if s.raceID.Peek() == id {
			return nil, nil
		}
		s.raceID.Set(id)
		keys := []StateKey{KeyRaceID}
		if s.cloud.Peek() != (models.CloudInfo{}) {
			s.cloud.Set(models.CloudInfo{})
			keys = append(keys, KeyCloudInfo)
		}
		return keys, nil
	})
}

func (s *Store) SetAuthToken(token string) {
	s.setString(s.authToken.Peek, s.authToken.Set, token, KeyAuthToken)
}

func (s *Store) ClearAuthToken() {
	s.SetAuthToken("")
}

func (s *Store) SetSyncStatus(st models.SyncStatus) {
	s.set(func() bool {
		if s.syncStatus.Peek() == st {
			return false
		}
		s.syncStatus.Set(st)
		return true
	}, KeySyncStatus)
}

// SetCloudInfo records the advisory fields the service reported. Nil fields
// keep their previous value.
func (s *Store) SetCloudInfo(deviceCount, highestBib *int) {
	s.set(func() bool {
		info := s.cloud.Peek()
		if deviceCount != nil {
			info.DeviceCount = *deviceCount
		}
		if highestBib != nil {
			info.HighestBib = *highestBib
		}
		if info == s.cloud.Peek() {
			return false
		}
		s.cloud.Set(info)
		return true
	}, KeyCloudInfo)
}

func (s *Store) set(fn func() bool, key StateKey) {
	s.update(func(Collaborators) ([]StateKey, func()) {
		if !fn() {
			return nil, nil
		}
		return []StateKey{key}, nil
	})
}

func (s *Store) setString(get func() string, set func(string), v string, key StateKey) {
	s.set(func() bool {
		if get() == v {
			return false
		}
		set(v)
		return true
	}, key)
}
