package services

import (
	"context"
	"sync"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/client"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/entries"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/faults"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/syncqueue"
)

// fakeStore is an in-memory StateStore built on the slice functions.
type fakeStore struct {
	mu       sync.Mutex
	settings models.Settings
	raceID   string
	device   models.DeviceIdentity
	token    string
	status   models.SyncStatus
	statuses []models.SyncStatus
	entries  []models.Entry
	faults   []models.FaultEntry
	queue    []models.SyncQueueItem
	cloud    models.CloudInfo
	failures map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings: models.Settings{Sync: true, SyncPhotos: true},
		raceID:   "race-1",
		device:   models.DeviceIdentity{ID: "dev_a", Name: "Finish A"},
		token:    "tok",
		status:   models.SyncDisconnected,
		failures: make(map[string]int),
	}
}

func (s *fakeStore) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *fakeStore) RaceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raceID
}

func (s *fakeStore) Device() models.DeviceIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

func (s *fakeStore) AuthToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeStore) SyncStatus() models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *fakeStore) Entries() []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries
}

func (s *fakeStore) Faults() []models.FaultEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

func (s *fakeStore) Queue() []models.SyncQueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue
}

func (s *fakeStore) Statuses() []models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SyncStatus(nil), s.statuses...)
}

func (s *fakeStore) SetSyncStatus(st models.SyncStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
	s.statuses = append(s.statuses, st)
}

func (s *fakeStore) SetCloudInfo(deviceCount, highestBib *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deviceCount != nil {
		s.cloud.DeviceCount = *deviceCount
	}
	if highestBib != nil {
		s.cloud.HighestBib = *highestBib
	}
}

func (s *fakeStore) SetAuthToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *fakeStore) ClearAuthToken() { s.SetAuthToken("") }

func (s *fakeStore) MergeCloudEntries(incoming []models.Entry, deletedIDs []string, own string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := entries.MergeCloud(s.entries, incoming, deletedIDs, own)
	s.entries = res.Entries
	return res.AddedCount
}

func (s *fakeStore) RemoveDeletedCloudEntries(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	s.entries, n = entries.RemoveDeletedCloud(s.entries, ids)
	return n
}

func (s *fakeStore) MarkEntriesSynced(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	s.entries, n = entries.MarkSynced(s.entries, ids, 1)
	return n
}

func (s *fakeStore) DequeueEntry(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.queue, ok = syncqueue.Dequeue(s.queue, id)
	return ok
}

func (s *fakeStore) RecordSyncFailure(id string, cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id]++
	var ok bool
	s.queue, ok = syncqueue.RecordFailure(s.queue, id, cause, 1)
	return ok
}

func (s *fakeStore) MergeFaultsFromCloud(incoming []models.FaultEntry, deletedIDs []string) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := faults.MergeCloud(s.faults, incoming, deletedIDs)
	s.faults = res.Faults
	return res.AddedCount, res.UpdatedCount
}

func (s *fakeStore) RemoveDeletedCloudFaults(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	s.faults, n = faults.RemoveDeletedCloud(s.faults, ids)
	return n
}

func (s *fakeStore) MarkFaultSynced(id string, version int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.faults, ok = faults.MarkSynced(s.faults, id, version, 1)
	return ok
}

// fakeAPI embeds client.Client; only the programmed calls are implemented.
type fakeAPI struct {
	client.Client

	mu          sync.Mutex
	polls       []client.PollRequest
	faultPolls  []client.PollRequest
	sent        []models.Entry
	sentFaults  []models.FaultEntry
	deleted     []string
	pollFn      func(client.PollRequest) (*client.EntryPollResponse, error)
	faultPollFn func(client.PollRequest) (*client.FaultPollResponse, error)
	sendFn      func(models.Entry) (*client.SendResponse, error)
	sendFaultFn func(models.FaultEntry) (*client.SendResponse, error)
	deleteErr   error
	tokenFn     func(pin string) (string, error)
	tokenCalls  int
}

func (f *fakeAPI) PollEntries(_ context.Context, req client.PollRequest) (*client.EntryPollResponse, error) {
	f.mu.Lock()
	f.polls = append(f.polls, req)
	fn := f.pollFn
	f.mu.Unlock()
	if fn == nil {
		return &client.EntryPollResponse{LastUpdated: 1}, nil
	}
	return fn(req)
}

func (f *fakeAPI) PollFaults(_ context.Context, req client.PollRequest) (*client.FaultPollResponse, error) {
	f.mu.Lock()
	f.faultPolls = append(f.faultPolls, req)
	fn := f.faultPollFn
	f.mu.Unlock()
	if fn == nil {
		return &client.FaultPollResponse{LastUpdated: 1}, nil
	}
	return fn(req)
}

func (f *fakeAPI) SendEntry(_ context.Context, _ string, e models.Entry, _ models.DeviceIdentity) (*client.SendResponse, error) {
	f.mu.Lock()
	f.sent = append(f.sent, e)
	fn := f.sendFn
	f.mu.Unlock()
	if fn == nil {
		return &client.SendResponse{Success: true}, nil
	}
	return fn(e)
}

func (f *fakeAPI) SendFault(_ context.Context, _ string, fe models.FaultEntry, _ models.DeviceIdentity) (*client.SendResponse, error) {
	f.mu.Lock()
	f.sentFaults = append(f.sentFaults, fe)
	fn := f.sendFaultFn
	f.mu.Unlock()
	if fn == nil {
		return &client.SendResponse{Success: true}, nil
	}
	return fn(fe)
}

func (f *fakeAPI) DeleteEntry(_ context.Context, _ string, id string, _ models.DeviceIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeAPI) DeleteFault(_ context.Context, _ string, id string, _ models.DeviceIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeAPI) IssueToken(_ context.Context, pin string, _ models.DeviceIdentity) (string, error) {
	f.mu.Lock()
	f.tokenCalls++
	fn := f.tokenFn
	f.mu.Unlock()
	return fn(pin)
}

func (f *fakeAPI) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.polls)
}

// fakePhotos is an in-memory photos.Store.
type fakePhotos struct {
	mu   sync.Mutex
	data map[string][]byte
	puts int
}

func newFakePhotos() *fakePhotos { return &fakePhotos{data: make(map[string][]byte)} }

func (p *fakePhotos) Has(_ context.Context, id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.data[id]
	return ok, nil
}

func (p *fakePhotos) Get(_ context.Context, id string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data[id], nil
}

func (p *fakePhotos) Put(_ context.Context, id string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.puts++
	p.data[id] = data
	return nil
}

func (p *fakePhotos) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, id)
	return nil
}
