package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shipstream/api/internal/infra/courier"
	"github.com/shipstream/api/pkg/domain/shipment"
	"github.com/shipstream/api/pkg/domain/webhook"
)

var errCacheMiss = errors.New("cache miss")

// mockShipmentRepo is an in-memory shipment.Repository.
type mockShipmentRepo struct {
	mu        sync.Mutex
	byID      map[string]*shipment.Shipment
	createErr error
	updateErr error
	updates   int
}

func newMockShipmentRepo() *mockShipmentRepo {
	return &mockShipmentRepo{byID: make(map[string]*shipment.Shipment)}
}

func (m *mockShipmentRepo) Create(_ context.Context, s *shipment.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.byID {
		if existing.Carrier() == s.Carrier() && existing.TrackingNumber() == s.TrackingNumber() {
			return shipment.ErrTrackingExists
		}
	}
	m.byID[s.ID().String()] = s
	return nil
}

func (m *mockShipmentRepo) GetByID(_ context.Context, id shipment.ID) (*shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id.String()]; ok {
		return s, nil
	}
	return nil, shipment.ErrShipmentNotFound
}

func (m *mockShipmentRepo) FindByTracking(_ context.Context, carrier, trackingNumber string) (*shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.Carrier() == carrier && s.TrackingNumber() == trackingNumber {
			return s, nil
		}
	}
	return nil, shipment.ErrShipmentNotFound
}

func (m *mockShipmentRepo) UpdateTracking(_ context.Context, s *shipment.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.byID[s.ID().String()]; !ok {
		return shipment.ErrShipmentNotFound
	}
	m.byID[s.ID().String()] = s
	m.updates++
	return nil
}

// fakeProvider is an in-memory courier provider.
type fakeProvider struct {
	mu            sync.Mutex
	subs          []webhook.Subscription
	trackings     map[string]*courier.Tracking
	nextID        int
	listCalls     int
	createErr     error
	listErr       error
	trackErr      error
	getTrackErr   error
	testDelivered bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		trackings:     make(map[string]*courier.Tracking),
		nextID:        1,
		testDelivered: true,
	}
}

func (f *fakeProvider) CreateWebhook(_ context.Context, req courier.CreateWebhookRequest) (*webhook.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	sub := webhook.Subscription{
		ID:     fmt.Sprintf("wh_%d", f.nextID),
		URL:    req.URL,
		Events: req.Events,
		Active: req.Active,
	}
	f.nextID++
	f.subs = append(f.subs, sub)
	return &sub, nil
}

func (f *fakeProvider) ListWebhooks(_ context.Context) ([]webhook.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]webhook.Subscription, len(f.subs))
	copy(out, f.subs)
	return out, nil
}

func (f *fakeProvider) GetWebhook(_ context.Context, id string) (*webhook.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.subs {
		if f.subs[i].ID == id {
			return &f.subs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeProvider) UpdateWebhook(_ context.Context, id string, req courier.UpdateWebhookRequest) (*webhook.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.subs {
		if f.subs[i].ID == id {
			if req.URL != nil {
				f.subs[i].URL = *req.URL
			}
			if req.Events != nil {
				f.subs[i].Events = *req.Events
			}
			if req.Active != nil {
				f.subs[i].Active = *req.Active
			}
			return &f.subs[i], nil
		}
	}
	return nil, webhook.ErrSubscriptionNotFound
}

func (f *fakeProvider) DeleteWebhook(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.subs {
		if f.subs[i].ID == id {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return nil
		}
	}
	return webhook.ErrSubscriptionNotFound
}

func (f *fakeProvider) TestWebhook(_ context.Context, id string) (*courier.TestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.subs {
		if f.subs[i].ID == id {
			return &courier.TestResult{Delivered: f.testDelivered, StatusCode: 200}, nil
		}
	}
	return nil, webhook.ErrSubscriptionNotFound
}

func (f *fakeProvider) CreateTracking(_ context.Context, req courier.CreateTrackingRequest) (*courier.Tracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trackErr != nil {
		return nil, f.trackErr
	}
	trk := &courier.Tracking{
		ID:             "trk_1",
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
		Status:         "pending",
	}
	f.trackings[req.Carrier+"/"+req.TrackingNumber] = trk
	return trk, nil
}

func (f *fakeProvider) GetTracking(_ context.Context, carrier, trackingNumber string) (*courier.Tracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getTrackErr != nil {
		return nil, f.getTrackErr
	}
	if trk, ok := f.trackings[carrier+"/"+trackingNumber]; ok {
		return trk, nil
	}
	return nil, courier.ErrNotFound
}

// fakeListCache is an in-memory SubscriptionListCache.
type fakeListCache struct {
	mu     sync.Mutex
	value  *[]webhook.Subscription
	loads  int
	misses int
}

func (c *fakeListCache) GetOrSet(ctx context.Context, _ string, loader func(context.Context) (*[]webhook.Subscription, error)) (*[]webhook.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value != nil {
		return c.value, nil
	}
	c.misses++
	v, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	c.loads++
	c.value = v
	return v, nil
}

func (c *fakeListCache) Invalidate(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
	return nil
}

// fakeStatusCache is an in-memory RegistryStatusCache.
type fakeStatusCache struct {
	mu    sync.Mutex
	value *webhook.RegistryStatus
}

func (c *fakeStatusCache) Get(context.Context, string) (*webhook.RegistryStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == nil {
		return nil, errCacheMiss
	}
	return c.value, nil
}

func (c *fakeStatusCache) Set(_ context.Context, _ string, value webhook.RegistryStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = &value
	return nil
}

func (c *fakeStatusCache) Invalidate(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
	return nil
}

// fakeEventLog is an in-memory EventLog, newest first like the redis list.
type fakeEventLog struct {
	mu        sync.Mutex
	events    map[string][]webhook.Event
	marker    *webhook.DeliveryMarker
	recordErr error
}

func newFakeEventLog() *fakeEventLog {
	return &fakeEventLog{events: make(map[string][]webhook.Event)}
}

func (l *fakeEventLog) Record(_ context.Context, event webhook.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return l.recordErr
	}
	l.events[event.TrackingNumber] = append([]webhook.Event{event}, l.events[event.TrackingNumber]...)
	return nil
}

func (l *fakeEventLog) List(_ context.Context, trackingNumber string, limit int) ([]webhook.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := l.events[trackingNumber]
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	out := make([]webhook.Event, len(events))
	copy(out, events)
	return out, nil
}

func (l *fakeEventLog) SetLastOutcome(_ context.Context, marker webhook.DeliveryMarker) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.marker = &marker
	return nil
}

func (l *fakeEventLog) LastOutcome(context.Context) (*webhook.DeliveryMarker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.marker, nil
}
