package database

import (
	"fmt"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DBService {
	t.Helper()
	svc, err := NewDBService(":memory:")
	if err != nil {
		t.Fatalf("NewDBService(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func ptr[T any](v T) *T { return &v }

// TestNewDBService verifies that the database initializes correctly
// with the embedded schema using an in-memory SQLite instance.
func TestNewDBService(t *testing.T) {
	svc, err := NewDBService(":memory:")
	if err != nil {
		t.Fatalf("NewDBService(:memory:) failed: %v", err)
	}
	defer svc.Close()
}

// TestInsertAndQueryClient verifies insert → query → fields match.
func TestInsertAndQueryClient(t *testing.T) {
	svc := newTestDB(t)

	c := &Client{
		ClientID: "c-001",
		Name:     "Acme Corp",
		Industry: "Retail",
		Manager:  "Dana",
		Health:   82,
		Revenue:  12000,
		Region:   "EMEA",
		Lat:      ptr(51.5),
		Lng:      ptr(-0.12),
	}
	if err := svc.InsertClient(c); err != nil {
		t.Fatalf("InsertClient failed: %v", err)
	}

	clients, err := svc.QueryClients(ClientFilter{Limit: 10})
	if err != nil {
		t.Fatalf("QueryClients failed: %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("expected 1 client, got %d", len(clients))
	}
	got := clients[0]
	if got.Name != "Acme Corp" || got.Manager != "Dana" {
		t.Errorf("unexpected client: %+v", got)
	}
	if got.Lat == nil || *got.Lat != 51.5 {
		t.Errorf("expected lat=51.5, got %v", got.Lat)
	}
	if got.UpdatedAt == 0 {
		t.Error("expected updated_at to be stamped")
	}
}

// TestInsertClientUpsert verifies that re-inserting an id replaces the row.
func TestInsertClientUpsert(t *testing.T) {
	svc := newTestDB(t)

	c := &Client{ClientID: "c-1", Name: "Old", Industry: "Tech", Manager: "A", Health: 40}
	if err := svc.InsertClient(c); err != nil {
		t.Fatalf("InsertClient failed: %v", err)
	}
	c.Name = "New"
	c.Health = 90
	if err := svc.InsertClient(c); err != nil {
		t.Fatalf("InsertClient (update) failed: %v", err)
	}

	n, err := svc.CountClients()
	if err != nil {
		t.Fatalf("CountClients failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 client after upsert, got %d", n)
	}
	clients, _ := svc.QueryClients(ClientFilter{})
	if clients[0].Name != "New" || clients[0].Health != 90 {
		t.Errorf("upsert did not replace fields: %+v", clients[0])
	}
}

func TestInsertClientRejectsHealthOutOfRange(t *testing.T) {
	svc := newTestDB(t)

	err := svc.InsertClient(&Client{ClientID: "bad", Name: "Bad", Industry: "X", Manager: "M", Health: 120})
	if err == nil {
		t.Fatal("expected CHECK constraint failure for health=120")
	}
}

func TestBatchInsertClients(t *testing.T) {
	svc := newTestDB(t)

	clients := make([]*Client, 0, 50)
	for i := 0; i < 50; i++ {
		clients = append(clients, &Client{
			ClientID: fmt.Sprintf("c-%03d", i),
			Name:     fmt.Sprintf("Client %03d", i),
			Industry: []string{"Retail", "Tech", "Health"}[i%3],
			Manager:  []string{"Ana", "Ben"}[i%2],
			Health:   float64(i * 2),
			Revenue:  float64(1000 + i),
		})
	}
	if err := svc.BatchInsertClients(clients); err != nil {
		t.Fatalf("BatchInsertClients failed: %v", err)
	}

	n, err := svc.CountClients()
	if err != nil {
		t.Fatalf("CountClients failed: %v", err)
	}
	if n != 50 {
		t.Errorf("expected 50 clients, got %d", n)
	}
}

// TestBatchInsertClientsRollsBack verifies a failing row aborts the whole batch.
func TestBatchInsertClientsRollsBack(t *testing.T) {
	svc := newTestDB(t)

	err := svc.BatchInsertClients([]*Client{
		{ClientID: "ok", Name: "Ok", Industry: "X", Manager: "M", Health: 50},
		{ClientID: "bad", Name: "Bad", Industry: "X", Manager: "M", Health: -1},
	})
	if err == nil {
		t.Fatal("expected batch to fail")
	}
	n, _ := svc.CountClients()
	if n != 0 {
		t.Errorf("expected rollback to leave 0 clients, got %d", n)
	}
}

func TestClientFilter(t *testing.T) {
	svc := newTestDB(t)

	seed := []*Client{
		{ClientID: "1", Name: "Alpha", Industry: "Retail", Manager: "Ana", Health: 90, Region: "NA"},
		{ClientID: "2", Name: "Bravo", Industry: "Tech", Manager: "Ana", Health: 40, Region: "EMEA"},
		{ClientID: "3", Name: "Charlie", Industry: "Tech", Manager: "Ben", Health: 70, Region: "NA"},
	}
	if err := svc.BatchInsertClients(seed); err != nil {
		t.Fatalf("BatchInsertClients failed: %v", err)
	}

	tests := []struct {
		name   string
		filter ClientFilter
		want   []string
	}{
		{"all ordered by name", ClientFilter{}, []string{"Alpha", "Bravo", "Charlie"}},
		{"by manager", ClientFilter{Manager: ptr("Ana")}, []string{"Alpha", "Bravo"}},
		{"by industry", ClientFilter{Industry: ptr("Tech")}, []string{"Bravo", "Charlie"}},
		{"by region", ClientFilter{Region: ptr("NA")}, []string{"Alpha", "Charlie"}},
		{"min health", ClientFilter{MinHealth: ptr(60.0)}, []string{"Alpha", "Charlie"}},
		{"limit and offset", ClientFilter{Limit: 1, Offset: 1}, []string{"Bravo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clients, err := svc.QueryClients(tt.filter)
			if err != nil {
				t.Fatalf("QueryClients failed: %v", err)
			}
			var got []string
			for _, c := range clients {
				got = append(got, c.Name)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGetDashboardStats(t *testing.T) {
	svc := newTestDB(t)

	stats, err := svc.GetDashboardStats()
	if err != nil {
		t.Fatalf("GetDashboardStats on empty db failed: %v", err)
	}
	if stats.Clients != 0 || stats.TotalRevenue != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}

	seed := []*Client{
		{ClientID: "1", Name: "A", Industry: "Retail", Manager: "Ana", Health: 90, Revenue: 1000, UpdatedAt: 10},
		{ClientID: "2", Name: "B", Industry: "Tech", Manager: "Ana", Health: 30, Revenue: 500, UpdatedAt: 30},
		{ClientID: "3", Name: "C", Industry: "Tech", Manager: "Ben", Health: 60, Revenue: 1500, UpdatedAt: 20},
	}
	if err := svc.BatchInsertClients(seed); err != nil {
		t.Fatalf("BatchInsertClients failed: %v", err)
	}

	stats, err = svc.GetDashboardStats()
	if err != nil {
		t.Fatalf("GetDashboardStats failed: %v", err)
	}
	if stats.Clients != 3 {
		t.Errorf("expected 3 clients, got %d", stats.Clients)
	}
	if stats.Managers != 2 || stats.Industries != 2 {
		t.Errorf("expected 2 managers and 2 industries, got %d/%d", stats.Managers, stats.Industries)
	}
	if stats.TotalRevenue != 3000 {
		t.Errorf("expected revenue 3000, got %f", stats.TotalRevenue)
	}
	if stats.AvgHealth != 60 {
		t.Errorf("expected avg health 60, got %f", stats.AvgHealth)
	}
	if stats.AtRisk != 1 {
		t.Errorf("expected 1 at-risk client, got %d", stats.AtRisk)
	}
	if stats.LastUpdated != 30 {
		t.Errorf("expected last_updated=30, got %d", stats.LastUpdated)
	}
}

func TestPreferences(t *testing.T) {
	svc := newTestDB(t)

	if _, ok, err := svc.Get("theme.mode"); err != nil || ok {
		t.Fatalf("expected missing preference, got ok=%v err=%v", ok, err)
	}

	if err := svc.Set("theme.mode", "dark"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := svc.Set("theme.mode", "light"); err != nil {
		t.Fatalf("Set (overwrite) failed: %v", err)
	}

	v, ok, err := svc.Get("theme.mode")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if v != "light" {
		t.Errorf("expected light, got %q", v)
	}
}

// TestPreferencesSurviveReopen verifies the file-backed store persists
// the preference across connections.
func TestPreferencesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.db")

	svc, err := NewDBService(path)
	if err != nil {
		t.Fatalf("NewDBService failed: %v", err)
	}
	if err := svc.Set("theme.mode", "dark"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	svc.Close()

	svc, err = NewDBService(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer svc.Close()

	v, ok, err := svc.Get("theme.mode")
	if err != nil || !ok || v != "dark" {
		t.Errorf("expected persisted dark, got %q ok=%v err=%v", v, ok, err)
	}
}

func BenchmarkBatchInsert(b *testing.B) {
	svc, err := NewDBService(":memory:")
	if err != nil {
		b.Fatalf("NewDBService failed: %v", err)
	}
	defer svc.Close()

	clients := make([]*Client, 100)
	for i := range clients {
		clients[i] = &Client{
			ClientID: fmt.Sprintf("c-%d", i),
			Name:     fmt.Sprintf("Client %d", i),
			Industry: "Tech",
			Manager:  "Ana",
			Health:   50,
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := svc.BatchInsertClients(clients); err != nil {
			b.Fatalf("BatchInsertClients failed: %v", err)
		}
	}
}
