package repository

import (
	"time"

	"github.com/iliyamo/resort-reservation/internal/model"
)

// DemoServices is the catalog loaded by `serve --seed` and by the memory
// store in the dev profile: two rooms, two restaurant tables, two pool
// chairs, a playground field and an animal activity.
func DemoServices() []model.ServiceInstance {
	return []model.ServiceInstance{
		{ID: 1, Type: model.ServiceRoom, Code: "C01", MaxCapacity: 2, Status: model.StatusAvailable},
		{ID: 2, Type: model.ServiceRoom, Code: "C02", MaxCapacity: 4, Status: model.StatusAvailable},
		{ID: 3, Type: model.ServiceRestaurantTable, Code: "T1", MaxCapacity: 4, Status: model.StatusAvailable},
		{ID: 4, Type: model.ServiceRestaurantTable, Code: "T2", MaxCapacity: 6, Status: model.StatusAvailable},
		{ID: 5, Type: model.ServicePoolChair, Code: "L1", MaxCapacity: 1, Status: model.StatusAvailable},
		{ID: 6, Type: model.ServicePoolChair, Code: "L2", MaxCapacity: 1, Status: model.StatusMaintenance},
		{ID: 7, Type: model.ServicePlayground, Code: "F1", MaxCapacity: 10, Status: model.StatusAvailable},
		{ID: 8, Type: model.ServiceAnimalActivity, Code: "A01", MaxCapacity: 8, Status: model.StatusAvailable},
	}
}

// DemoEvents returns the events loaded alongside DemoServices.  Start
// dates are relative to now so that the demo data never lies in the past.
func DemoEvents(now time.Time) []model.Event {
	day := now.UTC().Truncate(24*time.Hour).AddDate(0, 0, 7)
	return []model.Event{
		{ID: 1, Name: "Wine tasting", StartsAt: day.Add(19 * time.Hour), SeatsTotal: 20, SeatsRemaining: 20},
		{ID: 2, Name: "Sunset yoga", StartsAt: day.Add(18 * time.Hour), SeatsTotal: 5, SeatsRemaining: 5},
	}
}

// Seed loads services and events into the memory store.
func (s *MemoryStore) Seed(services []model.ServiceInstance, events []model.Event) {
	for _, inst := range services {
		s.PutService(inst)
	}
	for _, ev := range events {
		s.PutEvent(ev)
	}
}
