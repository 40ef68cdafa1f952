package model

import "strings"

// ServiceType tags a bookable service instance.  Every type shares the same
// interval/overlap contract; per-type booking policy lives in a table in
// the reservation package.
type ServiceType string

const (
	ServiceRoom            ServiceType = "ROOM"
	ServiceRestaurantTable ServiceType = "RESTAURANT_TABLE"
	ServicePoolChair       ServiceType = "POOL_CHAIR"
	ServicePlayground      ServiceType = "PLAYGROUND"
	ServiceAnimalActivity  ServiceType = "ANIMAL_ACTIVITY"
)

// ServiceTypes lists every known service type in display order.
var ServiceTypes = []ServiceType{
	ServiceRoom,
	ServiceRestaurantTable,
	ServicePoolChair,
	ServicePlayground,
	ServiceAnimalActivity,
}

// ParseServiceType normalises s and reports whether it names a known type.
func ParseServiceType(s string) (ServiceType, bool) {
	t := ServiceType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ServiceTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// ServiceStatus is the operational status of an instance as maintained by
// the catalog.
type ServiceStatus string

const (
	StatusAvailable   ServiceStatus = "AVAILABLE"
	StatusOccupied    ServiceStatus = "OCCUPIED"
	StatusMaintenance ServiceStatus = "MAINTENANCE"
)

// ServiceInstance is a concrete bookable unit (a specific room, table,
// chair, field or activity slot).  Instances are owned by the external
// catalog; the engine never mutates them.  Each instance has a capacity
// unit of one: two bookings on the same instance must not overlap.
//
// Fields:
//
//	ID          – primary key identifier.
//	Type        – tagged service type.
//	Code        – human code such as C01, T2 or L1.
//	MaxCapacity – guests the unit can host (informational only).
//	Status      – AVAILABLE, OCCUPIED or MAINTENANCE.
type ServiceInstance struct {
	ID          uint64        `json:"id"`           // services.id
	Type        ServiceType   `json:"service_type"` // services.service_type
	Code        string        `json:"code"`         // services.code
	MaxCapacity int           `json:"max_capacity"` // services.max_capacity
	Status      ServiceStatus `json:"status"`       // services.status
}

// Bookable reports whether the catalog allows new reservations on the
// instance.  Only maintenance blocks booking; OCCUPIED is a front-desk
// flag and says nothing about future intervals.
func (s ServiceInstance) Bookable() bool {
	return s.Status != StatusMaintenance
}
