// Package models contains GORM persistence models and their mappings to
// domain entities. Models stay inside the persistence layer; repositories
// translate at the boundary so domain types never carry ORM concerns beyond
// the shared base structs.
package models
