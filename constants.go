package ioasid

import "github.com/jpbrucker/go-ioasid/internal/constants"

// Re-exported defaults for public API consumers who want them without
// reaching into internal/constants directly.
const (
	DefaultIDWidth  = constants.DefaultIDWidth
	DefaultCapacity = constants.DefaultCapacity
	IDTableShards   = constants.IDTableShards
)
