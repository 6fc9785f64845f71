// Package constants holds default configuration values for the IOASID
// allocator, mirrored from the PCIe PASID conventions the core was
// originally designed around.
package constants

// DefaultIDWidth is the default width, in bits, of the ID space. PCIe
// standard PASIDs are 20 bits wide.
const DefaultIDWidth = 20

// DefaultCapacity is the default total number of IDs available when an
// Allocator is constructed without an explicit capacity
// (1<<DefaultIDWidth, the PCIe PASID space).
const DefaultCapacity = 1 << DefaultIDWidth

// IDTableShards is the number of shards the per-backend-group ID table
// splits its key space across. Higher shard counts reduce contention
// between concurrent allocations landing in different shards at the
// cost of more mutexes resident in memory.
const IDTableShards = 64

// DefaultMaxRegisterAttempts is a bound for the default-backend linear
// scan for a free ID within [min, max]. The default backend does not read
// it: its scan always covers the full range before giving up with NoSpace.
const DefaultMaxRegisterAttempts = 0 // 0 means "scan the full range"
