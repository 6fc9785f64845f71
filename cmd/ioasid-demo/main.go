// Command ioasid-demo exercises the allocator from the command line,
// modeling one Set per simulated VFIO device context the way
// drivers/iommu/iommufd and vfio_pasid.c pair a device's mm with its own
// PASID quota.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jpbrucker/go-ioasid"
	"github.com/jpbrucker/go-ioasid/internal/logging"
)

var (
	capacity uint32
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "ioasid-demo",
	Short: "Exercise the IOASID allocator from the command line",
	Long: `ioasid-demo drives a standalone Allocator through a scripted
sequence of device sets and id allocations, printing each lifecycle
event as it fires. It exists to demonstrate the library, not to manage
real hardware.`,
	DisableAutoGenTag: true,
}

func main() {
	rootCmd.PersistentFlags().Uint32Var(&capacity, "capacity", 256, "total id-space capacity")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(devicesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var devicesCmd = &cobra.Command{
	Use:   "devices <count>",
	Short: "Simulate <count> VFIO devices sharing one allocator",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	var n int
	if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil || n <= 0 {
		return fmt.Errorf("count must be a positive integer")
	}

	logConfig := logging.DefaultConfig()
	if verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)

	a := ioasid.NewAllocator(
		ioasid.WithCapacity(capacity),
		ioasid.WithLogger(logger),
	)

	sub := a.SubscribeGlobal(func(ev ioasid.Event) {
		logger.Info("event", "kind", ev.Kind, "id", ev.ID)
	})
	defer a.UnsubscribeGlobal(sub)

	quota := capacity / uint32(n)
	if quota == 0 {
		quota = 1
	}

	type device struct {
		mm  uuid.UUID
		set *ioasid.Set
	}
	devices := make([]*device, 0, n)

	for i := 0; i < n; i++ {
		mm := uuid.New() // stands in for the device's address-space handle
		set, err := a.AllocSet(mm, quota, ioasid.SetMm)
		if err != nil {
			return fmt.Errorf("allocating set for device %d: %w", i, err)
		}
		devices = append(devices, &device{mm: mm, set: set})

		id, err := a.Alloc(set, 0, ioasid.ID(capacity-1), fmt.Sprintf("device-%d", i))
		if err != nil {
			return fmt.Errorf("allocating id for device %d: %w", i, err)
		}
		fmt.Printf("device %d: set quota=%d minted id=%d\n", i, quota, id)
	}

	for _, d := range devices {
		d.set.Put()
	}

	return nil
}
