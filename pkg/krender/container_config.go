package krender

import (
	"fmt"
	"strconv"

	"github.com/docker/go-units"
)

const DefaultImage = "manimcommunity/manim:stable"

// ContainerConfig configures the containers DockerRenderer launches.
type ContainerConfig struct {
	// Image must provide the manim CLI.
	Image string

	Resources ResourceRequirements

	// NetworkMode defines the network configuration (e.g., "none", "bridge")
	NetworkMode string

	// PullImage pulls Image before the first render.
	PullImage bool
}

// ResourceRequirements uses Docker CLI notation ("1.5" CPUs, "2g" memory).
type ResourceRequirements struct {
	CPULimit    string
	MemoryLimit string
}

// DefaultContainerConfig returns sensible defaults for container configuration
func DefaultContainerConfig() ContainerConfig {
	return ContainerConfig{
		Image: DefaultImage,
		Resources: ResourceRequirements{
			CPULimit:    "2",
			MemoryLimit: "2g",
		},
		NetworkMode: "none",
	}
}

// nanoCPUs converts a CPU count to the unit Docker expects.
func (r ResourceRequirements) nanoCPUs() (int64, error) {
	if r.CPULimit == "" {
		return 0, nil
	}
	cpus, err := strconv.ParseFloat(r.CPULimit, 64)
	if err != nil || cpus < 0 {
		return 0, fmt.Errorf("invalid cpu limit %q", r.CPULimit)
	}
	return int64(cpus * 1e9), nil
}

func (r ResourceRequirements) memoryBytes() (int64, error) {
	if r.MemoryLimit == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(r.MemoryLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid memory limit %q: %w", r.MemoryLimit, err)
	}
	return n, nil
}
