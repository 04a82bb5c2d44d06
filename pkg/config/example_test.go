package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/pqflow/pkg/config"
)

// ExampleDefault shows the defaults every loaded file starts from.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Group Size: %d\n", cfg.Pipeline.GroupSize)
	fmt.Printf("Queue Capacity: %d\n", cfg.Pipeline.QueueCapacity)
	fmt.Printf("Compression: %s\n", cfg.Writer.Compression)

	// Output:
	// Group Size: 10000
	// Queue Capacity: 2
	// Compression: snappy
}

// ExampleParse loads a configuration from YAML content.
func ExampleParse() {
	cfg, err := config.Parse([]byte(`
pipeline:
  group_size: 500
writer:
  compression: zstd
`))
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Printf("Group Size: %d\n", cfg.Pipeline.GroupSize)
	fmt.Printf("Compression: %s\n", cfg.Writer.Compression)
	fmt.Printf("Stats: %v\n", cfg.Writer.EnableStats)

	// Output:
	// Group Size: 500
	// Compression: zstd
	// Stats: true
}
