// Package cli provides common CLI utilities for speakerid command-line tools.
//
// This package includes:
//   - Configuration management (contexts pointing at speaker stores)
//   - Store opening (memory, badger, local files, S3)
//   - Output of outcomes, speaker records and enroll results as JSON,
//     YAML or tables
//   - Enrollment manifests (YAML or JSON)
//   - Terminal frames and score bars for live recognition
//
// Configuration is stored in ~/.giztoy/<app>/ directory, supporting
// multiple contexts similar to kubectl.
//
// Example usage:
//
//	cfg, err := cli.LoadConfigWithPath("speakerid", "")
//
//	ctx, err := cfg.ResolveContext(name)
//	store, err := cli.OpenStore(ctx.Store, paths.StoreDir(), logger)
//
//	cli.Output(outcome, cli.OutputOptions{Format: cli.FormatTable})
package cli
