// Package internal contains the implementation packages of motiondeck.
//
// # Package Organization
//
//   - types: variants, metadata, animation refs and the unit contract
//   - registry: resolves metadata and unit declarations into one table
//   - manifest: the YAML manifest that declares categories, groups and metadata
//   - catalog: projects one variant of the table and owns the cached copy
//   - navigation: canonical group resolution and the per-session machine
//   - lifecycle: card state, timer ownership and visibility gating
//   - demos: the registered demo implementations
//   - server: HTTP shell, JSON API and the WebSocket hub
//   - watcher: debounced manifest reloads
//   - config, logging, errors, monitoring, tracing, version: ambient stack
//
// # Data Flow
//
//   - manifest.Source resolves the manifest against demos into a registry.Table
//   - catalog.Service builds the variant's Catalog and publishes commits
//   - server sessions re-canonicalize their route and remount cards on commits
//   - lifecycle cards own every timer their demo schedules
package internal
