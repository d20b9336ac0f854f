// Package cmd provides the command-line interface for motiondeck.
//
// # Available Commands
//
//   - serve: Start the deck server
//   - list: Print the catalog of one variant
//   - validate: Resolve the manifest and report inconsistencies
//   - resolve: Show which group a requested group id canonicalizes to
//   - version: Show build information
//
// # Command Examples
//
//	// Serve the built-in manifest on the default port
//	motiondeck serve
//
//	// Serve a manifest and reload it on change
//	motiondeck serve --manifest deck.yml --watch
//
//	// List the CSS catalog as YAML
//	motiondeck list --variant css -f yaml
//
//	// Fail on undocumented components too
//	motiondeck validate --strict
//
//	// Where does /countdown land?
//	motiondeck resolve countdown
//
// Configuration is read from .motiondeck.yml, MOTIONDECK_CONFIG_FILE or
// --config, and every key can be overridden by a MOTIONDECK_<SECTION>_<KEY>
// environment variable.
package cmd
