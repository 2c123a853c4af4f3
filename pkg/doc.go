// Package pkg provides the libraries behind humbleplugin, the Humble Bundle
// integration for desktop game launchers.
//
// # Overview
//
// The launcher starts the plugin and talks to it over a JSON-RPC 2.0 side
// channel. The plugin logs in with the user's Humble web session, turns
// orders, Trove chunks and Humble Choice pages into launcher games, and
// watches the machine for installed copies.
//
// # Architecture
//
// The typical data flow for a library import:
//
//	Humble web API + HTML pages
//	         ↓
//	    [humble] package (HTTP client, endpoints, page cache)
//	         ↓
//	    [model] package (typed views over orders, keys, Trove, Choice)
//	         ↓
//	    [library] package (owned games per [settings] sources)
//	         ↓
//	    [plugin] package (launcher operations and notifications)
//	         ↓
//	    [rpc] package (JSON-RPC peer)
//
// # Main Packages
//
// ## Humble Data
//
// [humble] - Authenticated client for the Humble endpoints used by the
// plugin: orders, Trove, subscription state, Choice pages and download
// signing. Choice pages are parsed with [webpack].
//
// [model] - Game kinds (subproduct, Trove game, key, Choice game), download
// structs and platform selection.
//
// [library] - Resolves owned games and keeps the serialized library cache.
//
// [subscription] - Works out which Humble Choice months, the Games
// Collection and the Vault the user can see.
//
// ## Local Machine
//
// [localgames] - Matches installed programs (uninstall registry, search
// directories) to owned games and tracks the Humble App.
//
// [settings] - The user's TOML settings file with change tracking.
//
// [session] - Session cookies, as stored by the launcher or by the CLI.
//
// ## Infrastructure
//
// [cache] - File and null caches used for Choice pages.
//
// [httputil] - Retry with backoff for transient HTTP failures.
//
// [observability] - Hooks for HTTP, resolver and cache events.
//
// [errors] - Coded errors shared by all packages.
//
// [buildinfo] - Version information set at link time.
package pkg
