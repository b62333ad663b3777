// Package flow implements the discovery-driven configuration flow manager.
//
// A flow is one attempt to set up a device for an integration domain. Flows
// start from an unsolicited Bluetooth discovery or from a user asking to add
// a device, show a single confirmation step, and end in exactly one of two
// ways: a config entry is created, or the flow aborts with a reason.
//
// # State machine
//
//	init(bluetooth) ── not supported ────────────────▶ abort(not_supported)
//	                ── entry exists ─────────────────▶ abort(already_configured)
//	                ── flow for address open ────────▶ abort(already_in_progress)
//	                ── otherwise ─▶ bluetooth_confirm ─▶ create_entry
//	init(user)      ── no candidates ────────────────▶ abort(no_devices_found)
//	                ── otherwise ─▶ user ─(address)──▶ create_entry
//	                                     └─ configured meanwhile ─▶ abort(already_configured)
//	open flow       ── another flow created its entry ─▶ abort(superseded)
//
// # Concurrency
//
// Guard checks and entry creation for one (domain, address) run inside a
// per-address critical section, so two confirmations can never both create
// an entry for the same device. Creating an entry aborts every other open
// flow bound to that address before the lock is released.
//
// # Collaborators
//
// The manager reads candidates from a DiscoveryCache, entries from an
// EntryRegistry, and signatures from Profiles. Failures of those
// collaborators are returned as errors; expected conflicts are abort
// results, never errors.
package flow
