// Package entry provides the config entry registry.
//
// A config entry records that a device (identified by its stable address,
// the entry's unique ID) has been set up for an integration domain. Entries
// are only ever created as the terminal effect of a configuration flow.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────┐
//	│                      Entry Registry                       │
//	│                                                           │
//	│  ┌──────────────────┐    ┌──────────────────┐             │
//	│  │     Registry     │    │    Repository    │             │
//	│  │   (registry.go)  │───▶│  (repository.go) │             │
//	│  │ • cache + index  │    │ • SQLite queries │             │
//	│  │ • change events  │    │ • JSON data      │             │
//	│  └──────────────────┘    └──────────────────┘             │
//	└───────────────────────────────────────────────────────────┘
//
// # States
//
//   - active: the device is configured.
//   - ignored: the user chose to ignore the device. Discovery of it is
//     suppressed, but a manual setup may still promote it to active.
//
// (domain, unique_id) is unique in both states, so promotion replaces the
// ignored entry in place rather than adding a second row.
//
// # Usage
//
//	repo := entry.NewSQLiteRepository(db.DB)
//	registry := entry.NewRegistry(repo)
//	registry.SetLogger(log)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	e, err := registry.FindEntry(ctx, "thermopro", "4125DDBA-2774-4851-9889-6AADDD4CAC3D")
//
// # Thread Safety
//
// The Registry is safe for concurrent use.
package entry
