// Package device provides the tracker catalogue for Gray Logic Tracker.
//
// The catalogue is the persisted list of every tracker the account has
// reported: identity (uuid, name, serial, phone), the last published status
// and battery level, and when it was first and last seen. It is not a
// location trail; positions are never stored here.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                       Tracker Catalogue                      │
//	│                                                              │
//	│  ┌──────────────────┐    ┌──────────────────┐                │
//	│  │     Registry     │    │    Repository    │                │
//	│  │   (registry.go)  │───▶│  (repository.go) │                │
//	│  │                  │    │                  │                │
//	│  │ • Observe upsert │    │ • SQLite queries │                │
//	│  │ • In-memory cache│    │ • Upsert by uuid │                │
//	│  └──────────────────┘    └──────────────────┘                │
//	│           ▲                       │                          │
//	└───────────│───────────────────────│──────────────────────────┘
//	            │                       ▼
//	┌──────────────────────┐   ┌──────────────────────┐
//	│  host catalogue sink │   │   SQLite Database    │
//	│  REST /devices       │   │   (trackers table)   │
//	└──────────────────────┘   └──────────────────────┘
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// On every published tracker state
//	err := registry.Observe(ctx, device.Device{ID: uuid, Name: name})
//
// # Thread Safety
//
// Registry is safe for concurrent use. SQLiteRepository relies on the
// database/sql connection pool.
package device
