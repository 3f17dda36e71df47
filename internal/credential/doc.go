// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credential stores the opaque Authorization credential.
//
// The credential is kept verbatim ("Bearer ...", "Basic ...") and sent as
// the Authorization header of every backend request. Stored credentials
// expire after a fixed lifetime (24 hours by default), mirroring a browser
// cookie jar.
//
// # Key Types
//
//   - Accessor: Read/write access to the current credential
//   - SQLiteStore: Persistent jar in a SQLite database
//   - MemoryStore: In-process jar for tests and one-shot commands
//   - Static: Fixed, read-only credential (from SHRAGA_AUTH)
//   - Watcher: Notifies when another process changes the jar
//   - Info: Parsed view of a credential (scheme, JWT expiry)
//
// # Usage
//
//	store, err := credential.OpenSQLite(path, 24*time.Hour)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	_ = store.SetCredential("Bearer " + token)
//	cred, _ := store.Credential()
package credential
