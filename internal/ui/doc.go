// Package ui provides the terminal browser for the users API (rt browse).
//
// # Views
//
//   - List view: table of users, newest first. A create dialog opens on top
//     of it and closes only once the list has reloaded with the new user.
//   - Detail view: one user plus an edit form seeded from the loaded record.
//
// # Data flow
//
// The model owns a users.List for its whole lifetime and a users.Details
// while the detail view is open. Both publish change signals; a command
// waits on the signal and turns it into a message, so the model re-reads
// the hook state inside Update. Leaving the detail view closes its hook,
// which drops any result still in flight.
//
// # Key Bindings
//
//   - n: new user
//   - enter: open details / submit form
//   - d: delete selected user
//   - e: edit (detail view)
//   - r: reload
//   - tab/shift+tab: move between form fields
//   - esc: close dialog or go back
//   - q or Ctrl+C: quit
package ui
