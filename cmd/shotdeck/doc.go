// Command shotdeck runs the shotdeck API server and task worker and offers
// direct access to projects, shots, generations and tasks from the terminal.
//
// Management commands open the configured database directly, so they work
// whether or not a server is running. Pass --json for machine-readable output.
package main
