// Package daemonrun builds the shotdeck runtime from configuration and runs it
// until the process is signalled.
package daemonrun
