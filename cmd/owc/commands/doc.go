// Package commands implements the owc command line tool: provisioning runs from plan
// files, single contract interactions and offline inspection of deployment payloads.
package commands
