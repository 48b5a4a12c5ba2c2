// Package datahandler is a client for the ALPHA-g Data Handler.
//
// The Data Handler has no stable public API; this client reproduces what its
// web front end does. Every run follows the same two phases:
//
//	ready, err := client.CheckReady(ctx, 11186)     // GET /11186
//	body, err := client.SubmitJob(ctx, SpillLog{RunNumber: 11186})
//
// SubmitJob dials the websocket, sends one request envelope, waits for a
// download token and fetches GET /download/<token>. CheckReady must have
// returned true for the run before any job is submitted: the server primes its
// internal caches on that request, and a job issued earlier caches incomplete
// data for the run.
package datahandler
