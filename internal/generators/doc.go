// Package generators implements the worker handlers for each task type on top
// of the fal queue API.
//
// A handler loads the task's project to pick up its owner and aspect ratio,
// authenticates with the owner's stored fal key (falling back to the
// configured key), runs the model and turns every returned file into a
// generation. When media mirroring is enabled the files are downloaded into
// the local media store first, so generations survive the provider's CDN
// expiry.
//
// Validate performs the parameter checks that do not need the network and is
// wired into task creation so bad requests are rejected before they queue.
package generators
